package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
	"github.com/mwork/robokassa-gateway/internal/pkg/robokassa"
)

// Errors
var (
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrAmountMismatch     = errors.New("amount mismatch")
	ErrInvalidStatus      = errors.New("invalid payment status")
	ErrTestModeMismatch   = errors.New("test flag does not match payment mode")
	ErrPaymentMismatch    = errors.New("callback belongs to another payment")
	ErrCallbackInProgress = errors.New("callback for this invoice is already being processed")
)

const defaultCurrency = "RUB"

// Gateway is the part of the RoboKassa client the service relies on
type Gateway interface {
	Merchant() *robokassa.Merchant
	CreatePaymentLink(inv *robokassa.Invoice) (string, error)
	CreateInvoice(ctx context.Context, req *robokassa.InvoiceRequest) (*robokassa.CreatedInvoice, error)
	DeactivateInvoice(ctx context.Context, invID int64) error
	OpStateExt(ctx context.Context, invID int64) (*robokassa.OperationStateResponse, error)
	GetCurrencies(ctx context.Context, lang string) (*robokassa.CurrenciesList, error)
	GetPaymentMethods(ctx context.Context, lang string) (*robokassa.PaymentMethodsList, error)
	CheckResult(fields robokassa.CallbackFields) bool
	CheckSuccess(fields robokassa.CallbackFields) bool
}

// Service handles payment business logic
type Service struct {
	repo    Repository
	gateway Gateway
	locker  Locker
	now     func() time.Time
}

// NewService создает новый экземпляр сервиса платежей
func NewService(repo Repository, gateway Gateway, locker Locker) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		locker:  locker,
		now:     time.Now,
	}
}

// InitPaymentResponse содержит данные созданного платежа
type InitPaymentResponse struct {
	PaymentID  uuid.UUID `json:"payment_id"`  // ID платежа в системе
	InvID      int64     `json:"inv_id"`      // ID инвойса в Robokassa
	PaymentURL string    `json:"payment_url"` // URL для оплаты
	Status     Status    `json:"status"`
}

// InitPayment инициирует новый платеж через Robokassa.
// Создает запись о платеже в БД и возвращает подписанный URL платежной формы.
//
// Процесс:
// 1. Выделяет InvID через БД sequence, если вызывающий его не указал
// 2. Добавляет Shp_payment_id, чтобы callback можно было сопоставить с платежом
// 3. Валидирует параметры и формирует подпись запроса
// 4. Создает запись о платеже со статусом pending
//
// Возвращаемые ошибки:
//   - *robokassa.ValidationError: неверные параметры счета
//   - database error: ошибка при создании записи в БД
func (s *Service) InitPayment(ctx context.Context, operatorID uuid.UUID, params robokassa.InvoiceParams) (*InitPaymentResponse, error) {
	paymentID := uuid.New()
	if params.InvID == 0 {
		invID, err := s.repo.NextInvID(ctx)
		if err != nil {
			return nil, err
		}
		params.InvID = invID
	}
	params.UserFields = withPaymentID(params.UserFields, paymentID)

	inv, err := robokassa.NewInvoice(params)
	if err != nil {
		return nil, err
	}
	link, err := s.gateway.CreatePaymentLink(inv)
	if err != nil {
		return nil, fmt.Errorf("failed to generate robokassa payment link: %w", err)
	}

	rawInit, _ := json.Marshal(params)
	now := s.now()
	payment := &Payment{
		ID:             paymentID,
		InvID:          inv.InvID,
		Kind:           KindLink,
		Amount:         inv.OutSum.Decimal(),
		Currency:       currencyOf(inv.IncCurrLabel),
		Description:    inv.Description,
		Email:          nullString(inv.Email),
		Status:         StatusPending,
		IsTest:         s.gateway.Merchant().IsTest(),
		PaymentURL:     link,
		RawInitPayload: rawInit,
		CreatedBy:      nullUUID(operatorID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, payment.ID, EventInitiated, rawInit)

	logger.LogInfo(ctx, "robokassa payment initiated",
		"payment_id", payment.ID.String(),
		"inv_id", payment.InvID,
		"amount", payment.Amount.StringFixed(2),
		"is_test", payment.IsTest,
	)
	return &InitPaymentResponse{PaymentID: payment.ID, InvID: payment.InvID, PaymentURL: link, Status: payment.Status}, nil
}

// ProcessResult обрабатывает callback от Robokassa (Result URL) и возвращает тело ответа OK<InvId>.
//
// Процесс:
// 1. Проверяет подпись запроса паролем #2
// 2. Блокирует повторную параллельную обработку того же InvID через Redis
// 3. Находит платеж по InvID и проверяет Shp_payment_id
// 4. Проверяет соответствие суммы и режима тестирования
// 5. Переводит платеж в статус paid и пишет событие в журнал
//
// Идемпотентность: повторные вызовы для уже оплаченного платежа подтверждаются без изменений.
func (s *Service) ProcessResult(ctx context.Context, fields robokassa.CallbackFields) (string, error) {
	cb, err := robokassa.NewCallback(fields)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !s.gateway.CheckResult(fields) {
		return "", ErrInvalidSignature
	}

	lease, acquired, err := s.locker.Acquire(ctx, cb.InvID)
	if err != nil {
		// The conditional update in MarkPaid still prevents double processing.
		logger.LogWarn(ctx, "callback lock unavailable", "inv_id", cb.InvID, "error", err.Error())
	} else if !acquired {
		return "", ErrCallbackInProgress
	} else {
		defer s.locker.Release(ctx, cb.InvID, lease)
	}

	payment, err := s.repo.GetByInvID(ctx, cb.InvID)
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", ErrPaymentNotFound
	}
	if id := cb.UserField(PaymentIDField); id != "" && id != payment.ID.String() {
		return "", ErrPaymentMismatch
	}

	ack := robokassa.ResultAck(cb.InvID)
	if payment.IsPaid() {
		logger.LogInfo(ctx, "robokassa result repeated for paid payment", "inv_id", cb.InvID)
		return ack, nil
	}
	if payment.Status != StatusPending {
		return "", ErrInvalidStatus
	}

	amount, err := cb.Amount()
	if err != nil {
		return "", err
	}
	if !robokassa.AmountFromDecimal(payment.Amount).Equal(amount) {
		return "", ErrAmountMismatch
	}
	if cb.IsTest != payment.IsTest {
		return "", ErrTestModeMismatch
	}

	rawCallback, _ := json.Marshal(fieldsMap(fields))
	updated, err := s.repo.MarkPaid(ctx, payment.ID, rawCallback)
	if err != nil {
		return "", err
	}
	if !updated {
		current, err := s.repo.GetByID(ctx, payment.ID)
		if err != nil {
			return "", err
		}
		if current == nil || !current.IsPaid() {
			return "", ErrInvalidStatus
		}
	}

	logger.LogInfo(ctx, "robokassa payment paid",
		"payment_id", payment.ID.String(),
		"inv_id", cb.InvID,
		"amount", amount.String(),
	)
	return ack, nil
}

// ProcessSuccess проверяет редирект пользователя на Success URL (пароль #1).
// Статус платежа не меняется: подтверждением оплаты служит только Result URL.
func (s *Service) ProcessSuccess(ctx context.Context, fields robokassa.CallbackFields) (*Payment, error) {
	cb, err := robokassa.NewCallback(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !s.gateway.CheckSuccess(fields) {
		return nil, ErrInvalidSignature
	}

	payment, err := s.repo.GetByInvID(ctx, cb.InvID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	raw, _ := json.Marshal(fieldsMap(fields))
	s.recordEvent(ctx, payment.ID, EventSuccessRedirect, raw)
	return payment, nil
}

// ProcessFail records the customer returning through the Fail URL. The redirect is unsigned,
// so the payment itself is left untouched.
func (s *Service) ProcessFail(ctx context.Context, fields robokassa.CallbackFields) (*Payment, error) {
	raw, _ := fields.Get("InvId")
	invID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid InvId %q", robokassa.ErrInvalidArgument, raw)
	}

	payment, err := s.repo.GetByInvID(ctx, invID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	payload, _ := json.Marshal(fieldsMap(fields))
	s.recordEvent(ctx, payment.ID, EventFailRedirect, payload)
	return payment, nil
}

// CreateInvoice creates an invoice link through the authenticated invoice API and stores it
// as a pending payment.
func (s *Service) CreateInvoice(ctx context.Context, operatorID uuid.UUID, params robokassa.InvoiceRequestParams) (*Payment, error) {
	paymentID := uuid.New()
	if params.InvID == 0 {
		invID, err := s.repo.NextInvID(ctx)
		if err != nil {
			return nil, err
		}
		params.InvID = invID
	}
	params.UserFields = withPaymentID(params.UserFields, paymentID)

	req, err := robokassa.NewInvoiceRequest(params)
	if err != nil {
		return nil, err
	}
	created, err := s.gateway.CreateInvoice(ctx, req)
	if err != nil {
		return nil, err
	}

	invID := req.InvID
	if created.InvID != 0 {
		invID = created.InvID
	}
	rawInit, _ := json.Marshal(params)
	now := s.now()
	payment := &Payment{
		ID:             paymentID,
		InvID:          invID,
		Kind:           KindInvoice,
		Amount:         req.OutSum.Decimal(),
		Currency:       currencyOf(req.IncCurrLabel),
		Description:    req.Description,
		Status:         StatusPending,
		IsTest:         s.gateway.Merchant().IsTest(),
		PaymentURL:     created.URL,
		ExternalID:     nullString(created.ID),
		RawInitPayload: rawInit,
		CreatedBy:      nullUUID(operatorID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, payment.ID, EventInvoiceCreated, rawInit)
	return payment, nil
}

// DeactivateInvoice cancels an unpaid invoice at the gateway and locally
func (s *Service) DeactivateInvoice(ctx context.Context, invID int64) error {
	payment, err := s.repo.GetByInvID(ctx, invID)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrPaymentNotFound
	}
	if payment.Status != StatusPending {
		return ErrInvalidStatus
	}

	if err := s.gateway.DeactivateInvoice(ctx, invID); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, payment.ID, StatusCancelled); err != nil {
		return err
	}
	s.recordEvent(ctx, payment.ID, EventInvoiceCancelled, nil)
	return nil
}

// GetState queries the gateway for the live operation state of invID
func (s *Service) GetState(ctx context.Context, invID int64) (*robokassa.OperationStateResponse, error) {
	return s.gateway.OpStateExt(ctx, invID)
}

func (s *Service) Currencies(ctx context.Context, lang string) (*robokassa.CurrenciesList, error) {
	return s.gateway.GetCurrencies(ctx, lang)
}

func (s *Service) PaymentMethods(ctx context.Context, lang string) (*robokassa.PaymentMethodsList, error) {
	return s.gateway.GetPaymentMethods(ctx, lang)
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

// List возвращает платежи с пагинацией, опционально отфильтрованные по статусу.
func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*Payment, error) {
	return s.repo.List(ctx, status, limit, offset)
}

// recordEvent is best effort: a lost audit row must not fail the payment flow.
func (s *Service) recordEvent(ctx context.Context, paymentID uuid.UUID, eventType string, payload []byte) {
	if err := s.repo.CreateEvent(ctx, paymentID, eventType, payload); err != nil {
		logger.LogError(ctx, err, "failed to record payment event",
			"payment_id", paymentID.String(),
			"event_type", eventType,
		)
	}
}

func withPaymentID(fields map[string]string, paymentID uuid.UUID) map[string]string {
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[PaymentIDField] = paymentID.String()
	return out
}

func fieldsMap(fields robokassa.CallbackFields) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if _, seen := out[f.Key]; !seen {
			out[f.Key] = f.Value
		}
	}
	return out
}

func currencyOf(incCurrLabel string) string {
	if incCurrLabel == "" {
		return defaultCurrency
	}
	return incCurrLabel
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
