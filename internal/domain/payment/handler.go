package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwork/robokassa-gateway/internal/middleware"
	"github.com/mwork/robokassa-gateway/internal/pkg/errorhandler"
	"github.com/mwork/robokassa-gateway/internal/pkg/logger"
	"github.com/mwork/robokassa-gateway/internal/pkg/response"
	"github.com/mwork/robokassa-gateway/internal/pkg/robokassa"
)

const maxCallbackBody = 64 << 10

// Handler handles payment HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates payment handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// InitPayment handles POST /payments
// @Summary Инициализация оплаты через Robokassa
// @Description Создает платеж и возвращает подписанный URL платежной формы Robokassa
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body robokassa.InvoiceParams true "Параметры счета"
// @Success 201 {object} response.Response{data=InitPaymentResponse}
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /payments [post]
func (h *Handler) InitPayment(w http.ResponseWriter, r *http.Request) {
	var req robokassa.InvoiceParams
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	out, err := h.service.InitPayment(r.Context(), middleware.GetOperatorID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, out)
}

// CreateInvoice handles POST /payments/invoices
// @Summary Создание счета через Invoice API
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body robokassa.InvoiceRequestParams true "Параметры счета"
// @Success 201 {object} response.Response{data=Payment}
// @Failure 409 {object} response.Response "недоступно в тестовом режиме"
// @Failure 502 {object} response.Response
// @Router /payments/invoices [post]
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req robokassa.InvoiceRequestParams
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	payment, err := h.service.CreateInvoice(r.Context(), middleware.GetOperatorID(r.Context()), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, payment)
}

// DeactivateInvoice handles DELETE /payments/invoices/{invID}
func (h *Handler) DeactivateInvoice(w http.ResponseWriter, r *http.Request) {
	invID, ok := parseInvID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeactivateInvoice(r.Context(), invID); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w)
}

// GetState handles GET /payments/state/{invID}
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	invID, ok := parseInvID(w, r)
	if !ok {
		return
	}
	state, err := h.service.GetState(r.Context(), invID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, state)
}

// Currencies handles GET /payments/currencies?lang=ru
func (h *Handler) Currencies(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Currencies(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, list)
}

// PaymentMethods handles GET /payments/methods?lang=ru
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.PaymentMethods(r.Context(), r.URL.Query().Get("lang"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, list)
}

// GetPayment handles GET /payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid payment id")
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, payment)
}

// List handles GET /payments
// @Summary Список платежей
// @Tags Payment
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, paid, failed, cancelled"
// @Param limit query int false "Количество записей (по умолчанию 20, максимум 100)"
// @Param offset query int false "Смещение (по умолчанию 0)"
// @Success 200 {object} response.Response{data=[]Payment}
// @Router /payments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	// One extra row tells whether another page exists.
	payments, err := h.service.List(r.Context(), Status(r.URL.Query().Get("status")), limit+1, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	hasNext := len(payments) > limit
	if hasNext {
		payments = payments[:limit]
	}
	response.WithMeta(w, payments, response.Meta{Limit: limit, Offset: offset, Count: len(payments), HasNext: hasNext})
}

// Result handles GET/POST /webhooks/robokassa/result
// @Summary Webhook обработки результата Robokassa
// @Description Обрабатывает callback от Robokassa о результате платежа (Result URL)
// @Tags Payment Webhooks
// @Accept application/x-www-form-urlencoded
// @Produce plain
// @Success 200 {string} string "OK{InvId}"
// @Failure 400 {string} string "bad sign"
// @Router /webhooks/robokassa/result [post]
// @Router /webhooks/robokassa/result [get]
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(w, r)
	if err != nil {
		response.Text(w, http.StatusBadRequest, "bad request")
		return
	}

	ack, err := h.service.ProcessResult(r.Context(), fields)
	if err != nil {
		invID, _ := fields.Get("InvId")
		logger.LogWarn(r.Context(), "robokassa result rejected", "inv_id", invID, "error", err.Error())
		switch {
		case errors.Is(err, ErrInvalidSignature):
			response.Text(w, http.StatusBadRequest, "bad sign")
		case errors.Is(err, ErrCallbackInProgress):
			response.Text(w, http.StatusConflict, "in progress")
		case errors.Is(err, ErrPaymentNotFound), errors.Is(err, ErrAmountMismatch),
			errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrTestModeMismatch),
			errors.Is(err, ErrPaymentMismatch), errors.Is(err, robokassa.ErrInvalidArgument):
			response.Text(w, http.StatusBadRequest, "invalid callback")
		default:
			response.Text(w, http.StatusInternalServerError, "error")
		}
		return
	}
	response.Text(w, http.StatusOK, ack)
}

// Success handles GET/POST /webhooks/robokassa/success
func (h *Handler) Success(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(w, r)
	if err != nil {
		response.BadRequest(w, "invalid callback")
		return
	}
	payment, err := h.service.ProcessSuccess(r.Context(), fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"payment_id": payment.ID,
		"inv_id":     payment.InvID,
		"status":     payment.Status,
		"message":    "Оплата принята, проверяем статус",
	})
}

// Fail handles GET/POST /webhooks/robokassa/fail
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) {
	fields, err := callbackFields(w, r)
	if err != nil {
		response.BadRequest(w, "invalid callback")
		return
	}
	payment, err := h.service.ProcessFail(r.Context(), fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, map[string]any{
		"payment_id": payment.ID,
		"inv_id":     payment.InvID,
		"status":     payment.Status,
		"message":    "Платеж отменен или не завершен",
	})
}

// Routes returns payment router. All routes require an operator token; writes need a writer role.
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Get("/currencies", h.Currencies)
	r.Get("/methods", h.PaymentMethods)
	r.Get("/state/{invID}", h.GetState)
	r.Get("/{id}", h.GetPayment)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireWriter())
		r.Post("/", h.InitPayment)
		r.Post("/invoices", h.CreateInvoice)
		r.Delete("/invoices/{invID}", h.DeactivateInvoice)
	})

	return r
}

// WebhookRoutes returns webhook router (no auth, signature verification instead)
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/result", h.Result)
	r.Post("/result", h.Result)
	r.Get("/success", h.Success)
	r.Post("/success", h.Success)
	r.Get("/fail", h.Fail)
	r.Post("/fail", h.Fail)
	return r
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	var validationErr *robokassa.ValidationError
	switch {
	case errors.As(err, &validationErr):
		errorhandler.HandleValidation(ctx, w, validationErr.Fields)
	case errors.Is(err, robokassa.ErrInvalidArgument):
		errorhandler.HandleError(ctx, w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), err)
	case errors.Is(err, ErrInvalidSignature):
		errorhandler.HandleError(ctx, w, http.StatusBadRequest, "BAD_REQUEST", "bad sign", err)
	case errors.Is(err, ErrPaymentNotFound):
		errorhandler.HandleError(ctx, w, http.StatusNotFound, "NOT_FOUND", "payment not found", err)
	case errors.Is(err, ErrInvalidStatus):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "CONFLICT", err.Error(), err)
	case errors.Is(err, robokassa.ErrTestModeUnsupported):
		errorhandler.HandleError(ctx, w, http.StatusConflict, "CONFLICT", "operation is not available in test mode", err)
	case errorhandler.IsGatewayError(err):
		errorhandler.HandleGatewayError(ctx, w, err)
	default:
		errorhandler.HandleError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", err)
	}
}

// callbackFields keeps the gateway's parameter order: form bodies for POST, the query otherwise.
func callbackFields(w http.ResponseWriter, r *http.Request) (robokassa.CallbackFields, error) {
	raw := r.URL.RawQuery
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
		if err != nil {
			return nil, err
		}
		if len(body) > 0 {
			raw = string(body)
		}
	}
	return robokassa.ParseCallbackFields(raw)
}

func parseInvID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	invID, err := strconv.ParseInt(chi.URLParam(r, "invID"), 10, 64)
	if err != nil || invID <= 0 {
		response.BadRequest(w, "invalid invoice id")
		return 0, false
	}
	return invID, true
}
