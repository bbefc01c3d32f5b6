package robokassa

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mwork/robokassa-gateway/internal/pkg/validator"
)

// expirationLayout matches the gateway's ExpirationDate format (microsecond precision, no zone).
const expirationLayout = "2006-01-02T15:04:05.000000"

// RedirectParams are the per-payment overrides of the cabinet's Result/Success/Fail URLs.
type RedirectParams struct {
	ResultURL2        string `json:"result_url2" validate:"omitempty,url"`
	SuccessURL2       string `json:"success_url2" validate:"omitempty,url"`
	SuccessURL2Method string `json:"success_url2_method" validate:"http_method"`
	FailURL2          string `json:"fail_url2" validate:"omitempty,url"`
	FailURL2Method    string `json:"fail_url2_method" validate:"http_method"`
}

// Redirects are validated RedirectParams. A method is set only when its URL is.
type Redirects struct {
	ResultURL2        string
	SuccessURL2       string
	SuccessURL2Method RedirectMethod
	FailURL2          string
	FailURL2Method    RedirectMethod
}

func newRedirects(p RedirectParams) (Redirects, error) {
	r := Redirects{ResultURL2: p.ResultURL2, SuccessURL2: p.SuccessURL2, FailURL2: p.FailURL2}
	if r.SuccessURL2 != "" {
		m, err := ParseRedirectMethod(p.SuccessURL2Method, "SuccessUrl2Method")
		if err != nil {
			return Redirects{}, err
		}
		r.SuccessURL2Method = m
	}
	if r.FailURL2 != "" {
		m, err := ParseRedirectMethod(p.FailURL2Method, "FailUrl2Method")
		if err != nil {
			return Redirects{}, err
		}
		r.FailURL2Method = m
	}
	return r, nil
}

// InvoiceParams is the caller-facing payment link request.
type InvoiceParams struct {
	InvID          int64             `json:"inv_id" validate:"gte=0"`
	OutSum         string            `json:"out_sum" validate:"required,amount"`
	Description    string            `json:"description" validate:"required,max=100"`
	IncCurrLabel   string            `json:"inc_curr_label"`
	PaymentMethods []string          `json:"payment_methods"`
	Culture        string            `json:"culture" validate:"culture"`
	Encoding       string            `json:"encoding"`
	Email          string            `json:"email" validate:"omitempty,email"`
	ExpirationDate *time.Time        `json:"expiration_date"`
	UserIP         string            `json:"user_ip" validate:"omitempty,ipv4"`
	Receipt        *ReceiptParams    `json:"receipt"`
	UserFields     map[string]string `json:"user_fields"`
	RedirectParams
}

// Invoice is a validated payment link request. Optional protocol fields are named members,
// so their order in the signature and the query never depends on map iteration.
type Invoice struct {
	InvID          int64 // 0 lets the gateway assign the number
	OutSum         Amount
	Description    string
	IncCurrLabel   string
	PaymentMethods []string
	Culture        Culture
	Encoding       string
	Email          string
	ExpirationDate time.Time
	UserIP         string
	Receipt        *Receipt
	Redirects      Redirects
	UserFields     UserFields
}

// NewInvoice validates p and builds the invoice.
func NewInvoice(p InvoiceParams) (*Invoice, error) {
	if err := validateParams(&p); err != nil {
		return nil, err
	}

	outSum, err := ParseOutSum(p.OutSum)
	if err != nil {
		return nil, err
	}

	inv := &Invoice{
		InvID:          p.InvID,
		OutSum:         outSum,
		Description:    p.Description,
		IncCurrLabel:   p.IncCurrLabel,
		PaymentMethods: p.PaymentMethods,
		Encoding:       p.Encoding,
		Email:          p.Email,
		UserIP:         p.UserIP,
		UserFields:     NewUserFields(p.UserFields),
	}
	if p.ExpirationDate != nil {
		inv.ExpirationDate = *p.ExpirationDate
	}
	if p.Culture != "" {
		if inv.Culture, err = ParseCulture(p.Culture); err != nil {
			return nil, err
		}
	}
	if p.Receipt != nil {
		if inv.Receipt, err = NewReceipt(*p.Receipt); err != nil {
			return nil, err
		}
	}
	if inv.Redirects, err = newRedirects(p.RedirectParams); err != nil {
		return nil, err
	}
	return inv, nil
}

// ReceiptItemParams is one fiscal receipt line.
type ReceiptItemParams struct {
	Name             string `json:"name" validate:"required,max=128"`
	Quantity         int    `json:"quantity" validate:"required,gte=1"`
	Sum              string `json:"sum" validate:"required"`
	Cost             string `json:"cost"`
	Tax              string `json:"tax" validate:"required"`
	PaymentMethod    string `json:"payment_method"`
	PaymentObject    string `json:"payment_object"`
	NomenclatureCode string `json:"nomenclature_code"`
}

// ReceiptParams is the fiscal receipt attached to a payment link.
type ReceiptParams struct {
	Sno   string              `json:"sno"`
	Items []ReceiptItemParams `json:"items" validate:"required,min=1,dive"`
}

// ReceiptItem is serialized into the signed Receipt parameter.
type ReceiptItem struct {
	Name             string        `json:"name"`
	Quantity         int           `json:"quantity"`
	Sum              Amount        `json:"sum"`
	Tax              Tax           `json:"tax"`
	Cost             *Amount       `json:"cost,omitempty"`
	PaymentMethod    PaymentMethod `json:"payment_method,omitempty"`
	PaymentObject    PaymentObject `json:"payment_object,omitempty"`
	NomenclatureCode string        `json:"nomenclature_code,omitempty"`
}

type Receipt struct {
	Items []ReceiptItem `json:"items"`
	Sno   Sno           `json:"sno,omitempty"`
}

// NewReceipt validates the receipt. When cost is given, cost × quantity must equal sum.
func NewReceipt(p ReceiptParams) (*Receipt, error) {
	if err := validateParams(&p); err != nil {
		return nil, err
	}

	r := &Receipt{Items: make([]ReceiptItem, 0, len(p.Items))}
	if p.Sno != "" {
		sno, err := ParseSno(p.Sno)
		if err != nil {
			return nil, err
		}
		r.Sno = sno
	}

	for i, ip := range p.Items {
		item, err := newReceiptItem(ip)
		if err != nil {
			return nil, fmt.Errorf("receipt item %d: %w", i, err)
		}
		r.Items = append(r.Items, item)
	}
	return r, nil
}

func newReceiptItem(p ReceiptItemParams) (ReceiptItem, error) {
	sum, err := ParseItemAmount(p.Sum)
	if err != nil {
		return ReceiptItem{}, err
	}
	tax, err := ParseTax(p.Tax)
	if err != nil {
		return ReceiptItem{}, err
	}

	item := ReceiptItem{
		Name:             p.Name,
		Quantity:         p.Quantity,
		Sum:              sum,
		Tax:              tax,
		NomenclatureCode: p.NomenclatureCode,
	}
	if p.Cost != "" {
		cost, err := ParseItemAmount(p.Cost)
		if err != nil {
			return ReceiptItem{}, err
		}
		if !cost.Mul(p.Quantity).Equal(sum) {
			return ReceiptItem{}, invalidArgument("cost × quantity does not match sum")
		}
		item.Cost = &cost
	}
	if p.PaymentMethod != "" {
		if item.PaymentMethod, err = ParsePaymentMethod(p.PaymentMethod); err != nil {
			return ReceiptItem{}, err
		}
	}
	if p.PaymentObject != "" {
		if item.PaymentObject, err = ParsePaymentObject(p.PaymentObject); err != nil {
			return ReceiptItem{}, err
		}
	}
	return item, nil
}

// validateParams runs struct tags and folds the messages into one ErrInvalidArgument.
func validateParams(p any) error {
	msgs := validator.Messages(validator.Struct(p))
	if len(msgs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(msgs))
	for field := range msgs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+msgs[field])
	}
	return &ValidationError{Fields: msgs, msg: strings.Join(parts, "; ")}
}

// ValidationError carries per-field messages for API responses.
type ValidationError struct {
	Fields map[string]string
	msg    string
}

func (e *ValidationError) Error() string { return "robokassa: invalid argument: " + e.msg }

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }
