package robokassa

import (
	"fmt"
	"time"
)

// InvoiceItemParams is one line of an invoice created through the JSON API.
type InvoiceItemParams struct {
	Name             string `json:"name" validate:"required,max=128"`
	Quantity         int    `json:"quantity" validate:"gte=0"`
	Cost             string `json:"cost" validate:"required"`
	Tax              string `json:"tax" validate:"required"`
	PaymentMethod    string `json:"payment_method"`
	PaymentObject    string `json:"payment_object"`
	NomenclatureCode string `json:"nomenclature_code"`
}

// InvoiceRequestParams is the caller-facing CreateInvoice request.
type InvoiceRequestParams struct {
	InvoiceType      string              `json:"invoice_type" validate:"omitempty,oneof=OneTime Reusable"`
	InvID            int64               `json:"inv_id" validate:"gte=0"`
	OutSum           string              `json:"out_sum" validate:"required,amount"`
	Description      string              `json:"description" validate:"required,max=100"`
	MerchantComments string              `json:"merchant_comments"`
	Items            []InvoiceItemParams `json:"items" validate:"required,min=1,dive"`
	IncCurrLabel     string              `json:"inc_curr_label"`
	PaymentMethods   []string            `json:"payment_methods"`
	Culture          string              `json:"culture" validate:"culture"`
	Encoding         string              `json:"encoding"`
	ExpirationDate   *time.Time          `json:"expiration_date"`
	UserFields       map[string]string   `json:"user_fields"`
	RedirectParams
}

// InvoiceItem is serialized as-is into the envelope payload. Sum is always Cost × Quantity.
type InvoiceItem struct {
	Name             string        `json:"Name"`
	Quantity         int           `json:"Quantity"`
	Sum              Amount        `json:"Sum"`
	Tax              Tax           `json:"Tax"`
	Cost             Amount        `json:"Cost"`
	PaymentMethod    PaymentMethod `json:"PaymentMethod,omitempty"`
	PaymentObject    PaymentObject `json:"PaymentObject,omitempty"`
	NomenclatureCode string        `json:"NomenclatureCode,omitempty"`
}

// InvoiceRequest is a validated CreateInvoice request. MerchantLogin is filled in by the client.
type InvoiceRequest struct {
	InvoiceType      InvoiceType
	InvID            int64 // 0 serializes as null, letting the gateway assign the number
	OutSum           Amount
	Description      string
	MerchantComments string
	Items            []InvoiceItem
	IncCurrLabel     string
	PaymentMethods   []string
	Culture          Culture
	Encoding         string
	ExpirationDate   time.Time
	Redirects        Redirects
	UserFields       UserFields
}

func NewInvoiceRequest(p InvoiceRequestParams) (*InvoiceRequest, error) {
	if err := validateParams(&p); err != nil {
		return nil, err
	}

	invoiceType, err := ParseInvoiceType(p.InvoiceType)
	if err != nil {
		return nil, err
	}
	outSum, err := ParseOutSum(p.OutSum)
	if err != nil {
		return nil, err
	}

	req := &InvoiceRequest{
		InvoiceType:      invoiceType,
		InvID:            p.InvID,
		OutSum:           outSum,
		Description:      p.Description,
		MerchantComments: p.MerchantComments,
		Items:            make([]InvoiceItem, 0, len(p.Items)),
		IncCurrLabel:     p.IncCurrLabel,
		PaymentMethods:   p.PaymentMethods,
		Encoding:         p.Encoding,
		UserFields:       NewUserFields(p.UserFields),
	}
	if p.ExpirationDate != nil {
		req.ExpirationDate = *p.ExpirationDate
	}
	if p.Culture != "" {
		if req.Culture, err = ParseCulture(p.Culture); err != nil {
			return nil, err
		}
	}
	if req.Redirects, err = newRedirects(p.RedirectParams); err != nil {
		return nil, err
	}

	for i, ip := range p.Items {
		item, err := newInvoiceItem(ip)
		if err != nil {
			return nil, fmt.Errorf("invoice item %d: %w", i, err)
		}
		req.Items = append(req.Items, item)
	}
	return req, nil
}

func newInvoiceItem(p InvoiceItemParams) (InvoiceItem, error) {
	quantity := p.Quantity
	if quantity == 0 {
		quantity = 1
	}
	cost, err := ParseItemAmount(p.Cost)
	if err != nil {
		return InvoiceItem{}, err
	}
	tax, err := ParseTax(p.Tax)
	if err != nil {
		return InvoiceItem{}, err
	}

	item := InvoiceItem{
		Name:             p.Name,
		Quantity:         quantity,
		Sum:              cost.Mul(quantity),
		Tax:              tax,
		Cost:             cost,
		NomenclatureCode: p.NomenclatureCode,
	}
	if p.PaymentMethod != "" {
		if item.PaymentMethod, err = ParsePaymentMethod(p.PaymentMethod); err != nil {
			return InvoiceItem{}, err
		}
	}
	if p.PaymentObject != "" {
		if item.PaymentObject, err = ParsePaymentObject(p.PaymentObject); err != nil {
			return InvoiceItem{}, err
		}
	}
	return item, nil
}

// createInvoiceBody is the JSON payload signed into the envelope.
type createInvoiceBody struct {
	MerchantLogin     string            `json:"MerchantLogin"`
	InvoiceType       InvoiceType       `json:"InvoiceType"`
	InvID             *int64            `json:"InvId"`
	OutSum            Amount            `json:"OutSum"`
	Description       string            `json:"Description"`
	MerchantComments  string            `json:"MerchantComments"`
	InvoiceItems      []InvoiceItem     `json:"InvoiceItems"`
	IncCurrLabel      string            `json:"IncCurrLabel,omitempty"`
	PaymentMethods    []string          `json:"PaymentMethods,omitempty"`
	Culture           Culture           `json:"Culture,omitempty"`
	Encoding          string            `json:"Encoding,omitempty"`
	ExpirationDate    string            `json:"ExpirationDate,omitempty"`
	ResultURL2        string            `json:"ResultUrl2,omitempty"`
	SuccessURL2       string            `json:"SuccessUrl2,omitempty"`
	SuccessURL2Method RedirectMethod    `json:"SuccessUrl2Method,omitempty"`
	FailURL2          string            `json:"FailUrl2,omitempty"`
	FailURL2Method    RedirectMethod    `json:"FailUrl2Method,omitempty"`
	UserFields        map[string]string `json:"UserFields,omitempty"`
}

func (r *InvoiceRequest) body(login string) createInvoiceBody {
	b := createInvoiceBody{
		MerchantLogin:     login,
		InvoiceType:       r.InvoiceType,
		OutSum:            r.OutSum,
		Description:       r.Description,
		MerchantComments:  r.MerchantComments,
		InvoiceItems:      r.Items,
		IncCurrLabel:      r.IncCurrLabel,
		PaymentMethods:    r.PaymentMethods,
		Culture:           r.Culture,
		Encoding:          r.Encoding,
		ResultURL2:        r.Redirects.ResultURL2,
		SuccessURL2:       r.Redirects.SuccessURL2,
		SuccessURL2Method: r.Redirects.SuccessURL2Method,
		FailURL2:          r.Redirects.FailURL2,
		FailURL2Method:    r.Redirects.FailURL2Method,
	}
	if r.InvID > 0 {
		id := r.InvID
		b.InvID = &id
	}
	if !r.ExpirationDate.IsZero() {
		b.ExpirationDate = r.ExpirationDate.Format(expirationLayout)
	}
	if len(r.UserFields) > 0 {
		b.UserFields = r.UserFields
	}
	return b
}

// deactivateInvoiceBody is the DeactivateInvoice payload.
type deactivateInvoiceBody struct {
	MerchantLogin string `json:"MerchantLogin"`
	InvID         int64  `json:"InvId"`
}
