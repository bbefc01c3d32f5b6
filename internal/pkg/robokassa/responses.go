package robokassa

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mwork/robokassa-gateway/internal/pkg/validator"
)

// Root elements of the XML web service replies.
const (
	rootOperationState = "OperationStateResponse"
	rootCurrencies     = "CurrenciesList"
	rootPaymentMethods = "PaymentMethodsList"
)

// ResultCode is the web service result block; Code "0" means success.
type ResultCode struct {
	Code        string `json:"Code" validate:"required"`
	Description string `json:"Description"`
}

// OperationState codes reported by OpStateExt.
const (
	StateInitiated = "5"
	StateCancelled = "10"
	StateHeld      = "20"
	StateProcessed = "50"
	StateReturned  = "60"
	StateSuspended = "80"
	StateCompleted = "100"
)

type OperationState struct {
	Code        string `json:"Code" validate:"required"`
	RequestDate string `json:"RequestDate"`
	StateDate   string `json:"StateDate"`
}

type PaymentMethodInfo struct {
	Code        string `json:"Code" validate:"required"`
	Description string `json:"Description"`
}

type OperationInfo struct {
	IncCurrLabel  string            `json:"IncCurrLabel"`
	IncSum        string            `json:"IncSum"`
	IncAccount    string            `json:"IncAccount"`
	PaymentMethod PaymentMethodInfo `json:"PaymentMethod"`
	OutCurrLabel  string            `json:"OutCurrLabel"`
	OutSum        string            `json:"OutSum"`
	OpKey         string            `json:"OpKey"`
	BankCardRRN   string            `json:"BankCardRRN"`
}

// Field is an echoed Shp_ parameter. Value is URL-decoded.
type Field struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type OperationUserFields struct {
	Field []Field `json:"Field"`
}

// OperationStateResponse is the OpStateExt reply.
type OperationStateResponse struct {
	Result     ResultCode           `json:"Result"`
	State      *OperationState      `json:"State"`
	Info       *OperationInfo       `json:"Info"`
	UserFields *OperationUserFields `json:"UserFields"`
}

// Paid reports whether the operation completed.
func (r *OperationStateResponse) Paid() bool {
	return r.State != nil && r.State.Code == StateCompleted
}

type Currency struct {
	Label    string `json:"Label" validate:"required"`
	Name     string `json:"Name"`
	Alias    string `json:"Alias"`
	MinValue string `json:"MinValue"`
	MaxValue string `json:"MaxValue"`
}

type CurrencyItems struct {
	Currency []Currency `json:"Currency" validate:"dive"`
}

type CurrencyGroup struct {
	Code        string        `json:"Code" validate:"required"`
	Description string        `json:"Description"`
	Items       CurrencyItems `json:"Items"`
}

type CurrencyGroups struct {
	Group []CurrencyGroup `json:"Group" validate:"dive"`
}

// CurrenciesList is the GetCurrencies reply.
type CurrenciesList struct {
	Result ResultCode     `json:"Result"`
	Groups CurrencyGroups `json:"Groups"`
}

type PaymentMethodItems struct {
	Method []PaymentMethodInfo `json:"Method" validate:"dive"`
}

// PaymentMethodsList is the GetPaymentMethods reply.
type PaymentMethodsList struct {
	Result  ResultCode         `json:"Result"`
	Methods PaymentMethodItems `json:"Methods"`
}

// CreatedInvoice is a successful CreateInvoice reply.
type CreatedInvoice struct {
	ID        string `json:"id" validate:"required"`
	InvID     int64  `json:"invId"`
	URL       string `json:"url" validate:"required"`
	IsSuccess bool   `json:"isSuccess"`
}

// invoiceAPIStatus is the part every invoice API reply carries.
type invoiceAPIStatus struct {
	IsSuccess *bool  `json:"isSuccess" validate:"required"`
	Message   string `json:"message"`
}

// decodeXML parses an XML reply whose root must be root and decodes it into out.
func decodeXML(op string, data []byte, root string, out any, opts ...NormalizeOption) error {
	el, err := ParseXML(data)
	if err != nil {
		return &DecodeError{Operation: op, Err: err}
	}
	if el.Name != root {
		return &DecodeError{Operation: op, Err: fmt.Errorf("unexpected root element %q, want %q", el.Name, root)}
	}

	tree, _ := Normalize(el, opts...).Get(root)
	raw, err := json.Marshal(tree.Interface())
	if err != nil {
		return &DecodeError{Operation: op, Err: err}
	}
	return decodeJSON(op, raw, out)
}

// decodeJSON unmarshals data into out and enforces its validate tags.
func decodeJSON(op string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Operation: op, Err: err}
	}
	if msgs := validator.Messages(validator.Struct(out)); len(msgs) > 0 {
		return &DecodeError{Operation: op, Err: fmt.Errorf("missing or invalid keys: %v", msgs)}
	}
	return nil
}

func decodeOperationState(data []byte) (*OperationStateResponse, error) {
	var resp OperationStateResponse
	if err := decodeXML("OpStateExt", data, rootOperationState, &resp, Repeated("Field")); err != nil {
		return nil, err
	}
	if resp.UserFields != nil {
		for i, f := range resp.UserFields.Field {
			if decoded, err := url.QueryUnescape(f.Value); err == nil {
				resp.UserFields.Field[i].Value = decoded
			}
		}
	}
	return &resp, nil
}

func decodeCurrencies(data []byte) (*CurrenciesList, error) {
	var resp CurrenciesList
	if err := decodeXML("GetCurrencies", data, rootCurrencies, &resp, Repeated("Group", "Currency")); err != nil {
		return nil, err
	}
	return &resp, nil
}

func decodePaymentMethods(data []byte) (*PaymentMethodsList, error) {
	var resp PaymentMethodsList
	if err := decodeXML("GetPaymentMethods", data, rootPaymentMethods, &resp, Repeated("Method")); err != nil {
		return nil, err
	}
	return &resp, nil
}

// decodeInvoiceStatus turns isSuccess=false into a GatewayError.
func decodeInvoiceStatus(op string, data []byte) error {
	var status invoiceAPIStatus
	if err := decodeJSON(op, data, &status); err != nil {
		return err
	}
	if !*status.IsSuccess {
		return &GatewayError{Operation: op, Message: status.Message}
	}
	return nil
}

func decodeCreatedInvoice(data []byte) (*CreatedInvoice, error) {
	const op = "CreateInvoice"
	if err := decodeInvoiceStatus(op, data); err != nil {
		return nil, err
	}
	var created CreatedInvoice
	if err := decodeJSON(op, data, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
