package robokassa

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Gateway endpoints.
const (
	DefaultPaymentURL    = "https://auth.robokassa.ru/Merchant/Index.aspx"
	DefaultWebServiceURL = "https://auth.robokassa.ru/Merchant/WebService/Service.asmx"
	DefaultInvoiceAPIURL = "https://services.robokassa.ru/InvoiceServiceWebApi/api"
)

// Config holds RoboKassa configuration
type Config struct {
	Merchant      MerchantConfig
	PaymentURL    string
	WebServiceURL string
	InvoiceAPIURL string
	Timeout       time.Duration
	RetryMax      int
}

// Client represents RoboKassa payment gateway client. Safe for concurrent use.
type Client struct {
	merchant      *Merchant
	envelopes     *EnvelopeBuilder
	verifier      *CallbackVerifier
	transport     *transport
	paymentURL    string
	webServiceURL string
	invoiceAPIURL string
}

// NewClient validates the merchant configuration; configuration errors are fatal.
func NewClient(cfg Config) (*Client, error) {
	merchant, err := NewMerchant(cfg.Merchant)
	if err != nil {
		return nil, err
	}
	return &Client{
		merchant:      merchant,
		envelopes:     NewEnvelopeBuilder(merchant),
		verifier:      NewCallbackVerifier(merchant),
		transport:     newTransport(cfg.Timeout, cfg.RetryMax),
		paymentURL:    orDefault(cfg.PaymentURL, DefaultPaymentURL),
		webServiceURL: strings.TrimRight(orDefault(cfg.WebServiceURL, DefaultWebServiceURL), "/"),
		invoiceAPIURL: strings.TrimRight(orDefault(cfg.InvoiceAPIURL, DefaultInvoiceAPIURL), "/"),
	}, nil
}

func (c *Client) Merchant() *Merchant { return c.merchant }

// CreatePaymentLink returns the signed payment page URL. No I/O.
func (c *Client) CreatePaymentLink(inv *Invoice) (string, error) {
	if inv == nil {
		return "", invalidArgument("invoice is nil")
	}
	params, err := paymentParams(c.merchant, inv)
	if err != nil {
		return "", err
	}
	return c.paymentURL + "?" + params.Encode(), nil
}

// CreateInvoice creates an invoice link through the JSON API. Not available in test mode.
func (c *Client) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*CreatedInvoice, error) {
	if err := c.requireLive(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, invalidArgument("invoice request is nil")
	}

	data, err := c.postEnvelope(ctx, "CreateInvoice", req.body(c.merchant.Login()))
	if err != nil {
		return nil, err
	}
	return decodeCreatedInvoice(data)
}

// DeactivateInvoice cancels an unpaid invoice. Not available in test mode.
func (c *Client) DeactivateInvoice(ctx context.Context, invID int64) error {
	if err := c.requireLive(); err != nil {
		return err
	}
	if invID <= 0 {
		return invalidArgument("the %q parameter must be a positive integer", "InvId")
	}

	data, err := c.postEnvelope(ctx, "DeactivateInvoice", deactivateInvoiceBody{
		MerchantLogin: c.merchant.Login(),
		InvID:         invID,
	})
	if err != nil {
		return err
	}
	return decodeInvoiceStatus("DeactivateInvoice", data)
}

// OpStateExt queries the payment state of invID. Not available in test mode.
func (c *Client) OpStateExt(ctx context.Context, invID int64) (*OperationStateResponse, error) {
	if err := c.requireLive(); err != nil {
		return nil, err
	}

	var form Params
	form.Add("MerchantLogin", c.merchant.Login())
	form.Add("InvoiceID", strconv.FormatInt(invID, 10))
	form.Add("Signature", c.merchant.Signer().Sign(stateSignatureFields(c.merchant, invID)))

	data, err := c.postXML(ctx, "OpStateExt", form)
	if err != nil {
		return nil, err
	}
	return decodeOperationState(data)
}

// GetCurrencies lists payment currencies for the merchant. lang is "ru" or "en".
func (c *Client) GetCurrencies(ctx context.Context, lang string) (*CurrenciesList, error) {
	form, err := c.languageForm(lang)
	if err != nil {
		return nil, err
	}
	data, err := c.postXML(ctx, "GetCurrencies", form)
	if err != nil {
		return nil, err
	}
	return decodeCurrencies(data)
}

// GetPaymentMethods lists payment methods for the merchant. lang is "ru" or "en".
func (c *Client) GetPaymentMethods(ctx context.Context, lang string) (*PaymentMethodsList, error) {
	form, err := c.languageForm(lang)
	if err != nil {
		return nil, err
	}
	data, err := c.postXML(ctx, "GetPaymentMethods", form)
	if err != nil {
		return nil, err
	}
	return decodePaymentMethods(data)
}

// CheckResult verifies a Result URL notification (password #2).
func (c *Client) CheckResult(fields CallbackFields) bool {
	return c.verifier.Verify(fields, c.merchant.SecondarySecret())
}

// CheckSuccess verifies a Success URL redirect (password #1).
func (c *Client) CheckSuccess(fields CallbackFields) bool {
	return c.verifier.Verify(fields, c.merchant.PrimarySecret())
}

func (c *Client) requireLive() error {
	if c.merchant.IsTest() {
		return ErrTestModeUnsupported
	}
	return nil
}

func (c *Client) languageForm(lang string) (Params, error) {
	if lang == "" {
		lang = string(CultureRU)
	}
	culture, err := ParseCulture(lang)
	if err != nil {
		return nil, fmt.Errorf("lang: %w", err)
	}
	var form Params
	form.Add("MerchantLogin", c.merchant.Login())
	form.Add("Language", string(culture))
	return form, nil
}

func (c *Client) postXML(ctx context.Context, op string, form Params) ([]byte, error) {
	return c.transport.post(ctx, op, c.webServiceURL+"/"+op, contentTypeForm, []byte(form.Encode()))
}

// postEnvelope signs body and sends the envelope as a JSON string literal.
func (c *Client) postEnvelope(ctx context.Context, op string, body any) ([]byte, error) {
	envelope, err := c.envelopes.Build(body)
	if err != nil {
		return nil, err
	}
	payload, err := encodeJSON(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return c.transport.post(ctx, op, c.invoiceAPIURL+"/"+op, contentTypeJSON, payload)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
