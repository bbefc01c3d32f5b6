package robokassa

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newServerClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{
		Merchant:      MerchantConfig{Login: "shop1", Password1: "pass1", Password2: "pass2", HashAlgo: "md5"},
		WebServiceURL: srv.URL + "/WebService",
		InvoiceAPIURL: srv.URL + "/api",
		RetryMax:      1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c, &calls
}

func TestOpStateExt(t *testing.T) {
	c, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/WebService/OpStateExt" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if r.PostForm.Get("InvoiceID") != "42" || r.PostForm.Get("Signature") != "fe44bc4d3601541d84971bf93e795001" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "text/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="utf-8"?>
<OperationStateResponse xmlns="http://merchant.roboxchange.com/WebService/">
  <Result><Code>0</Code></Result>
  <State><Code>100</Code><RequestDate>2026-01-02T10:00:00+03:00</RequestDate><StateDate>2026-01-02T10:01:00+03:00</StateDate></State>
  <Info>
    <IncCurrLabel>BankCardPSR</IncCurrLabel><IncSum>10.00</IncSum><IncAccount>4111****1111</IncAccount>
    <PaymentMethod><Code>BankCard</Code><Description>Bank card</Description></PaymentMethod>
    <OutCurrLabel>BankCardPSR</OutCurrLabel><OutSum>10.00</OutSum><OpKey>KEY</OpKey>
  </Info>
  <UserFields><Field><Name>Shp_note</Name><Value>a%20b%2Fc</Value></Field></UserFields>
</OperationStateResponse>`)
	})

	resp, err := c.OpStateExt(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Result.Code != "0" || !resp.Paid() {
		t.Fatalf("unexpected state: %+v", resp)
	}
	if resp.Info == nil || resp.Info.PaymentMethod.Code != "BankCard" {
		t.Fatalf("unexpected info: %+v", resp.Info)
	}
	if resp.UserFields == nil || len(resp.UserFields.Field) != 1 || resp.UserFields.Field[0].Value != "a b/c" {
		t.Fatalf("unexpected user fields: %+v", resp.UserFields)
	}
}

func TestGetCurrencies_SingleItemsAreSlices(t *testing.T) {
	c, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("Language") != "en" {
			t.Errorf("unexpected language: %v", r.PostForm)
		}
		io.WriteString(w, `<CurrenciesList>
  <Result><Code>0</Code></Result>
  <Groups>
    <Group Code="BankCard" Description="Cards">
      <Items><Currency Label="BankCardPSR" Alias="BankCard" Name="Card" MinValue="1" MaxValue="100000"/></Items>
    </Group>
  </Groups>
</CurrenciesList>`)
	})

	resp, err := c.GetCurrencies(context.Background(), "EN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Groups.Group) != 1 || len(resp.Groups.Group[0].Items.Currency) != 1 {
		t.Fatalf("unexpected groups: %+v", resp.Groups)
	}
	if cur := resp.Groups.Group[0].Items.Currency[0]; cur.Label != "BankCardPSR" || cur.MaxValue != "100000" {
		t.Fatalf("unexpected currency: %+v", cur)
	}
}

func TestGetPaymentMethods(t *testing.T) {
	c, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<PaymentMethodsList><Result><Code>0</Code></Result><Methods>`+
			`<Method Code="BankCard" Description="Card"/><Method Code="SBP" Description="FPS"/></Methods></PaymentMethodsList>`)
	})

	resp, err := c.GetPaymentMethods(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Methods.Method) != 2 || resp.Methods.Method[1].Code != "SBP" {
		t.Fatalf("unexpected methods: %+v", resp.Methods)
	}
}

func TestGetPaymentMethods_InvalidLanguage(t *testing.T) {
	c, calls := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {})
	if _, err := c.GetPaymentMethods(context.Background(), "de"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatal("no request expected")
	}
}

func TestDecodeErrorIsNotTransportError(t *testing.T) {
	cases := map[string]string{
		"malformed":  `<PaymentMethodsList><Methods>`,
		"wrong root": `<CurrenciesList><Result><Code>0</Code></Result></CurrenciesList>`,
		"no result":  `<PaymentMethodsList><Methods/></PaymentMethodsList>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c, calls := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
			_, err := c.GetPaymentMethods(context.Background(), "ru")
			if !errors.Is(err, ErrDecode) || errors.Is(err, ErrTransport) {
				t.Fatalf("expected decode error only, got %v", err)
			}
			if atomic.LoadInt32(calls) != 1 {
				t.Fatalf("decode errors must not be retried, got %d calls", *calls)
			}
		})
	}
}

func TestTransport_RetriesServerErrors(t *testing.T) {
	c, calls := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetCurrencies(context.Background(), "ru")
	var terr *TransportError
	if !errors.As(err, &terr) || terr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected transport error with status 502, got %v", err)
	}
	if errors.Is(err, ErrDecode) {
		t.Fatal("transport error must not be a decode error")
	}
	if got := atomic.LoadInt32(calls); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestTransport_ClientErrorsAreNotRetried(t *testing.T) {
	c, calls := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	if _, err := c.GetCurrencies(context.Background(), "ru"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := atomic.LoadInt32(calls); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestCreateInvoice(t *testing.T) {
	var c *Client
	c, _ = newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/CreateInvoice" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var envelope string
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			t.Errorf("body must be a JSON string: %v", err)
		}
		parsed, err := NewEnvelopeBuilder(c.Merchant()).Parse(envelope)
		if err != nil {
			t.Errorf("invalid envelope: %v", err)
			return
		}
		var body map[string]any
		parsed.Decode(&body)
		if body["MerchantLogin"] != "shop1" || body["InvoiceType"] != "Reusable" {
			t.Errorf("unexpected payload: %v", body)
		}
		io.WriteString(w, `{"id":"abc","invId":5,"url":"https://auth.robokassa.ru/Merchant/Invoice/abc","isSuccess":true}`)
	})

	req, err := NewInvoiceRequest(InvoiceRequestParams{
		InvoiceType: "Reusable",
		OutSum:      "10",
		Description: "Plan",
		Items:       []InvoiceItemParams{{Name: "Plan", Quantity: 1, Cost: "10", Tax: "none"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created, err := c.CreateInvoice(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID != "abc" || created.InvID != 5 || !created.IsSuccess {
		t.Fatalf("unexpected invoice: %+v", created)
	}
}

func TestCreateInvoice_GatewayFailure(t *testing.T) {
	c, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"isSuccess":false,"message":"duplicate InvId"}`)
	})
	req, _ := NewInvoiceRequest(InvoiceRequestParams{
		OutSum: "1", Description: "x",
		Items: []InvoiceItemParams{{Name: "x", Cost: "1", Tax: "none"}},
	})

	_, err := c.CreateInvoice(context.Background(), req)
	var gerr *GatewayError
	if !errors.As(err, &gerr) || gerr.Message != "duplicate InvId" {
		t.Fatalf("expected gateway error, got %v", err)
	}
}

func TestDeactivateInvoice_MissingStatusIsDecodeError(t *testing.T) {
	c, _ := newServerClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"?"}`)
	})
	if err := c.DeactivateInvoice(context.Background(), 5); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestAuthenticatedCalls_RefuseTestMode(t *testing.T) {
	c := newTestClient(t, MerchantConfig{
		Login: "shop1", Password1: "p1", Password2: "p2",
		TestPassword1: "t1", TestPassword2: "t2", IsTest: true,
	})
	ctx := context.Background()

	if _, err := c.OpStateExt(ctx, 1); !errors.Is(err, ErrTestModeUnsupported) {
		t.Fatalf("OpStateExt: expected ErrTestModeUnsupported, got %v", err)
	}
	if _, err := c.CreateInvoice(ctx, &InvoiceRequest{}); !errors.Is(err, ErrTestModeUnsupported) {
		t.Fatalf("CreateInvoice: expected ErrTestModeUnsupported, got %v", err)
	}
	if err := c.DeactivateInvoice(ctx, 1); !errors.Is(err, ErrTestModeUnsupported) {
		t.Fatalf("DeactivateInvoice: expected ErrTestModeUnsupported, got %v", err)
	}
}
