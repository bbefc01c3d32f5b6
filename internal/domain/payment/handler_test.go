package payment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mwork/robokassa-gateway/internal/middleware"
	"github.com/mwork/robokassa-gateway/internal/pkg/jwt"
	"github.com/mwork/robokassa-gateway/internal/pkg/response"
)

func newTestRouter(t *testing.T, isTest bool) (http.Handler, *Service, *jwt.Service, *fakeRepo) {
	t.Helper()
	svc, repo, _, _ := newTestService(t, isTest)
	jwtSvc := jwt.NewService("secret", time.Minute)
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Mount("/api/payments", h.Routes(middleware.Auth(jwtSvc)))
	r.Mount("/webhooks/robokassa", h.WebhookRoutes())
	return r, svc, jwtSvc, repo
}

func operatorToken(t *testing.T, jwtSvc *jwt.Service, role string) string {
	t.Helper()
	token, _, err := jwtSvc.GenerateOperatorToken(uuid.New(), "cashier", role)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return "Bearer " + token
}

func TestResultWebhookAcknowledgesFormPost(t *testing.T) {
	router, svc, _, repo := newTestRouter(t, false)
	out := initTestPayment(t, svc)

	body := signedCallback(newTestGateway(t, false), "pass2", "10.00", out.InvID, out.PaymentID)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/robokassa/result", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "OK1001" {
		t.Fatalf("expected 200 OK1001, got %d %q", w.Code, w.Body.String())
	}
	if repo.markPaid != 1 {
		t.Fatalf("expected payment to be marked paid")
	}
}

func TestResultWebhookRejectsBadSignature(t *testing.T) {
	router, svc, _, _ := newTestRouter(t, false)
	out := initTestPayment(t, svc)

	query := signedCallback(newTestGateway(t, false), "wrong", "10.00", out.InvID, out.PaymentID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/robokassa/result?"+query, nil))

	if w.Code != http.StatusBadRequest || w.Body.String() != "bad sign" {
		t.Fatalf("expected 400 bad sign, got %d %q", w.Code, w.Body.String())
	}
}

func TestInitPaymentEndpointValidation(t *testing.T) {
	router, _, jwtSvc, _ := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/", strings.NewReader(`{"out_sum":"abc","description":"x"}`))
	req.Header.Set("Authorization", operatorToken(t, jwtSvc, jwt.RoleOperator))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Details["out_sum"] == "" {
		t.Fatalf("expected out_sum detail, got %s", w.Body.String())
	}
}

func TestInitPaymentEndpointCreatesPayment(t *testing.T) {
	router, _, jwtSvc, _ := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/", strings.NewReader(`{"out_sum":"150.50","description":"Order 7","email":"buyer@example.com"}`))
	req.Header.Set("Authorization", operatorToken(t, jwtSvc, jwt.RoleAdmin))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data InitPaymentResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.InvID != 1001 || !strings.Contains(resp.Data.PaymentURL, "OutSum=150.50") {
		t.Fatalf("unexpected response: %+v", resp.Data)
	}
}

func TestWritesRequireWriterRole(t *testing.T) {
	router, _, jwtSvc, _ := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/payments/", strings.NewReader(`{"out_sum":"1.00","description":"x"}`))
	req.Header.Set("Authorization", operatorToken(t, jwtSvc, jwt.RoleViewer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCreateInvoiceEndpointInTestModeConflicts(t *testing.T) {
	router, _, jwtSvc, _ := newTestRouter(t, true)

	body := `{"out_sum":"10.00","description":"Order","items":[{"name":"Item","quantity":1,"cost":"10.00","tax":"none"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/payments/invoices", strings.NewReader(body))
	req.Header.Set("Authorization", operatorToken(t, jwtSvc, jwt.RoleOperator))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListReportsNextPage(t *testing.T) {
	router, svc, jwtSvc, _ := newTestRouter(t, false)
	initTestPayment(t, svc)
	initTestPayment(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/payments/?limit=1", nil)
	req.Header.Set("Authorization", operatorToken(t, jwtSvc, jwt.RoleViewer))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Meta == nil || !resp.Meta.HasNext || resp.Meta.Count != 1 {
		t.Fatalf("unexpected meta: %+v", resp.Meta)
	}
}

func TestResultWebhookRejectsMalformedAmount(t *testing.T) {
	router, svc, _, repo := newTestRouter(t, false)
	out := initTestPayment(t, svc)

	query := signedCallback(newTestGateway(t, false), "pass2", "1O.00", out.InvID, out.PaymentID)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhooks/robokassa/result?"+query, nil))

	if w.Code != http.StatusBadRequest || w.Body.String() != "invalid callback" {
		t.Fatalf("expected 400 invalid callback, got %d %q", w.Code, w.Body.String())
	}
	if repo.markPaid != 0 {
		t.Fatal("payment must stay pending")
	}
}
