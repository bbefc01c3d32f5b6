package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwork/robokassa-gateway/internal/config"
	"github.com/mwork/robokassa-gateway/internal/domain/payment"
	"github.com/mwork/robokassa-gateway/internal/pkg/robokassa"
)

func TestRouterSeparatesOperatorAPIAndWebhooks(t *testing.T) {
	client, err := robokassa.NewClient(robokassa.Config{Merchant: robokassa.MerchantConfig{
		Login: "shop1", Password1: "pass1", Password2: "pass2",
	}})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	handler := payment.NewHandler(payment.NewService(nil, client, payment.NewCallbackGuard(nil, 0)))

	denyAll := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

	r := newRouter(&config.Config{AllowedOrigins: []string{"http://localhost:3000"}}, denyAll, handler, ok)

	t.Run("health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("operator api requires auth", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/payments/", nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
	})

	t.Run("unknown route gets json 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), `"code":"NOT_FOUND"`) {
			t.Fatalf("expected json 404, got %d %q", rr.Code, rr.Body.String())
		}
	})

	t.Run("result webhook is public but signed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhooks/robokassa/result?OutSum=1.00&InvId=1&SignatureValue=00", nil))
		if rr.Code != http.StatusBadRequest || rr.Body.String() != "bad sign" {
			t.Fatalf("expected 400 bad sign, got %d %q", rr.Code, rr.Body.String())
		}
	})
}

func TestRobokassaConfigFromEnvConfig(t *testing.T) {
	cfg := &config.Config{RoboKassaMerchantLogin: "shop1", RoboKassaTestMode: true, RoboKassaRetryMax: 2}
	rc := robokassaConfig(cfg)
	if rc.Merchant.Login != "shop1" || !rc.Merchant.IsTest || rc.RetryMax != 2 {
		t.Fatalf("unexpected client config: %+v", rc)
	}
}
