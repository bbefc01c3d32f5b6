package robokassa

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMerchant_Defaults(t *testing.T) {
	m, err := NewMerchant(MerchantConfig{Login: " shop1 ", Password1: "p1", Password2: "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Login() != "shop1" {
		t.Fatalf("expected trimmed login, got %q", m.Login())
	}
	if m.HashAlgorithm() != HashSHA256 {
		t.Fatalf("expected sha256 by default, got %s", m.HashAlgorithm())
	}
}

func TestNewMerchant_TestModeSubstitutesSecrets(t *testing.T) {
	m, err := NewMerchant(MerchantConfig{
		Login:         "shop1",
		Password1:     "live1",
		Password2:     "live2",
		TestPassword1: "test1",
		TestPassword2: "test2",
		IsTest:        true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PrimarySecret() != "test1" || m.SecondarySecret() != "test2" {
		t.Fatalf("expected test secrets, got %q/%q", m.PrimarySecret(), m.SecondarySecret())
	}
}

func TestNewMerchant_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfg  MerchantConfig
		want error
	}{
		{"missing login", MerchantConfig{Password1: "p1", Password2: "p2"}, ErrMissingLogin},
		{"missing password2", MerchantConfig{Login: "shop1", Password1: "p1"}, ErrMissingSecret},
		{"test mode without test secrets", MerchantConfig{Login: "shop1", Password1: "p1", Password2: "p2", IsTest: true}, ErrMissingSecret},
		{"unknown algorithm", MerchantConfig{Login: "shop1", Password1: "p1", Password2: "p2", HashAlgo: "gost"}, ErrUnsupportedHashAlgorithm},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewMerchant(tc.cfg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestMerchant_StringHidesSecrets(t *testing.T) {
	m := newTestMerchant(t, "md5")
	if s := m.String(); strings.Contains(s, "pass1") || strings.Contains(s, "pass2") {
		t.Fatalf("secrets leaked: %s", s)
	}
}
