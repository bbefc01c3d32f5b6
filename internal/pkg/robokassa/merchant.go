package robokassa

import (
	"fmt"
	"strings"
)

// MerchantConfig is the raw shop configuration from the Robokassa cabinet.
type MerchantConfig struct {
	Login         string // MerchantLogin
	Password1     string // Password #1: payment links, SuccessURL, invoice API
	Password2     string // Password #2: ResultURL, XML web service
	TestPassword1 string
	TestPassword2 string
	IsTest        bool
	HashAlgo      string // md5, ripemd160, sha1, sha256, sha384, sha512 (default sha256)
}

// Merchant is the immutable, validated merchant identity. In test mode the test passwords
// are already substituted, so callers never branch on the mode when signing.
type Merchant struct {
	login     string
	password1 string
	password2 string
	isTest    bool
	algo      HashAlgorithm
	signer    *Signer
}

// NewMerchant validates cfg and resolves the active password pair.
func NewMerchant(cfg MerchantConfig) (*Merchant, error) {
	login := strings.TrimSpace(cfg.Login)
	if login == "" {
		return nil, ErrMissingLogin
	}

	algo := defaultAlgo
	if strings.TrimSpace(cfg.HashAlgo) != "" {
		normalized, err := NormalizeHashAlgorithm(cfg.HashAlgo)
		if err != nil {
			return nil, err
		}
		algo = normalized
	}

	password1, password2 := cfg.Password1, cfg.Password2
	names := [2]string{"password1", "password2"}
	if cfg.IsTest {
		password1, password2 = cfg.TestPassword1, cfg.TestPassword2
		names = [2]string{"test_password1", "test_password2"}
	}
	if password1 == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecret, names[0])
	}
	if password2 == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingSecret, names[1])
	}

	signer, err := newSigner(algo)
	if err != nil {
		return nil, err
	}

	return &Merchant{
		login:     login,
		password1: password1,
		password2: password2,
		isTest:    cfg.IsTest,
		algo:      algo,
		signer:    signer,
	}, nil
}

func (m *Merchant) Login() string { return m.login }

// PrimarySecret is password #1 of the active mode.
func (m *Merchant) PrimarySecret() string { return m.password1 }

// SecondarySecret is password #2 of the active mode.
func (m *Merchant) SecondarySecret() string { return m.password2 }

func (m *Merchant) IsTest() bool { return m.isTest }

func (m *Merchant) HashAlgorithm() HashAlgorithm { return m.algo }

func (m *Merchant) Signer() *Signer { return m.signer }

// String never prints the passwords.
func (m *Merchant) String() string {
	return fmt.Sprintf("Merchant{login=%s algo=%s test=%t}", m.login, m.algo, m.isTest)
}
