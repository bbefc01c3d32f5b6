package robokassa

import (
	"errors"
	"testing"
)

func newTestMerchant(t *testing.T, algo string) *Merchant {
	t.Helper()
	m, err := NewMerchant(MerchantConfig{
		Login:     "shop1",
		Password1: "pass1",
		Password2: "pass2",
		HashAlgo:  algo,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestSign_MD5Fixture(t *testing.T) {
	signer := newTestMerchant(t, "md5").Signer()

	fields := []string{"shop1", "10.00", "0", "pass1"}
	if base := signer.Base(fields); base != "shop1:10.00:0:pass1" {
		t.Fatalf("unexpected base string: %s", base)
	}
	if sig := signer.Sign(fields); sig != "f773cb174ff8eb04170cd9db483a6952" {
		t.Fatalf("unexpected signature: %s", sig)
	}
}

func TestSign_Deterministic(t *testing.T) {
	for _, algo := range HashAlgorithms() {
		signer := newTestMerchant(t, string(algo)).Signer()
		fields := []string{"shop1", "10.00", "7", "pass1", "Shp_a=1"}
		if signer.Sign(fields) != signer.Sign(fields) {
			t.Fatalf("%s: signature is not deterministic", algo)
		}
	}
}

func TestSign_OrderMatters(t *testing.T) {
	signer := newTestMerchant(t, "sha256").Signer()
	a := signer.Sign([]string{"shop1", "10.00", "7", "pass1"})
	b := signer.Sign([]string{"shop1", "7", "10.00", "pass1"})
	if a == b {
		t.Fatal("swapping fields must change the signature")
	}
}

func TestDigest_KnownVectors(t *testing.T) {
	cases := map[HashAlgorithm]string{
		HashMD5:    "900150983cd24fb0d6963f7d28e17f72",
		HashSHA1:   "a9993e364706816aba3e25717850c26c9cd0d89d",
		HashSHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
	}
	for algo, want := range cases {
		got, err := Digest("abc", algo)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", algo, err)
		}
		if got != want {
			t.Fatalf("%s: want %s, got %s", algo, want, got)
		}
	}
}

func TestDigest_RIPEMD160Registered(t *testing.T) {
	got, err := Digest("abc", HashRIPEMD160)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "8eb208f7e05d987a9b044a8e98c6b087f15a0bfc" {
		t.Fatalf("unexpected hash: %s", got)
	}
}

func TestNormalizeHashAlgorithm(t *testing.T) {
	algo, err := NormalizeHashAlgorithm(" SHA512 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if algo != HashSHA512 {
		t.Fatalf("unexpected algo: %s", algo)
	}

	if _, err := NormalizeHashAlgorithm("crc32"); !errors.Is(err, ErrUnsupportedHashAlgorithm) {
		t.Fatalf("expected ErrUnsupportedHashAlgorithm, got %v", err)
	}
}

func TestVerifySignature_CaseInsensitive(t *testing.T) {
	if !VerifySignature("aBcD", "ABcd") {
		t.Fatal("expected case-insensitive comparison")
	}
	if VerifySignature("abcd", "abce") {
		t.Fatal("different signatures must not match")
	}
}
