package robokassa

import (
	"crypto"
	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	_ "golang.org/x/crypto/ripemd160"
)

// HashAlgorithm is the digest the merchant selected in the Robokassa cabinet.
type HashAlgorithm string

const (
	HashMD5       HashAlgorithm = "md5"
	HashRIPEMD160 HashAlgorithm = "ripemd160"
	HashSHA1      HashAlgorithm = "sha1"
	HashSHA256    HashAlgorithm = "sha256"
	HashSHA384    HashAlgorithm = "sha384"
	HashSHA512    HashAlgorithm = "sha512"
)

// defaultAlgo is used when the merchant config leaves the algorithm empty.
const defaultAlgo = HashSHA256

// signatureSeparator joins signing fields. Values are not escaped.
const signatureSeparator = ":"

var hashFuncs = map[HashAlgorithm]crypto.Hash{
	HashMD5:       crypto.MD5,
	HashRIPEMD160: crypto.RIPEMD160,
	HashSHA1:      crypto.SHA1,
	HashSHA256:    crypto.SHA256,
	HashSHA384:    crypto.SHA384,
	HashSHA512:    crypto.SHA512,
}

// HashAlgorithms lists supported algorithms in the order Robokassa documents them.
func HashAlgorithms() []HashAlgorithm {
	return []HashAlgorithm{HashMD5, HashRIPEMD160, HashSHA1, HashSHA256, HashSHA384, HashSHA512}
}

// NormalizeHashAlgorithm accepts any casing ("SHA256", "sha256") and rejects unknown names.
func NormalizeHashAlgorithm(raw string) (HashAlgorithm, error) {
	algo := HashAlgorithm(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := hashFuncs[algo]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHashAlgorithm, raw)
	}
	return algo, nil
}

// Hash returns the crypto.Hash backing the algorithm.
func (a HashAlgorithm) Hash() (crypto.Hash, bool) {
	h, ok := hashFuncs[a]
	return h, ok && h.Available()
}

// Upper is the algorithm name as it appears in the envelope header.
func (a HashAlgorithm) Upper() string {
	return strings.ToUpper(string(a))
}

// Digest hashes data with algo and returns lowercase hex.
func Digest(data string, algo HashAlgorithm) (string, error) {
	h, ok := algo.Hash()
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedHashAlgorithm, string(algo))
	}
	hasher := h.New()
	hasher.Write([]byte(data))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Signer produces canonical signatures: the ordered fields joined by ":" and digested.
// A Signer is only obtainable from a Merchant, so its algorithm is already validated.
type Signer struct {
	algo HashAlgorithm
	hash crypto.Hash
}

func newSigner(algo HashAlgorithm) (*Signer, error) {
	h, ok := algo.Hash()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHashAlgorithm, string(algo))
	}
	return &Signer{algo: algo, hash: h}, nil
}

// Algorithm returns the configured digest.
func (s *Signer) Algorithm() HashAlgorithm {
	return s.algo
}

// Base returns the exact string that Sign hashes.
func (s *Signer) Base(fields []string) string {
	return strings.Join(fields, signatureSeparator)
}

// Sign digests the ordered fields. Reordering fields changes the result.
func (s *Signer) Sign(fields []string) string {
	hasher := s.hash.New()
	hasher.Write([]byte(s.Base(fields)))
	return hex.EncodeToString(hasher.Sum(nil))
}

// VerifySignature compares two hex digests case-insensitively in constant time.
func VerifySignature(expectedHex, receivedHex string) bool {
	expected := strings.ToLower(strings.TrimSpace(expectedHex))
	received := strings.ToLower(strings.TrimSpace(receivedHex))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
