package robokassa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidEnvelope is returned by Parse for malformed or forged envelopes.
var ErrInvalidEnvelope = errors.New("robokassa: invalid envelope")

const envelopeType = "JWT"

// EnvelopeHeader is the first envelope segment.
type EnvelopeHeader struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Envelope is a decoded, verified envelope.
type Envelope struct {
	Header  EnvelopeHeader
	Payload []byte
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// EnvelopeBuilder signs JSON API requests. Unlike payment link signatures, the segments are
// HMAC-signed with the key "login:password1" instead of hashing the secret as a field.
type EnvelopeBuilder struct {
	algo   HashAlgorithm
	method *jwt.SigningMethodHMAC
	key    []byte
}

func NewEnvelopeBuilder(m *Merchant) *EnvelopeBuilder {
	h, _ := m.HashAlgorithm().Hash()
	return &EnvelopeBuilder{
		algo:   m.HashAlgorithm(),
		method: &jwt.SigningMethodHMAC{Name: m.HashAlgorithm().Upper(), Hash: h},
		key:    []byte(m.Login() + ":" + m.PrimarySecret()),
	}
}

// Build returns "header.payload.signature", each segment standard base64.
func (b *EnvelopeBuilder) Build(body any) (string, error) {
	header, err := encodeJSON(EnvelopeHeader{Type: envelopeType, Algorithm: b.algo.Upper()})
	if err != nil {
		return "", fmt.Errorf("encode envelope header: %w", err)
	}
	payload, err := encodeJSON(body)
	if err != nil {
		return "", fmt.Errorf("encode envelope payload: %w", err)
	}

	signingString := base64.StdEncoding.EncodeToString(header) + "." + base64.StdEncoding.EncodeToString(payload)
	sig, err := b.method.Sign(signingString, b.key)
	if err != nil {
		return "", fmt.Errorf("sign envelope: %w", err)
	}
	return signingString + "." + base64.StdEncoding.EncodeToString(sig), nil
}

// Parse splits, verifies and decodes an envelope produced with the same merchant.
func (b *EnvelopeBuilder) Parse(envelope string) (*Envelope, error) {
	parts := strings.Split(envelope, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrInvalidEnvelope, len(parts))
	}

	sig, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrInvalidEnvelope, err)
	}
	if err := b.method.Verify(parts[0]+"."+parts[1], sig, b.key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}

	rawHeader, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidEnvelope, err)
	}
	var header EnvelopeHeader
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidEnvelope, err)
	}
	if header.Type != envelopeType || header.Algorithm != b.algo.Upper() {
		return nil, fmt.Errorf("%w: unexpected header %s/%s", ErrInvalidEnvelope, header.Type, header.Algorithm)
	}

	payload, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidEnvelope, err)
	}
	return &Envelope{Header: header, Payload: payload}, nil
}

// encodeJSON marshals without HTML escaping and without the encoder's trailing newline.
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
