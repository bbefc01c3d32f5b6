package robokassa

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CallbackFields are inbound callback parameters in payload order. A map would lose the order
// the gateway echoes Shp_ fields in, and that order is part of the signature.
type CallbackFields []Param

// ParseCallbackFields parses a raw query string or form body preserving key order.
func ParseCallbackFields(raw string) (CallbackFields, error) {
	var fields CallbackFields
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("invalid callback key %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("invalid callback value for %q: %w", key, err)
		}
		fields = append(fields, Param{Key: key, Value: value})
	}
	return fields, nil
}

// Get returns the first value whose key matches name case-insensitively.
func (f CallbackFields) Get(name string) (string, bool) {
	for _, p := range f {
		if strings.EqualFold(p.Key, name) {
			return p.Value, true
		}
	}
	return "", false
}

// UserFields returns the Shp_ fields in payload order.
func (f CallbackFields) UserFields() []Param {
	var out []Param
	for _, p := range f {
		if IsUserFieldKey(p.Key) {
			out = append(out, p)
		}
	}
	return out
}

// Callback is the typed view of a Result or Success notification.
type Callback struct {
	OutSum         string
	InvID          int64
	SignatureValue string
	IsTest         bool
	Fields         CallbackFields
}

// Amount parses OutSum leniently; the gateway may echo extra zeros.
func (c *Callback) Amount() (Amount, error) {
	return ParseCallbackAmount(c.OutSum)
}

// UserField returns a Shp_ value by exact key.
func (c *Callback) UserField(key string) string {
	for _, p := range c.Fields.UserFields() {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// NewCallback extracts the required fields. It does not verify the signature.
func NewCallback(fields CallbackFields) (*Callback, error) {
	outSum, _ := fields.Get("OutSum")
	invIDRaw, _ := fields.Get("InvId")
	signature, _ := fields.Get("SignatureValue")

	if outSum == "" {
		return nil, invalidArgument("OutSum is required")
	}
	if invIDRaw == "" {
		return nil, invalidArgument("InvId is required")
	}
	if signature == "" {
		return nil, invalidArgument("SignatureValue is required")
	}
	invID, err := strconv.ParseInt(invIDRaw, 10, 64)
	if err != nil {
		return nil, invalidArgument("invalid InvId %q", invIDRaw)
	}

	isTest, _ := fields.Get("IsTest")
	return &Callback{
		OutSum:         outSum,
		InvID:          invID,
		SignatureValue: signature,
		IsTest:         isTest == "1",
		Fields:         fields,
	}, nil
}

// CallbackVerifier recomputes OutSum:InvId:secret[:Shp_k=v...] with Shp_ fields in payload
// order (not sorted) and compares it to SignatureValue.
type CallbackVerifier struct {
	signer *Signer
}

func NewCallbackVerifier(m *Merchant) *CallbackVerifier {
	return &CallbackVerifier{signer: m.Signer()}
}

// Fields returns the signing sequence for fields and secret, or false when a required
// field is missing.
func (v *CallbackVerifier) Fields(fields CallbackFields, secret string) ([]string, bool) {
	outSum, ok := fields.Get("OutSum")
	if !ok {
		return nil, false
	}
	invID, ok := fields.Get("InvId")
	if !ok {
		return nil, false
	}

	seq := []string{outSum, invID, secret}
	for _, p := range fields.UserFields() {
		seq = append(seq, p.Key+"="+p.Value)
	}
	return seq, true
}

// Verify never errors: a missing field or a mismatch is simply false.
func (v *CallbackVerifier) Verify(fields CallbackFields, secret string) bool {
	if secret == "" {
		return false
	}
	received, ok := fields.Get("SignatureValue")
	if !ok || received == "" {
		return false
	}
	seq, ok := v.Fields(fields, secret)
	if !ok {
		return false
	}
	return VerifySignature(v.signer.Sign(seq), received)
}

// ResultAck is the body the Result URL must answer with for the gateway to stop retrying.
func ResultAck(invID int64) string {
	return "OK" + strconv.FormatInt(invID, 10)
}
