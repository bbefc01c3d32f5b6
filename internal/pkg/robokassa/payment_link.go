package robokassa

import (
	"fmt"
	"net/url"
	"strconv"
)

// paymentSignatureFields builds the payment link signing sequence. Order is fixed by the gateway:
// login, OutSum, InvId, [UserIp], [Receipt], password #1, [ResultUrl2], [SuccessUrl2, method],
// [FailUrl2, method], then Shp_ fields sorted by key.
func paymentSignatureFields(m *Merchant, inv *Invoice, receipt string) []string {
	fields := []string{
		m.Login(),
		inv.OutSum.String(),
		strconv.FormatInt(inv.InvID, 10),
	}
	if inv.UserIP != "" {
		fields = append(fields, inv.UserIP)
	}
	if receipt != "" {
		fields = append(fields, receipt)
	}

	fields = append(fields, m.PrimarySecret())

	r := inv.Redirects
	if r.ResultURL2 != "" {
		fields = append(fields, url.QueryEscape(r.ResultURL2))
	}
	if r.SuccessURL2 != "" {
		fields = append(fields, url.QueryEscape(r.SuccessURL2), string(r.SuccessURL2Method))
	}
	if r.FailURL2 != "" {
		fields = append(fields, url.QueryEscape(r.FailURL2), string(r.FailURL2Method))
	}

	return append(fields, inv.UserFields.signingPairs()...)
}

// encodeReceipt returns the urlencoded receipt JSON, which is both signed and sent.
func encodeReceipt(r *Receipt) (string, error) {
	if r == nil {
		return "", nil
	}
	data, err := encodeJSON(r)
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	return url.QueryEscape(string(data)), nil
}

// paymentParams assembles the outgoing query in a stable order with SignatureValue last.
func paymentParams(m *Merchant, inv *Invoice) (Params, error) {
	receipt, err := encodeReceipt(inv.Receipt)
	if err != nil {
		return nil, err
	}

	var p Params
	p.Add("MerchantLogin", m.Login())
	p.Add("OutSum", inv.OutSum.String())
	p.Add("InvId", strconv.FormatInt(inv.InvID, 10))
	p.Add("Description", inv.Description)
	if m.IsTest() {
		p.Add("IsTest", "1")
	}

	if inv.IncCurrLabel != "" {
		p.Add("IncCurrLabel", inv.IncCurrLabel)
	}
	// The gateway expects one PaymentMethods parameter per method.
	for _, method := range inv.PaymentMethods {
		p.Add("PaymentMethods", method)
	}
	if inv.Culture != "" {
		p.Add("Culture", string(inv.Culture))
	}
	if inv.Encoding != "" {
		p.Add("Encoding", inv.Encoding)
	}
	if receipt != "" {
		p.Add("Receipt", receipt)
	}
	if inv.Email != "" {
		p.Add("Email", inv.Email)
	}
	if !inv.ExpirationDate.IsZero() {
		p.Add("ExpirationDate", inv.ExpirationDate.Format(expirationLayout))
	}
	if inv.UserIP != "" {
		p.Add("UserIp", inv.UserIP)
	}

	// Signed values go out in their signed (urlencoded) form: the gateway decodes the query
	// once and hashes what it receives.
	r := inv.Redirects
	if r.ResultURL2 != "" {
		p.Add("ResultUrl2", url.QueryEscape(r.ResultURL2))
	}
	if r.SuccessURL2 != "" {
		p.Add("SuccessUrl2", url.QueryEscape(r.SuccessURL2))
		p.Add("SuccessUrl2Method", string(r.SuccessURL2Method))
	}
	if r.FailURL2 != "" {
		p.Add("FailUrl2", url.QueryEscape(r.FailURL2))
		p.Add("FailUrl2Method", string(r.FailURL2Method))
	}

	for _, k := range inv.UserFields.SortedKeys() {
		p.Add(k, url.QueryEscape(inv.UserFields[k]))
	}

	p.Add("SignatureValue", m.Signer().Sign(paymentSignatureFields(m, inv, receipt)))
	return p, nil
}

// stateSignatureFields is the OpStateExt signing sequence: login, InvoiceID, password #2.
func stateSignatureFields(m *Merchant, invID int64) []string {
	return []string{m.Login(), strconv.FormatInt(invID, 10), m.SecondarySecret()}
}
