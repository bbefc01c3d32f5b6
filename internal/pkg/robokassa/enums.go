package robokassa

import (
	"slices"
	"strings"
)

// Culture is the language of the payment page and of XML web service replies.
type Culture string

const (
	CultureEN Culture = "en"
	CultureRU Culture = "ru"
)

var cultures = []Culture{CultureEN, CultureRU}

func ParseCulture(raw string) (Culture, error) {
	c := Culture(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(cultures, c) {
		return "", invalidArgument("the %q parameter must be one of %s", "Culture", joinOptions(cultures))
	}
	return c, nil
}

// InvoiceType selects a one-time or a reusable invoice link in the invoice API.
type InvoiceType string

const (
	InvoiceOneTime  InvoiceType = "OneTime"
	InvoiceReusable InvoiceType = "Reusable"
)

func ParseInvoiceType(raw string) (InvoiceType, error) {
	switch InvoiceType(raw) {
	case "":
		return InvoiceOneTime, nil
	case InvoiceOneTime, InvoiceReusable:
		return InvoiceType(raw), nil
	}
	return "", invalidArgument("the %q parameter must be one of %s", "InvoiceType", joinOptions([]InvoiceType{InvoiceOneTime, InvoiceReusable}))
}

// RedirectMethod is the HTTP method the gateway uses for SuccessUrl2/FailUrl2.
type RedirectMethod string

const (
	MethodGET  RedirectMethod = "GET"
	MethodPOST RedirectMethod = "POST"
)

// ParseRedirectMethod upper-cases raw; empty input yields GET.
func ParseRedirectMethod(raw, field string) (RedirectMethod, error) {
	m := RedirectMethod(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case "":
		return MethodGET, nil
	case MethodGET, MethodPOST:
		return m, nil
	}
	return "", invalidArgument("the %q parameter must be GET or POST", field)
}

// Tax is the VAT rate of a fiscal item.
type Tax string

const (
	TaxNone   Tax = "none"
	TaxVAT0   Tax = "vat0"
	TaxVAT5   Tax = "vat5"
	TaxVAT105 Tax = "vat105"
	TaxVAT7   Tax = "vat7"
	TaxVAT107 Tax = "vat107"
	TaxVAT10  Tax = "vat10"
	TaxVAT110 Tax = "vat110"
	TaxVAT20  Tax = "vat20"
	TaxVAT120 Tax = "vat120"
)

var taxes = []Tax{TaxNone, TaxVAT0, TaxVAT5, TaxVAT105, TaxVAT7, TaxVAT107, TaxVAT10, TaxVAT110, TaxVAT20, TaxVAT120}

func ParseTax(raw string) (Tax, error) {
	t := Tax(raw)
	if !slices.Contains(taxes, t) {
		return "", invalidArgument("the %q parameter must be one of %s", "tax", joinOptions(taxes))
	}
	return t, nil
}

// Sno is the taxation system of the receipt.
type Sno string

const (
	SnoOSN              Sno = "osn"
	SnoUSNIncome        Sno = "usn_income"
	SnoUSNIncomeOutcome Sno = "usn_income_outcome"
	SnoESN              Sno = "esn"
	SnoPatent           Sno = "patent"
)

var snos = []Sno{SnoOSN, SnoUSNIncome, SnoUSNIncomeOutcome, SnoESN, SnoPatent}

func ParseSno(raw string) (Sno, error) {
	s := Sno(raw)
	if !slices.Contains(snos, s) {
		return "", invalidArgument("the %q parameter must be one of %s", "sno", joinOptions(snos))
	}
	return s, nil
}

// PaymentMethod is the fiscal settlement method of an item.
type PaymentMethod string

const (
	PaymentFullPrepayment PaymentMethod = "full_prepayment"
	PaymentPrepayment     PaymentMethod = "prepayment"
	PaymentFullPayment    PaymentMethod = "full_payment"
	PaymentAdvance        PaymentMethod = "advance"
	PaymentPartialPayment PaymentMethod = "partial_payment"
	PaymentCredit         PaymentMethod = "credit"
	PaymentCreditPayment  PaymentMethod = "credit_payment"
)

var paymentMethods = []PaymentMethod{
	PaymentFullPrepayment, PaymentPrepayment, PaymentFullPayment, PaymentAdvance,
	PaymentPartialPayment, PaymentCredit, PaymentCreditPayment,
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(raw)
	if !slices.Contains(paymentMethods, m) {
		return "", invalidArgument("the %q parameter must be one of %s", "payment_method", joinOptions(paymentMethods))
	}
	return m, nil
}

// PaymentObject is the fiscal subject of an item.
type PaymentObject string

const (
	ObjectCommodity            PaymentObject = "commodity"
	ObjectExcise               PaymentObject = "excise"
	ObjectJob                  PaymentObject = "job"
	ObjectService              PaymentObject = "service"
	ObjectGamblingBet          PaymentObject = "gambling_bet"
	ObjectGamblingPrize        PaymentObject = "gambling_prize"
	ObjectLottery              PaymentObject = "lottery"
	ObjectLotteryPrize         PaymentObject = "lottery_prize"
	ObjectIntellectualActivity PaymentObject = "intellectual_activity"
	ObjectPayment              PaymentObject = "payment"
	ObjectAgentCommission      PaymentObject = "agent_commission"
	ObjectComposite            PaymentObject = "composite"
	ObjectResortFee            PaymentObject = "resort_fee"
	ObjectAnother              PaymentObject = "another"
	ObjectPropertyRight        PaymentObject = "property_right"
	ObjectNonOperatingGain     PaymentObject = "non-operating_gain"
	ObjectInsurancePremium     PaymentObject = "insurance_premium"
	ObjectSalesTax             PaymentObject = "sales_tax"
)

var paymentObjects = []PaymentObject{
	ObjectCommodity, ObjectExcise, ObjectJob, ObjectService, ObjectGamblingBet, ObjectGamblingPrize,
	ObjectLottery, ObjectLotteryPrize, ObjectIntellectualActivity, ObjectPayment, ObjectAgentCommission,
	ObjectComposite, ObjectResortFee, ObjectAnother, ObjectPropertyRight, ObjectNonOperatingGain,
	ObjectInsurancePremium, ObjectSalesTax,
}

func ParsePaymentObject(raw string) (PaymentObject, error) {
	o := PaymentObject(raw)
	if !slices.Contains(paymentObjects, o) {
		return "", invalidArgument("the %q parameter must be one of %s", "payment_object", joinOptions(paymentObjects))
	}
	return o, nil
}

func joinOptions[T ~string](options []T) string {
	parts := make([]string, len(options))
	for i, o := range options {
		parts[i] = string(o)
	}
	return strings.Join(parts, ", ")
}
