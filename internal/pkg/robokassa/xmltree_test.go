package robokassa

import "testing"

func mustParseXML(t *testing.T, doc string) *Element {
	t.Helper()
	el, err := ParseXML([]byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return el
}

func TestNormalize_AttributeOnlyNode(t *testing.T) {
	tree := Normalize(mustParseXML(t, `<Result Code="55"/>`))

	node, ok := tree.Get("Result")
	if !ok || node.Kind != KindObject {
		t.Fatalf("expected object under root key, got %+v", tree)
	}
	if len(node.Object) != 1 {
		t.Fatalf("expected exactly one key, got %v", node.Keys)
	}
	code, ok := node.Get("Code")
	if !ok || code.Kind != KindScalar || code.Scalar != "55" {
		t.Fatalf("expected Code=55, got %+v", code)
	}
}

func TestNormalize_SingleRepeatedChildIsArray(t *testing.T) {
	doc := `<Methods><Method Code="BankCard" Description="Card"/></Methods>`

	plain, _ := Normalize(mustParseXML(t, doc)).Get("Methods")
	if m, _ := plain.Get("Method"); m.Kind != KindObject {
		t.Fatalf("without Repeated a single child stays an object, got kind %d", m.Kind)
	}

	tree, _ := Normalize(mustParseXML(t, doc), Repeated("Method")).Get("Methods")
	methods, ok := tree.Get("Method")
	if !ok || methods.Kind != KindArray || len(methods.Array) != 1 {
		t.Fatalf("expected one-element array, got %+v", methods)
	}
	if code, _ := methods.Array[0].Get("Code"); code.Scalar != "BankCard" {
		t.Fatalf("unexpected element: %+v", methods.Array[0])
	}
}

func TestNormalize_DuplicateSiblingsAreArray(t *testing.T) {
	tree, _ := Normalize(mustParseXML(t, `<Items><Currency Label="A"/><Currency Label="B"/></Items>`)).Get("Items")
	currencies, _ := tree.Get("Currency")
	if currencies.Kind != KindArray || len(currencies.Array) != 2 {
		t.Fatalf("expected two-element array, got %+v", currencies)
	}
}

func TestNormalize_ElementWinsOverAttribute(t *testing.T) {
	tree, _ := Normalize(mustParseXML(t, `<State Code="attr"><Code>elem</Code></State>`)).Get("State")
	code, _ := tree.Get("Code")
	if code.Scalar != "elem" {
		t.Fatalf("expected element value to win, got %q", code.Scalar)
	}
	if len(tree.Keys) != 1 {
		t.Fatalf("expected a single Code key, got %v", tree.Keys)
	}
}

func TestNormalize_TextWithAttributes(t *testing.T) {
	tree, _ := Normalize(mustParseXML(t, `<Sum Currency="RUB">10.00</Sum>`)).Get("Sum")
	text, _ := tree.Get("#text")
	cur, _ := tree.Get("Currency")
	if text.Scalar != "10.00" || cur.Scalar != "RUB" {
		t.Fatalf("unexpected node: %+v", tree)
	}
}

func TestParseXML_DropsNamespaceDeclarations(t *testing.T) {
	el := mustParseXML(t, `<?xml version="1.0" encoding="utf-8"?>
<CurrenciesList xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns="http://merchant.roboxchange.com/WebService/">
  <Result><Code>0</Code></Result>
</CurrenciesList>`)
	if el.Name != "CurrenciesList" || len(el.Attrs) != 0 {
		t.Fatalf("unexpected root: %+v", el)
	}
}

func TestParseXML_Malformed(t *testing.T) {
	if _, err := ParseXML([]byte(`<Result><Code>0</Result>`)); err == nil {
		t.Fatal("expected error for mismatched tags")
	}
	if _, err := ParseXML([]byte(``)); err == nil {
		t.Fatal("expected error for empty document")
	}
}
