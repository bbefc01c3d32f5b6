package robokassa

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestAmount_EqualDifferentScale(t *testing.T) {
	a, err := ParseOutSum("100.10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := ParseCallbackAmount("100.100000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("amounts should be numerically equal")
	}
}

func TestParseOutSum_FormatsTwoDecimals(t *testing.T) {
	a, err := ParseOutSum("10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.String() != "10.00" {
		t.Fatalf("unexpected string: %s", a.String())
	}
}

func TestParseOutSum_Rejects(t *testing.T) {
	for _, raw := range []string{"", "-1", "1.234", "1,50", "abc", "0", "0.00"} {
		if _, err := ParseOutSum(raw); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("%q: expected ErrInvalidArgument, got %v", raw, err)
		}
	}
}

func TestParseItemAmount_MaxEightIntegerDigits(t *testing.T) {
	if _, err := ParseItemAmount("99999999.99"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseItemAmount("123456789"); err == nil {
		t.Fatal("expected error for nine integer digits")
	}
}

func TestParseCallbackAmount_Comma(t *testing.T) {
	a, err := ParseCallbackAmount("100,50")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.String() != "100.50" {
		t.Fatalf("unexpected amount: %s", a)
	}
}

func TestAmount_JSONNumber(t *testing.T) {
	a, _ := ParseOutSum("5.5")
	data, err := json.Marshal(map[string]Amount{"sum": a})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"sum":5.50}` {
		t.Fatalf("unexpected json: %s", data)
	}

	var back Amount
	if err := json.Unmarshal([]byte(`"5.50"`), &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !back.Equal(a) {
		t.Fatalf("expected %s, got %s", a, back)
	}
}

func TestParseCallbackAmount_Malformed(t *testing.T) {
	if _, err := ParseCallbackAmount("ten"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
