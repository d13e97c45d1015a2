package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Subtract below zero", func() Money { return USD(100).Subtract(USD(150)) }, USD(-50)},
		{"Negate", func() Money { return USD(100).Negate() }, USD(-100)},
		{"Min first", func() Money { return USD(60).Min(USD(100)) }, USD(60)},
		{"Min second", func() Money { return USD(100).Min(USD(40)) }, USD(40)},
		{"Zero accumulator adopts currency", func() Money { return Money{}.Add(EUR(5)) }, EUR(5)},
		{"New lowercases", func() Money { return New(7, "USD") }, USD(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.op(); !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyPredicates(t *testing.T) {
	tests := []struct {
		name       string
		money      Money
		isZero     bool
		isPositive bool
		isNegative bool
	}{
		{"Zero", USD(0), true, false, false},
		{"Positive", USD(100), false, true, false},
		{"Negative", USD(-100), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.IsZero(); got != tt.isZero {
				t.Errorf("IsZero: got %v, want %v", got, tt.isZero)
			}
			if got := tt.money.IsPositive(); got != tt.isPositive {
				t.Errorf("IsPositive: got %v, want %v", got, tt.isPositive)
			}
			if got := tt.money.IsNegative(); got != tt.isNegative {
				t.Errorf("IsNegative: got %v, want %v", got, tt.isNegative)
			}
		})
	}
}

func TestMoneyFormat(t *testing.T) {
	tests := []struct {
		money    Money
		major    string
		expected string
	}{
		{USD(4900), "49.00", "49.00 USD"},
		{USD(1), "0.01", "0.01 USD"},
		{USD(-4900), "-49.00", "-49.00 USD"},
		{USD(-1), "-0.01", "-0.01 USD"},
		{JPY(12345), "12345", "12345 JPY"},
		{Money{Amount: 250}, "2.50", "2.50"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.major {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.major)
			}
			if got := tt.money.String(); got != tt.expected {
				t.Errorf("String: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":4900,"currency":"usd","display":"49.00 USD"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}
}

func TestSum(t *testing.T) {
	tests := []struct {
		name     string
		values   []Money
		expected Money
	}{
		{"Empty", nil, Zero("usd")},
		{"Multiple", []Money{USD(100), USD(200), USD(300)}, USD(600)},
		{"With negatives", []Money{USD(100), USD(-150)}, USD(-50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Sum("usd", tt.values...); !result.Equal(tt.expected) {
				t.Errorf("Sum: got %v, want %v", result, tt.expected)
			}
		})
	}
}
