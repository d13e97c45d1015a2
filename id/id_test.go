package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/receivables/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"CustomerID", id.NewCustomerID, "cust_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"AllocationID", id.NewAllocationID, "alloc_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"CustomerID", id.NewCustomerID, id.ParseCustomerID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"AllocationID", id.NewAllocationID, id.ParseAllocationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseCustomerID rejects txn_", id.NewTransactionID().String(), id.ParseCustomerID},
		{"ParseTransactionID rejects alloc_", id.NewAllocationID().String(), id.ParseTransactionID},
		{"ParseAllocationID rejects cust_", id.NewCustomerID().String(), id.ParseAllocationID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestCompare(t *testing.T) {
	a := id.NewTransactionID()
	b := id.NewTransactionID()

	if a.Compare(a) != 0 {
		t.Error("an ID should compare equal to itself")
	}
	if a.Compare(b) != -b.Compare(a) {
		t.Error("Compare should be antisymmetric")
	}
	if id.Nil.Compare(a) >= 0 {
		t.Error("Nil should sort before any generated ID")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewCustomerID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if err := restored.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after unmarshaling empty text")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewTransactionID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if err := scanned.Scan(val); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	if err := scanned.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}
