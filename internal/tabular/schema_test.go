package tabular

import (
	"errors"
	"testing"
)

func TestContractAcceptsExactAndOptionalHeaders(t *testing.T) {
	contract := Contract{
		Required: []string{"part_number", "description"},
		Optional: []string{"brand"},
	}

	if err := contract.Validate([]string{"Description", "part_number"}); err != nil {
		t.Fatalf("order-independent match failed: %v", err)
	}
	if err := contract.Validate([]string{"part_number", "description", "brand"}); err != nil {
		t.Fatalf("optional header rejected: %v", err)
	}
}

func TestContractReportsAllMissingHeadersTogether(t *testing.T) {
	contract := Contract{Required: []string{"part_number", "description", "dealer_price"}}

	err := contract.Validate([]string{"part_number"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Missing) != 2 {
		t.Fatalf("expected 2 missing headers, got %v", schemaErr.Missing)
	}
}

func TestContractRejectsUnexpectedHeaders(t *testing.T) {
	contract := Contract{Required: []string{"part_number"}}

	err := contract.Validate([]string{"part_number", "internal_notes"})
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Unexpected) != 1 || schemaErr.Unexpected[0] != "internal_notes" {
		t.Fatalf("unexpected headers not reported: %v", schemaErr.Unexpected)
	}
}

func TestContractIgnoresBlankHeaderCells(t *testing.T) {
	contract := Contract{Required: []string{"code"}}
	if err := contract.Validate([]string{"code", ""}); err != nil {
		t.Fatalf("blank header cell should be ignored: %v", err)
	}
}
