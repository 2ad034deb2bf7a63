package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpExtractsPgxError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "carts_payment_code_key",
		TableName:      "carts",
		ColumnName:     "payment_code",
		Detail:         "Key (payment_code)=(CD-123) already exists.",
		Message:        "duplicate key value violates unique constraint",
	}
	dump := Dump(fmt.Errorf("save cart: %w", pgErr))

	if dump.PGCode != "23505" {
		t.Errorf("PGCode = %q, want 23505", dump.PGCode)
	}
	if dump.PGTable != "carts" {
		t.Errorf("PGTable = %q, want carts", dump.PGTable)
	}
	if dump.PGColumn != "payment_code" {
		t.Errorf("PGColumn = %q, want payment_code", dump.PGColumn)
	}
	if dump.PGConstraint != "carts_payment_code_key" {
		t.Errorf("PGConstraint = %q, want carts_payment_code_key", dump.PGConstraint)
	}
	if len(dump.Chain) < 2 {
		t.Errorf("expected the wrap chain to be recorded, got %v", dump.Chain)
	}
}

func TestDumpExtractsPqError(t *testing.T) {
	pqErr := &pq.Error{
		Code:       "23502",
		Table:      "orders",
		Column:     "service_id",
		Constraint: "orders_service_id_not_null",
		Message:    "null value in column",
	}
	dump := Dump(fmt.Errorf("insert order: %w", pqErr))

	if dump.PGCode != "23502" {
		t.Errorf("PGCode = %q, want 23502", dump.PGCode)
	}
	if dump.PGColumn != "service_id" {
		t.Errorf("PGColumn = %q, want service_id", dump.PGColumn)
	}
}

func TestDumpCarriesTypedCode(t *testing.T) {
	err := New(CodeStateConflict, "invalid status change")
	dump := Dump(err)
	if dump.Code != CodeStateConflict {
		t.Errorf("Code = %q, want %q", dump.Code, CodeStateConflict)
	}
	if dump.TopMessage == "" {
		t.Errorf("top message must not be empty")
	}
}
