package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDiagnosePgxViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_shop_orders_active_worker", TableName: "shop_orders"}
	err := Wrap(CodeConflict, fmt.Errorf("claim: %w", pgErr), "already assigned elsewhere")

	d := Diagnose(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %q", d.Code)
	}
	if d.PG == nil || d.PG.Constraint != "ux_shop_orders_active_worker" {
		t.Fatalf("expected pg detail, got %+v", d.PG)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected wrap chain, got %v", d.Chain)
	}

	fields := d.Fields()
	if fields["pg_code"] != "23505" || fields["error_code"] != string(CodeConflict) {
		t.Fatalf("unexpected fields %v", fields)
	}
	if _, ok := fields["pg_column"]; ok {
		t.Fatalf("empty pg fields should be omitted")
	}
}

func TestDiagnoseLibPQ(t *testing.T) {
	err := fmt.Errorf("goose: %w", &pq.Error{Code: "42P07", Table: "orders"})
	d := Diagnose(err)
	if d.PG == nil || d.PG.Code != "42P07" || d.PG.Table != "orders" {
		t.Fatalf("unexpected pg detail %+v", d.PG)
	}
	if d.Code != "" {
		t.Fatalf("untyped error should have no code")
	}
}

func TestDiagnosePlainError(t *testing.T) {
	if d := Diagnose(nil); d.Chain != nil || d.PG != nil {
		t.Fatalf("nil error should give empty diagnosis")
	}
	d := Diagnose(fmt.Errorf("boom"))
	if d.PG != nil || len(d.Chain) != 1 {
		t.Fatalf("unexpected diagnosis %+v", d)
	}
	if _, ok := d.Fields()["pg_code"]; ok {
		t.Fatalf("no pg fields expected")
	}
}
