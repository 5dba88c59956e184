package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// maxChain bounds how many wrapped layers Diagnose reports.
const maxChain = 8

// Diagnosis is the log-side view of an error: the typed code if any, the wrap
// chain, and the Postgres fields when the root cause came from the driver.
type Diagnosis struct {
	Code  Code
	Chain []string
	PG    *PGDetail
}

type PGDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
}

func Diagnose(err error) Diagnosis {
	var d Diagnosis
	if err == nil {
		return d
	}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil && len(d.Chain) < maxChain; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T", e))
	}
	d.PG = pgDetail(err)
	return d
}

// Fields flattens the diagnosis for logger.WithFields.
func (d Diagnosis) Fields() map[string]any {
	fields := map[string]any{"error_chain": d.Chain}
	if d.Code != "" {
		fields["error_code"] = string(d.Code)
	}
	if d.PG != nil {
		fields["pg_code"] = d.PG.Code
		if d.PG.Constraint != "" {
			fields["pg_constraint"] = d.PG.Constraint
		}
		if d.PG.Table != "" {
			fields["pg_table"] = d.PG.Table
		}
		if d.PG.Column != "" {
			fields["pg_column"] = d.PG.Column
		}
		if d.PG.Detail != "" {
			fields["pg_detail"] = d.PG.Detail
		}
	}
	return fields
}

// pgDetail understands both drivers: pgx behind gorm and lib/pq behind raw sql.DB callers.
func pgDetail(err error) *PGDetail {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
		}
	}
	return nil
}
