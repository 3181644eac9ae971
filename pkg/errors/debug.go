package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// UpstreamCoder is implemented by errors that carry a code assigned by an
// external system, such as the payment gateway.
type UpstreamCoder interface {
	UpstreamCode() string
}

// UpstreamBodier is implemented by errors that keep an unparsed upstream
// response body. The body is logged, never returned to clients.
type UpstreamBodier interface {
	UpstreamBody() string
}

// ErrorDump flattens an error chain into log fields. It is never sent to clients.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable"`

	Chain []string `json:"chain,omitempty"`

	// ContextErr is "canceled" or "deadline_exceeded" when the chain ends in a context error.
	ContextErr   string `json:"context_err,omitempty"`
	UpstreamCode string `json:"upstream_code,omitempty"`
	UpstreamBody string `json:"upstream_body,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Fields returns the non-empty parts of the dump keyed for structured logs.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":           d.TopMessage,
		"error_retryable": d.Retryable,
	}
	add := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	add("error_code", string(d.Code))
	add("error_context", d.ContextErr)
	add("upstream_code", d.UpstreamCode)
	add("upstream_body", d.UpstreamBody)
	add("pg_code", d.PGCode)
	add("pg_constraint", d.PGConstraint)
	add("pg_table", d.PGTable)
	add("pg_column", d.PGColumn)
	add("pg_detail", d.PGDetail)
	add("pg_message", d.PGMessage)
	if len(d.Chain) > 0 {
		fields["error_chain"] = d.Chain
	}
	return fields
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
		d.Retryable = MetadataFor(te.Code()).Retryable
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		d.ContextErr = "deadline_exceeded"
		d.Retryable = true
	case errors.Is(err, context.Canceled):
		d.ContextErr = "canceled"
	}

	var upstream UpstreamCoder
	if errors.As(err, &upstream) {
		d.UpstreamCode = upstream.UpstreamCode()
	}
	var bodier UpstreamBodier
	if errors.As(err, &bodier) {
		d.UpstreamBody = bodier.UpstreamBody()
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
		return d
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	}
	return d
}
