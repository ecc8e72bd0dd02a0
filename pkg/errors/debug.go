package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// DriverError is the database driver failure found in an error chain.
type DriverError struct {
	Driver     string `json:"driver"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorDump flattens an error for structured logs.
type ErrorDump struct {
	TopMessage string       `json:"top_message"`
	Code       Code         `json:"code,omitempty"`
	Chain      []string     `json:"chain,omitempty"`
	Driver     *DriverError `json:"driver,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), Driver: driverError(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as log fields; driver fields use a db_ prefix.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.Driver != nil {
		fields["db_driver"] = d.Driver.Driver
		fields["db_code"] = d.Driver.Code
		if d.Driver.Constraint != "" {
			fields["db_constraint"] = d.Driver.Constraint
		}
		if d.Driver.Detail != "" {
			fields["db_detail"] = d.Driver.Detail
		}
	}
	return fields
}

func driverError(err error) *DriverError {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return &DriverError{
			Driver:     "postgres",
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Detail:     pgxErr.Detail,
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return &DriverError{
			Driver: "sqlite",
			Code:   liteErr.ExtendedCode.Error(),
			Detail: liteErr.Error(),
		}
	}
	return nil
}
