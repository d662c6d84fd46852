// Package nl2sql turns a normalized question and a schema description into a
// SQL statement using a text-generation backend.
package nl2sql

import (
	"context"
	"errors"
)

// ErrEmptySQL is returned when the backend produced no usable statement.
var ErrEmptySQL = errors.New("model returned empty SQL")

type Request struct {
	Question  string `json:"question"`
	SchemaDDL string `json:"schema_ddl"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
