// Package aggregates implements the write boundaries declared in domain/aggregates on top of
// GORM. Each write runs inside executeWrite, which owns the transaction, error mapping,
// tracing and metrics.
package aggregates
