package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Emir1738/archestra/pkg/apperrors"
)

// Querier is the subset of pgx operations shared by pooled connections and
// transactions. Repositories issue all SQL through it, so the same repository
// code runs inside a coordinated transaction or directly on the tenant scope.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxRunner runs fn inside a single database transaction. database.WithinTx is
// the production implementation; tests inject a pass-through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// GetTx retrieves the active transaction from context.
// Returns nil and false if no transaction is in progress.
func GetTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

func setTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// QuerierFrom resolves the Querier for the current context: the active
// transaction if one is in progress, otherwise the tenant-scoped connection.
func QuerierFrom(ctx context.Context) (Querier, error) {
	if tx, ok := GetTx(ctx); ok {
		return tx, nil
	}
	if scope, ok := GetTenantScope(ctx); ok {
		return scope.Conn, nil
	}
	return nil, fmt.Errorf("no tenant scope in context")
}

// WithinTx begins a transaction on the tenant-scoped connection, runs fn with
// the transaction set in context, and commits. Any error from fn (or from the
// commit itself) rolls back every effect of the transaction.
//
// Nested calls join the caller's transaction rather than opening a second one,
// so a service operation composed of repository calls stays all-or-nothing.
func WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := GetTx(ctx); ok {
		return fn(ctx)
	}

	scope, ok := GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return classifyTxError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := fn(setTx(ctx, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return classifyTxError(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// ConflictError marks a serialization failure or deadlock. Callers match it
// with errors.Is(err, apperrors.ErrConflictRetryable); pkg/retry sees it as
// retryable through IsRetryable.
type ConflictError struct {
	Cause error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction conflict: %v", e.Cause)
}

func (e *ConflictError) Unwrap() error { return apperrors.ErrConflictRetryable }

// IsRetryable implements retry.RetryableError.
func (e *ConflictError) IsRetryable() bool { return true }

// SQLSTATE codes that mean the whole transaction must be retried.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// classifyTxError maps store-level failures onto the engine's error kinds:
// serialization failures and deadlocks become retryable conflicts, connection
// failures become ErrStoreUnavailable. Everything else passes through.
func classifyTxError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return &ConflictError{Cause: err}
		}
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreUnavailable, err)
	}

	return err
}

// IsUniqueViolation reports whether err is a unique constraint violation.
// Repositories use it to map constraint hits onto apperrors.ErrDuplicateKey.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
