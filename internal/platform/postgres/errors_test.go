package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestWrapErrorClassifies(t *testing.T) {
	var repoErr *Error

	if err := WrapError("certificates.get", pgx.ErrNoRows); !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	unique := &pgconn.PgError{Code: uniqueViolation, ConstraintName: "certificates_certificate_number_key"}
	if err := WrapError("certificates.insert", fmt.Errorf("exec: %w", unique)); !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	shutdown := &pgconn.PgError{Code: adminShutdown}
	if err := WrapError("certificates.list", shutdown); !errors.As(err, &repoErr) || !repoErr.IsUnavailable() {
		t.Fatalf("expected unavailable, got %v", err)
	}

	if err := WrapError("op", context.Canceled); !errors.Is(err, context.Canceled) || errors.As(err, &repoErr) {
		t.Fatalf("expected context error passthrough, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("expected nil")
	}
}
