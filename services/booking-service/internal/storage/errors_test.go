package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsConflict(t *testing.T) {
	exclusion := &pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"}
	if !IsConflict(exclusion) || !IsConflict(fmt.Errorf("insert: %w", exclusion)) {
		t.Fatal("expected exclusion violation to be a conflict")
	}
	if IsConflict(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("unique violation is not an overlap conflict")
	}
	if IsConflict(errors.New("boom")) || IsConflict(nil) {
		t.Fatal("plain errors are not conflicts")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)) {
		t.Fatal("expected wrapped ErrNoRows to be not found")
	}
	if IsNotFound(errors.New("boom")) {
		t.Fatal("plain errors are not not-found")
	}
}
