package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func assertCode(t *testing.T, err error, want sserr.Code) {
	t.Helper()
	var ssErr *sserr.Error
	if !errors.As(err, &ssErr) {
		t.Fatalf("error type = %T, want *sserr.Error", err)
	}
	if ssErr.Code != want {
		t.Errorf("error code = %q, want %q", ssErr.Code, want)
	}
}

// ===========================================================================
// NewFromPool Tests
// ===========================================================================

func TestNewFromPool_WithConfig(t *testing.T) {
	mock := newMock(t)

	cfg := &Config{Database: "monitoring"}
	client := NewFromPool(mock, cfg)

	if client.config != cfg {
		t.Error("config not set correctly")
	}
	if client.databaseName != "monitoring" {
		t.Errorf("databaseName = %q, want %q", client.databaseName, "monitoring")
	}
	if client.tracer == nil {
		t.Error("tracer is nil, want non-nil")
	}
	if client.Pool() != mock {
		t.Error("Pool() did not return the injected pool")
	}
}

func TestNewFromPool_NilConfig(t *testing.T) {
	client := NewFromPool(newMock(t), nil)
	if client.config == nil {
		t.Error("config is nil, want zero-value Config")
	}
	if client.databaseName != "" {
		t.Errorf("databaseName = %q, want empty", client.databaseName)
	}
}

// ===========================================================================
// Query Tests
// ===========================================================================

func TestClient_Query_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT userid, username FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"userid", "username"}).
			AddRow(int64(1), "Admin").
			AddRow(int64(2), "guest"))

	client := NewFromPool(mock, &Config{Database: "monitoring"})
	rows, err := client.Query(context.Background(), "SELECT userid, username FROM users")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	defer rows.Close()

	var count int
	for rows.Next() {
		var id int64
		var name string
		if scanErr := rows.Scan(&id, &name); scanErr != nil {
			t.Fatalf("Scan() error: %v", scanErr)
		}
		count++
	}
	if count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestClient_Query_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation \"nonexistent\" does not exist"))

	_, err := NewFromPool(mock, nil).Query(context.Background(), "SELECT * FROM nonexistent")
	if err == nil {
		t.Fatal("Query() expected error, got nil")
	}
	assertCode(t, err, sserr.CodeInternalDatabase)
}

func TestClient_Query_TimeoutError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	_, err := NewFromPool(mock, nil).Query(context.Background(), "SELECT 1")
	if err == nil {
		t.Fatal("Query() expected error, got nil")
	}
	assertCode(t, err, sserr.CodeTimeoutDatabase)
	if !sserr.IsRetryable(err) {
		t.Error("timeout error should be retryable")
	}
}

// ===========================================================================
// QueryRow Tests
// ===========================================================================

func TestClient_QueryRow_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT count").
		WithArgs("connector").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	client := NewFromPool(mock, nil)
	var n int64
	if err := client.QueryRow(context.Background(), "SELECT count(*) FROM $1", "connector").Scan(&n); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestClient_QueryRow_NoRows(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("SELECT name FROM hosts WHERE hostid").
		WithArgs(999999).
		WillReturnError(pgx.ErrNoRows)

	var name string
	err := NewFromPool(mock, nil).
		QueryRow(context.Background(), "SELECT name FROM hosts WHERE hostid = $1", 999999).
		Scan(&name)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("Scan() error = %v, want pgx.ErrNoRows", err)
	}
}

// ===========================================================================
// Exec Tests
// ===========================================================================

func TestClient_Exec_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT INTO hstgrp").
		WithArgs("seeded group").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tag, err := NewFromPool(mock, nil).Exec(context.Background(),
		"INSERT INTO hstgrp (name) VALUES ($1)", "seeded group")
	if err != nil {
		t.Fatalf("Exec() error: %v", err)
	}
	if tag.RowsAffected() != 1 {
		t.Errorf("RowsAffected() = %d, want 1", tag.RowsAffected())
	}
}

func TestClient_Exec_Error(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("INSERT").WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key"})

	_, err := NewFromPool(mock, nil).Exec(context.Background(), "INSERT INTO hstgrp (name) VALUES ('x')")
	if err == nil {
		t.Fatal("Exec() expected error, got nil")
	}
	assertCode(t, err, sserr.CodeInternalDatabase)

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		t.Errorf("cause = %v, want *pgconn.PgError 23505", err)
	}
}

// ===========================================================================
// Health Tests
// ===========================================================================

func TestClient_Health_Success(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing()

	if err := NewFromPool(mock, nil).Health(context.Background()); err != nil {
		t.Errorf("Health() error: %v", err)
	}
}

func TestClient_Health_Failure(t *testing.T) {
	mock := newMock(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	err := NewFromPool(mock, nil).Health(context.Background())
	if err == nil {
		t.Fatal("Health() expected error, got nil")
	}
	assertCode(t, err, sserr.CodeUnavailableDependency)
}

func TestClient_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	mock.ExpectClose()

	NewFromPool(mock, nil).Close()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

// ===========================================================================
// wrapError Tests
// ===========================================================================

func TestWrapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want sserr.Code
	}{
		{"deadline", context.DeadlineExceeded, sserr.CodeTimeoutDatabase},
		{"canceled", context.Canceled, sserr.CodeTimeoutDatabase},
		{"generic", errors.New("boom"), sserr.CodeInternalDatabase},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wrapError(tt.err, "msg")
			if got.Code != tt.want {
				t.Errorf("code = %q, want %q", got.Code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("wrapped error does not unwrap to the cause")
			}
		})
	}

	if wrapError(nil, "msg") != nil {
		t.Error("wrapError(nil) should be nil")
	}
}
