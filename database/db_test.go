package database

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"storefront-svc/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestMigrate_AppliesEveryStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestSchema_TimestampsKeepOffsets(t *testing.T) {
	plain := regexp.MustCompile(`\bTIMESTAMP\b`)
	for _, stmt := range schema {
		if plain.MatchString(stmt) {
			t.Errorf("column declared without time zone in:\n%s", stmt)
		}
	}
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = WithTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE products SET stock = 1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback()

	err = WithTx(context.Background(), db, func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected wrapped boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWithTx_BeginFailureIsPersistence(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	err = WithTx(context.Background(), db, func(tx *sql.Tx) error { return nil })
	if !errors.Is(err, apperr.ErrPersistence) {
		t.Errorf("Expected persistence error, got %v", err)
	}
}

func TestEnsureSuperAdmin_SkipsWhenPresent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT email FROM users WHERE role = \\$1").
		WithArgs("SUPER_ADMIN").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("admin@example.com"))

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	if err := EnsureSuperAdmin(context.Background(), db, "admin@example.com", "qwerty", logger); err != nil {
		t.Fatalf("EnsureSuperAdmin returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}
