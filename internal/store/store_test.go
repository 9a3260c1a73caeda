package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/opsrig/rootcause/internal/trace"
)

func TestSaveTraceUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	tr := trace.New("disk full on db-3", nil)
	tr.Seal("log rotation was disabled")

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO traces (id, query, payload, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			query = EXCLUDED.query,
			payload = EXCLUDED.payload,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at`)).
		WithArgs(tr.TraceID, tr.Query, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveTrace(context.Background(), tr); err != nil {
		t.Fatalf("SaveTrace: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetTraceMissingIsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM traces WHERE id = $1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	got, err := st.GetTrace(context.Background(), "missing")
	if err != nil {
		t.Fatalf("missing trace must not error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing trace, got %+v", got)
	}
}

func TestGetTraceDecodesPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	tr := trace.New("q", nil)
	tr.Seal("done")
	payload, _ := json.Marshal(tr)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM traces WHERE id = $1`)).
		WithArgs(tr.TraceID).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := st.GetTrace(context.Background(), tr.TraceID)
	if err != nil {
		t.Fatalf("GetTrace: %v", err)
	}
	if got == nil || got.TraceID != tr.TraceID || !got.Sealed() {
		t.Fatalf("decoded trace mismatch: %+v", got)
	}
}

func TestRecentTracesSkipsCorruptRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	good := trace.New("good", nil)
	payload, _ := json.Marshal(good)

	rows := sqlmock.NewRows([]string{"payload"}).
		AddRow([]byte("{corrupt")).
		AddRow(payload)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload FROM traces ORDER BY started_at DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(rows)

	out, err := st.RecentTraces(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentTraces: %v", err)
	}
	if len(out) != 1 || out[0].TraceID != good.TraceID {
		t.Fatalf("corrupt row must be skipped, got %+v", out)
	}
}

func TestCreateAndLookupUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users (email, password_hash) VALUES ($1, $2)`)).
		WithArgs("oncall@example.com", "hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.CreateUser(context.Background(), "oncall@example.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, password_hash FROM users WHERE email = $1`)).
		WithArgs("oncall@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("user-1", "hash"))
	id, hash, err := st.GetUserByEmail(context.Background(), "oncall@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if id != "user-1" || hash != "hash" {
		t.Fatalf("unexpected user %s/%s", id, hash)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
