// internal/repository/repository_test.go
//
// Unit-tests for the repository / transaction coordinator using sqlmock.
//
// Context
// -------
// The mock pool is wrapped in sqlx with the pgx driver name, so Rebind
// rewrites the compilers' `?` placeholders to `$n` exactly as it would
// against a live PostgreSQL.  Each test asserts the final statement text
// and bind arguments, which is the repository's whole contract.
//
// Run: go test ./internal/repository -v

package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/docstore/internal/document"
	"github.com/yanizio/docstore/internal/mutation"
	"github.com/yanizio/docstore/internal/query"
)

var rowColumns = []string{
	"id", "created_at", "updated_at", "status", "type_id", "user_id", "acl", "payload",
}

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "pgx"), mock
}

func TestListOne_MapsRow(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT d.id, d.created_at, d.updated_at, d.status, d.type_id, d.user_id, d.acl, d.payload FROM documents d WHERE d.id = $1`,
	)).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-1", now, now, int16(1), "Profile", document.NilUserID,
				nil, []byte(`{"str":"a","deep":{"num":-1}}`)))

	repo := New(db, nil)
	doc, err := repo.ListOne(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("ListOne: %v", err)
	}
	if doc.Meta.ID != "doc-1" || doc.Meta.TypeID != "Profile" || doc.Meta.Status != document.StatusActive {
		t.Fatalf("envelope = %#v", doc.Meta)
	}
	if !doc.Meta.CreatedAt.Equal(now) {
		t.Fatalf("CreatedAt = %v", doc.Meta.CreatedAt)
	}
	if doc.Fields["str"] != "a" {
		t.Fatalf("payload = %#v", doc.Fields)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestListOne_Absent(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT .* FROM documents d WHERE").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(rowColumns))

	doc, err := New(db, nil).ListOne(context.Background(), "missing")
	if err != nil {
		t.Fatalf("absent row must not error: %v", err)
	}
	if doc != nil {
		t.Fatalf("doc = %#v, want nil", doc)
	}
}

func TestListOne_TypeMismatch(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("SELECT .* FROM documents d WHERE").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-1", now, now, int16(1), "Order", document.NilUserID, nil, nil))

	repo := New(db, &document.Type{ID: "Profile"})
	_, err := repo.ListOne(context.Background(), "doc-1")

	var tm *document.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
	if tm.Expect != "Profile" || tm.Actual != "Order" {
		t.Fatalf("mismatch = %#v", tm)
	}
}

func TestListOneByFilter_TypedScope(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT d.id, d.created_at, d.updated_at, d.status, d.type_id, d.user_id, d.acl, d.payload FROM documents d WHERE d.user_id = $1 AND d.type_id = $2 LIMIT 1`,
	)).
		WithArgs("user-1", "Profile").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-1", now, now, int16(1), "Profile", "user-1", nil, nil))

	repo := New(db, &document.Type{ID: "Profile"})
	doc, err := repo.ListOneByUserID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListOneByUserID: %v", err)
	}
	if doc == nil || doc.Meta.UserID != "user-1" {
		t.Fatalf("doc = %#v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestList_PageAndCount(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	// Page and count statements run concurrently on the pool.
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT d.id, d.created_at, d.updated_at, d.status, d.type_id, d.user_id, d.acl, d.payload FROM documents d WHERE d.payload @> $1::jsonb ORDER BY d.created_at DESC LIMIT $2 OFFSET $3`,
	)).
		WithArgs(`{"str":"b"}`, int64(2), int64(2)).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-3", now, now, int16(1), "T", document.NilUserID, nil, []byte(`{"str":"b"}`)).
			AddRow("doc-4", now, now, int16(1), "T", document.NilUserID, nil, []byte(`{"str":"b"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM documents d WHERE d.payload @> $1::jsonb`,
	)).
		WithArgs(`{"str":"b"}`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	repo := New(db, nil)
	res, err := repo.List(context.Background(),
		&query.Page{Limit: 2, NextToken: "2"},
		&query.Filter{Payload: document.Payload{"str": "b"}},
		nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.TotalCount != 5 || len(res.Items) != 2 {
		t.Fatalf("total=%d items=%d", res.TotalCount, len(res.Items))
	}
	if res.NextToken != "4" {
		t.Fatalf("NextToken = %q, want 4", res.NextToken)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestList_LastPageHasNoToken(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SELECT d.id,").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-5", now, now, int16(1), "T", document.NilUserID, nil, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*)`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	res, err := New(db, nil).List(context.Background(),
		&query.Page{Limit: 2, NextToken: "4"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if res.NextToken != "" {
		t.Fatalf("NextToken = %q, want empty", res.NextToken)
	}
}

func TestList_MalformedToken(t *testing.T) {
	db, _ := newMock(t)

	_, err := New(db, nil).List(context.Background(),
		&query.Page{NextToken: "not-a-number"}, nil, nil, nil)

	var bad *query.BadPageTokenError
	if !errors.As(err, &bad) {
		t.Fatalf("err = %v, want BadPageTokenError", err)
	}
}

func TestCount(t *testing.T) {
	db, mock := newMock(t)

	// Conjunction order puts type scoping before containment.
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT COUNT(*) FROM documents d WHERE d.type_id = $1 AND d.payload @> $2::jsonb`,
	)).
		WithArgs("T", `{"str":"b"}`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := New(db, &document.Type{ID: "T"}).Count(context.Background(),
		&query.Filter{Payload: document.Payload{"str": "b"}}, nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Fatalf("count = %d, want 5", n)
	}
}

func TestSave_InvalidDocument(t *testing.T) {
	db, mock := newMock(t)

	_, err := New(db, nil).Save(context.Background(), &document.Document{})
	if !errors.Is(err, document.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
	// Validation happens before any statement executes.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("statement executed for invalid document: %v", err)
	}
}

func TestSave_TypeMismatch(t *testing.T) {
	db, _ := newMock(t)

	d := document.New("Order")
	_, err := New(db, &document.Type{ID: "Profile"}).Save(context.Background(), d)

	var tm *document.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
}

func TestSave_ValidateRule(t *testing.T) {
	db, _ := newMock(t)
	wantErr := errors.New("payload must carry name")

	typ := &document.Type{ID: "Profile", Validate: func(d *document.Document) error {
		if _, ok := d.Fields["name"]; !ok {
			return wantErr
		}
		return nil
	}}

	_, err := New(db, typ).Save(context.Background(), document.New("Profile"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestSave_Upsert(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	q := `INSERT INTO documents (id, created_at, updated_at, status, type_id, user_id, acl, payload)` +
		` VALUES ($1, COALESCE($2::timestamptz, now()), COALESCE($3::timestamptz, now()), $4, $5, $6, $7, $8)` +
		` ON CONFLICT (id) DO UPDATE SET` +
		` status = EXCLUDED.status, type_id = EXCLUDED.type_id, user_id = EXCLUDED.user_id,` +
		` acl = EXCLUDED.acl, payload = EXCLUDED.payload,` +
		` updated_at = COALESCE($9::timestamptz, now())` +
		` RETURNING id, created_at, updated_at, status, type_id, user_id, acl, payload`

	mock.ExpectQuery(regexp.QuoteMeta(q)).
		WithArgs("doc-1", nil, nil, int64(1), "Profile", document.NilUserID,
			[]byte(nil), []byte(`{"str":"a"}`), nil).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("doc-1", now, now, int16(1), "Profile", document.NilUserID,
				nil, []byte(`{"str":"a"}`)))

	d := document.New("Profile")
	d.Meta.ID = "doc-1"
	d.Fields = document.Payload{"str": "a"}

	saved, err := New(db, &document.Type{ID: "Profile"}).Save(context.Background(), d)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !saved.Meta.CreatedAt.Equal(now) || !saved.Meta.UpdatedAt.Equal(now) {
		t.Fatalf("server timestamps not reconciled: %#v", saved.Meta)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestSave_GeneratesID(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow("generated", now, now, int16(1), "Profile", document.NilUserID, nil, nil))

	d := document.New("Profile")
	saved, err := New(db, nil).Save(context.Background(), d)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Meta.ID == "" {
		t.Fatal("saved document carries no id")
	}
	// The caller's document is not mutated; the id travels in the statement.
	if d.Meta.ID != "" {
		t.Fatalf("Save mutated caller's document: %q", d.Meta.ID)
	}
}

func TestDeleteOne(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE id = $1`)).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := New(db, nil).DeleteOne(context.Background(), "doc-1"); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestBatchUpdate_Increment(t *testing.T) {
	db, mock := newMock(t)

	expr, err := mutation.IncrementIntAt([]string{"num"}, 3)
	if err != nil {
		t.Fatalf("expr: %v", err)
	}

	q := `UPDATE documents SET payload = jsonb_set(COALESCE(payload, '{}'::jsonb), '{num}', ` +
		`(COALESCE(payload #>> '{num}', '0')::bigint + $1)::text::jsonb, true), updated_at = now() WHERE id = $2`

	mock.ExpectExec(regexp.QuoteMeta(q)).
		WithArgs(int64(3), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := New(db, nil).BatchUpdate(context.Background(),
		&query.Filter{ID: "doc-1"}, nil, expr)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestBatchUpdate_Concatenate(t *testing.T) {
	db, mock := newMock(t)

	expr, err := mutation.Concatenate(document.Payload{"str": "b"})
	if err != nil {
		t.Fatalf("expr: %v", err)
	}

	q := `UPDATE documents SET payload = COALESCE(payload, '{}'::jsonb) || $1::jsonb, updated_at = now() WHERE id = $2 AND type_id = $3`

	mock.ExpectExec(regexp.QuoteMeta(q)).
		WithArgs(`{"str":"b"}`, "doc-1", "Profile").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err = New(db, &document.Type{ID: "Profile"}).BatchUpdate(context.Background(),
		&query.Filter{ID: "doc-1"}, nil, expr)
	if err != nil {
		t.Fatalf("BatchUpdate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestBatchDelete(t *testing.T) {
	db, mock := newMock(t)

	st := document.StatusDeleted
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE status = $1`)).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := New(db, nil).BatchDelete(context.Background(), &query.Filter{Status: &st}, nil)
	if err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}
	if n != 3 {
		t.Fatalf("rows = %d, want 3", n)
	}
}

func TestTransaction_Commit(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE id = $1`)).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := New(db, nil).Transaction(context.Background(), func(tx *Repository) error {
		return tx.DeleteOne(context.Background(), "doc-1")
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := New(db, nil).Transaction(context.Background(), func(tx *Repository) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("transaction scope not released: %v", err)
	}
}

func TestTransaction_Nested(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := New(db, nil).Transaction(context.Background(), func(tx *Repository) error {
		return tx.Transaction(context.Background(), func(*Repository) error { return nil })
	})
	if !errors.Is(err, ErrNestedTransaction) {
		t.Fatalf("err = %v, want ErrNestedTransaction", err)
	}
}

func TestFork_SwitchesTypeInsideTransaction(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM documents WHERE type_id = $1`)).
		WithArgs("Order").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	repo := New(db, &document.Type{ID: "Profile"})
	err := repo.Transaction(context.Background(), func(tx *Repository) error {
		orders := tx.Fork(&document.Type{ID: "Order"})
		_, err := orders.BatchDelete(context.Background(), nil, nil)
		return err
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}
