// internal/repository/repository.go
//
// Repository / transaction coordinator for the documents table.
//
// Context
// -------
// The Repository is the only component that touches the transactional
// store.  It assembles read statements from the compilers in
// internal/query, executes mutation expressions from internal/mutation as
// single server-side UPDATEs, and offers transaction-scoped forking so a
// caller can compose multi-step operations atomically, switching document
// types mid-transaction via Fork.
//
// A Repository is stateless beyond its pooled handle and safe for
// concurrent callers.  Statements compile with `?` placeholders and are
// rebound to the driver's style immediately before execution.
//
// Workflow
// --------
//  1. repo := repository.New(db, document.LookupType("Profile"))
//  2. repo.Save / repo.List / repo.BatchUpdate …
//  3. repo.Transaction(ctx, func(tx *Repository) error { … })
//
// Notes
// -----
//   - Validation errors surface before any statement executes; store
//     failures propagate verbatim and are never retried here.
//   - Oxford commas, two spaces after periods.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yanizio/docstore/internal/document"
	"github.com/yanizio/docstore/internal/metrics"
	"github.com/yanizio/docstore/internal/mutation"
	"github.com/yanizio/docstore/internal/query"
)

const (
	listAlias = "d"

	columns = "id, created_at, updated_at, status, type_id, user_id, acl, payload"

	aliasedColumns = "d.id, d.created_at, d.updated_at, d.status, d.type_id, d.user_id, d.acl, d.payload"
)

// ErrNestedTransaction is returned when Transaction is called on a
// repository that is already bound to a transaction scope.
var ErrNestedTransaction = errors.New("repository is already transaction-scoped")

// Repository executes document operations against a pool or, after
// Transaction/NewTx, against one transaction scope.
type Repository struct {
	db  *sqlx.DB        // pool handle; nil when transaction-scoped
	ext sqlx.ExtContext // execution context: *sqlx.DB or *sqlx.Tx
	typ *document.Type  // declared type, nil for a type-agnostic repository
	log *zap.SugaredLogger
}

// New returns a pool-backed repository.  typ may be nil for a repository
// that addresses every document type.
func New(db *sqlx.DB, typ *document.Type) *Repository {
	return &Repository{db: db, ext: db, typ: typ, log: zap.S()}
}

// NewTx binds a repository to an already-open transaction.  This is the
// explicit factory used by Transaction and by callers that manage their
// own transaction boundary.
func NewTx(tx *sqlx.Tx, typ *document.Type) *Repository {
	return &Repository{ext: tx, typ: typ, log: zap.S()}
}

// Fork returns a repository of a different declared type sharing this
// repository's execution context, pool or transaction alike.
func (r *Repository) Fork(typ *document.Type) *Repository {
	return &Repository{db: r.db, ext: r.ext, typ: typ, log: r.log}
}

func (r *Repository) boundTypeID() string {
	if r.typ == nil {
		return ""
	}
	return r.typ.ID
}

/*──────────────────────────────── reads ───────────────────────────────────*/

// getOne runs a single-row select and maps sql.ErrNoRows to (nil, nil):
// an absent document is not an error.
func (r *Repository) getOne(ctx context.Context, q string, args ...any) (*document.Document, error) {
	var rw row
	err := sqlx.GetContext(ctx, r.ext, &rw, r.ext.Rebind(q), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return nil, err
	}
	metrics.DocumentReadsTotal.Inc()
	return rw.document()
}

// ListOne fetches a document by id.  On a typed repository a row carrying
// a different type identifier is a hard error, not a silent coercion.
func (r *Repository) ListOne(ctx context.Context, id string) (*document.Document, error) {
	q := "SELECT " + aliasedColumns + " FROM documents d WHERE d.id = ?"
	doc, err := r.getOne(ctx, q, id)
	if err != nil || doc == nil {
		return doc, err
	}
	if r.typ != nil && doc.Meta.TypeID != r.typ.ID {
		return nil, &document.TypeMismatchError{Expect: r.typ.ID, Actual: doc.Meta.TypeID}
	}
	return doc, nil
}

// ListOneByFilter returns the first document matching the filters, or nil.
func (r *Repository) ListOneByFilter(ctx context.Context, f *query.Filter, af *query.AdvancedFilter) (*document.Document, error) {
	preds, err := query.CompileFilter(listAlias, r.boundTypeID(), f, af)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + aliasedColumns + " FROM documents d" + preds.Where() + " LIMIT 1"
	return r.getOne(ctx, q, preds.Args()...)
}

// ListOneByUserID returns the owning principal's document of the bound
// type, or nil.
func (r *Repository) ListOneByUserID(ctx context.Context, userID string) (*document.Document, error) {
	return r.ListOneByFilter(ctx, &query.Filter{UserID: userID}, nil)
}

// Count returns the number of documents matching the filters, ignoring
// pagination.
func (r *Repository) Count(ctx context.Context, f *query.Filter, af *query.AdvancedFilter) (int, error) {
	preds, err := query.CompileFilter(listAlias, r.boundTypeID(), f, af)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, preds)
}

func (r *Repository) count(ctx context.Context, preds *query.Predicates) (int, error) {
	q := "SELECT COUNT(*) FROM documents d" + preds.Where()
	var total int
	if err := sqlx.GetContext(ctx, r.ext, &total, r.ext.Rebind(q), preds.Args()...); err != nil {
		metrics.StoreErrorsTotal.Inc()
		return 0, err
	}
	return total, nil
}

// List returns one page of documents plus the total count over the same
// filters.  The count runs as a parallel statement on the pool; inside a
// transaction both statements run sequentially on the one connection and
// share its snapshot.
func (r *Repository) List(ctx context.Context, page *query.Page, f *query.Filter, af *query.AdvancedFilter, ob *query.OrderBy) (*query.Result[*document.Document], error) {
	preds, err := query.CompileFilter(listAlias, r.boundTypeID(), f, af)
	if err != nil {
		return nil, err
	}
	order, err := query.CompileOrderBy(listAlias, ob)
	if err != nil {
		return nil, err
	}
	limit, offset, err := query.Window(page)
	if err != nil {
		return nil, err
	}

	sel := "SELECT " + aliasedColumns + " FROM documents d" + preds.Where() +
		" ORDER BY " + order + " LIMIT ? OFFSET ?"
	selArgs := append(append([]any{}, preds.Args()...), limit, offset)

	var (
		rows  []row
		total int
	)
	fetch := func(ctx context.Context) error {
		return sqlx.SelectContext(ctx, r.ext, &rows, r.ext.Rebind(sel), selArgs...)
	}
	if r.db != nil {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return fetch(gctx) })
		g.Go(func() error {
			var err error
			total, err = r.count(gctx, preds)
			return err
		})
		err = g.Wait()
	} else {
		if err = fetch(ctx); err == nil {
			total, err = r.count(ctx, preds)
		}
	}
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return nil, err
	}
	metrics.DocumentReadsTotal.Inc()

	items := make([]*document.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].document()
		if err != nil {
			return nil, err
		}
		items = append(items, doc)
	}
	return &query.Result[*document.Document]{
		TotalCount: total,
		Items:      items,
		NextToken:  query.NextToken(offset, len(items), total, limit),
	}, nil
}

/*─────────────────────────────── mutations ────────────────────────────────*/

// Save validates and upserts a document by primary key, returning the
// reconciled post-write row with server-assigned timestamps.
func (r *Repository) Save(ctx context.Context, d *document.Document) (*document.Document, error) {
	if d == nil || d.Meta == nil {
		return nil, document.ErrInvalidDocument
	}

	typeID := d.Meta.TypeID
	if r.typ != nil {
		switch {
		case typeID == "":
			typeID = r.typ.ID
		case typeID != r.typ.ID:
			return nil, &document.TypeMismatchError{Expect: r.typ.ID, Actual: typeID}
		}
		if r.typ.Validate != nil {
			if err := r.typ.Validate(d); err != nil {
				return nil, err
			}
		}
	}

	id := d.Meta.ID
	if id == "" {
		id = uuid.NewString()
	}
	userID := d.Meta.UserID
	if userID == "" {
		userID = document.NilUserID
	}
	status := d.Meta.Status
	if status == 0 {
		status = document.StatusActive
	}

	// Timestamps stay server-assigned unless the caller restores explicit
	// values (import paths).
	var created, updated *time.Time
	if !d.Meta.CreatedAt.IsZero() {
		t := d.Meta.CreatedAt
		created = &t
	}
	if !d.Meta.UpdatedAt.IsZero() {
		t := d.Meta.UpdatedAt
		updated = &t
	}

	payload, err := payloadJSON(d.Fields)
	if err != nil {
		return nil, err
	}

	q := "INSERT INTO documents (" + columns + ")" +
		" VALUES (?, COALESCE(?::timestamptz, now()), COALESCE(?::timestamptz, now()), ?, ?, ?, ?, ?)" +
		" ON CONFLICT (id) DO UPDATE SET" +
		" status = EXCLUDED.status, type_id = EXCLUDED.type_id, user_id = EXCLUDED.user_id," +
		" acl = EXCLUDED.acl, payload = EXCLUDED.payload," +
		" updated_at = COALESCE(?::timestamptz, now())" +
		" RETURNING " + columns

	var rw row
	err = sqlx.GetContext(ctx, r.ext, &rw, r.ext.Rebind(q),
		id, created, updated, status, typeID, userID, []byte(d.ACL), payload, updated)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return nil, err
	}
	metrics.DocumentWritesTotal.Inc()
	r.log.Debugw("document saved", "id", rw.ID, "type", rw.TypeID)
	return rw.document()
}

// DeleteOne hard-deletes a document row by id.
func (r *Repository) DeleteOne(ctx context.Context, id string) error {
	if _, err := r.ext.ExecContext(ctx, r.ext.Rebind("DELETE FROM documents WHERE id = ?"), id); err != nil {
		metrics.StoreErrorsTotal.Inc()
		return err
	}
	metrics.DocumentDeletesTotal.Inc()
	return nil
}

// BatchUpdate applies a mutation expression to every document matching
// the filters in one server-side statement, and reports how many rows it
// touched.  Concurrent callers serialize on the row-level write lock.
func (r *Repository) BatchUpdate(ctx context.Context, f *query.Filter, af *query.AdvancedFilter, expr mutation.Expr) (int64, error) {
	preds, err := query.CompileFilter("", r.boundTypeID(), f, af)
	if err != nil {
		return 0, err
	}
	q := "UPDATE documents SET payload = " + expr.SQL() + ", updated_at = now()" + preds.Where()
	args := append(append([]any{}, expr.Args()...), preds.Args()...)

	res, err := r.ext.ExecContext(ctx, r.ext.Rebind(q), args...)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return 0, err
	}
	metrics.BatchMutationsTotal.Inc()
	return res.RowsAffected()
}

// BatchDelete removes every document matching the filters.
func (r *Repository) BatchDelete(ctx context.Context, f *query.Filter, af *query.AdvancedFilter) (int64, error) {
	preds, err := query.CompileFilter("", r.boundTypeID(), f, af)
	if err != nil {
		return 0, err
	}
	res, err := r.ext.ExecContext(ctx, r.ext.Rebind("DELETE FROM documents"+preds.Where()), preds.Args()...)
	if err != nil {
		metrics.StoreErrorsTotal.Inc()
		return 0, err
	}
	metrics.BatchMutationsTotal.Inc()
	return res.RowsAffected()
}

/*────────────────────────────── transactions ──────────────────────────────*/

// Transaction opens a transaction scope, hands fn a repository bound to
// it, and commits on normal return or rolls back on error or panic.  The
// scope is released on every exit path.
func (r *Repository) Transaction(ctx context.Context, fn func(*Repository) error) error {
	if r.db == nil {
		return ErrNestedTransaction
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
			metrics.TransactionsTotal.WithLabelValues("rollback").Inc()
		}
	}()

	if err := fn(NewTx(tx, r.typ)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	metrics.TransactionsTotal.WithLabelValues("commit").Inc()
	return nil
}
