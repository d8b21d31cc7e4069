package registry

import (
	"context"
	"database/sql"

	wutag "github.com/wutag-go/wutag"
)

// Txn wraps a single registry-wide transaction. One user command is one
// Txn; it borrows the Handle for the lifetime of that command, and the
// Handle keeps no reference to the Txn.
type Txn struct {
	tx   *sql.Tx
	h    *Handle
	ctx  context.Context
	done bool
}

// Begin acquires the Handle's mutex and starts a transaction. The caller
// must call Commit or Rollback exactly once; Rollback is always safe to
// call after Commit (it becomes a no-op).
func (h *Handle) Begin(ctx context.Context) (*Txn, error) {
	h.mu.Lock()
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		h.mu.Unlock()
		return nil, &wutag.Error{Kind: wutag.ErrNoConnection, Op: "Begin", Inner: err}
	}
	return &Txn{tx: tx, h: h, ctx: ctx}, nil
}

// WithTxn runs fn inside a single transaction bracketing the call,
// committing on success and rolling back (and releasing the Handle
// mutex) on any error or panic, per spec §4.5 and §5.
func (h *Handle) WithTxn(ctx context.Context, fn func(*Txn) error) (err error) {
	txn, err := h.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			txn.Rollback()
			panic(p)
		}
	}()

	if err := fn(txn); err != nil {
		txn.Rollback()
		return err
	}
	return txn.Commit()
}

// Commit commits the transaction and releases the Handle's mutex.
func (t *Txn) Commit() error {
	t.done = true
	defer t.h.mu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return &wutag.Error{Kind: wutag.ErrGeneral, Op: "Commit", Inner: err}
	}
	return nil
}

// Rollback aborts the transaction and releases the Handle's mutex. Safe
// to call after Commit.
func (t *Txn) Rollback() {
	if t.done {
		return
	}
	t.done = true
	defer t.h.mu.Unlock()
	_ = t.tx.Rollback()
}

// Exec runs a non-query statement inside the transaction.
func (t *Txn) Exec(query string, args ...any) (sql.Result, error) {
	defer observeQuery(query)()
	res, err := t.tx.ExecContext(t.ctx, query, args...)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "Exec", Inner: err}
	}
	return res, nil
}

// Query runs a query inside the transaction.
func (t *Txn) Query(query string, args ...any) (*sql.Rows, error) {
	defer observeQuery(query)()
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, &wutag.Error{Kind: wutag.ErrGeneral, Op: "Query", Inner: err}
	}
	return rows, nil
}

// QueryRow runs a single-row query inside the transaction.
func (t *Txn) QueryRow(query string, args ...any) *sql.Row {
	defer observeQuery(query)()
	return t.tx.QueryRowContext(t.ctx, query, args...)
}

// Context returns the context the transaction is bound to.
func (t *Txn) Context() context.Context { return t.ctx }
