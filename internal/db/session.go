package db

import (
	"context"
	"errors"
	"fmt"
)

// Session is the transaction coordinator for one Conn. Begin switches the
// session out of auto-commit by opening a transaction; Commit and Rollback
// end it; Close puts the session back into auto-commit (any open transaction
// is rolled back) and releases the connection.
//
// A Session is used by a single goroutine.
type Session struct {
	conn Conn
	tx   Tx
}

// NewSession takes ownership of conn.
func NewSession(conn Conn) *Session { return &Session{conn: conn} }

// Conn exposes the underlying connection for reads outside a transaction.
func (s *Session) Conn() Conn { return s.conn }

// InTx reports whether a transaction is open.
func (s *Session) InTx() bool { return s.tx != nil }

// Begin opens a transaction, or returns the one already open.
func (s *Session) Begin(ctx context.Context) (Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// Commit commits the open transaction. Committing with no transaction open
// is an error.
func (s *Session) Commit(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("commit: no transaction open")
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the open transaction. It is a no-op when none is open.
func (s *Session) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(ctx); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back whatever is still open and closes the connection.
func (s *Session) Close(ctx context.Context) error {
	rbErr := s.Rollback(ctx)
	if err := s.conn.Close(ctx); err != nil {
		return err
	}
	return rbErr
}
