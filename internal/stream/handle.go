package stream

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bgunnarsson/sqlrest/internal/db"
)

// Handle is a usable connection together with the obligation to give it
// up. A Stream takes ownership of the Handle it is opened on and calls
// Release exactly once, after its statement has been closed.
type Handle interface {
	Conn() db.Querier
	Release() error
}

// Own hands c to its consumer outright: releasing the handle closes c.
func Own(c db.Conn) Handle {
	return &owned{c: c}
}

type owned struct {
	c    db.Conn
	once sync.Once
	err  error
}

func (o *owned) Conn() db.Querier { return o.c }

func (o *owned) Release() error {
	o.once.Do(func() { o.err = o.c.Close() })
	return o.err
}

// Shared is a reference-counted connection. Share starts it with one
// reference held by the caller; every Retain adds one that must be matched
// by a Release. The connection is closed when the count drops to zero.
//
// Shared does not serialize statements: holders must not run statements on
// the connection concurrently from several goroutines.
type Shared struct {
	c    db.Conn
	refs atomic.Int64
}

// Share wraps c with a reference count of one.
func Share(c db.Conn) *Shared {
	s := &Shared{c: c}
	s.refs.Store(1)
	return s
}

// Retain adds a reference and returns s, so it can be passed to a Stream.
func (s *Shared) Retain() *Shared {
	s.refs.Add(1)
	return s
}

// Refs returns the current number of references.
func (s *Shared) Refs() int64 { return s.refs.Load() }

func (s *Shared) Conn() db.Querier { return s.c }

func (s *Shared) Release() error {
	switch n := s.refs.Add(-1); {
	case n == 0:
		return s.c.Close()
	case n < 0:
		return errors.New("shared connection released more often than retained")
	}
	return nil
}

// Pool checks connections out of a database/sql pool.
type Pool struct {
	DB *sql.DB
	// AcquireTimeout bounds how long Lease waits for a free connection.
	// Zero waits as long as ctx allows.
	AcquireTimeout time.Duration
}

// Lease checks out one connection. Releasing the lease returns the
// connection to the pool. Waiting past AcquireTimeout fails with
// db.ErrPoolExhausted.
func (p *Pool) Lease(ctx context.Context) (Handle, error) {
	if p.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.AcquireTimeout)
		defer cancel()
	}
	conn, err := p.DB.Conn(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &db.Error{Kind: db.KindPoolExhausted, Err: fmt.Errorf("no connection within %s: %w", p.AcquireTimeout, err)}
		}
		return nil, &db.Error{Kind: db.KindPool, Err: err}
	}
	return &lease{conn: conn}, nil
}

type lease struct {
	conn *sql.Conn
	once sync.Once
	err  error
}

func (l *lease) Conn() db.Querier { return l.conn }

func (l *lease) Release() error {
	l.once.Do(func() { l.err = l.conn.Close() })
	return l.err
}
