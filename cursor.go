package driftdb

import (
	"context"
	"sync"

	"github.com/driftdb/driftdb-go/internal/codec"
)

// Cursor is a lazy, forward-only view over a server-streamed result
// sequence. It buffers the batches received so far and transparently
// issues CONTINUE queries for more. A change-feed cursor never finishes
// naturally; it ends only through Close or connection loss.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	conn  *Connection
	token uint64

	mu       sync.Mutex
	buf      []any
	finished bool
	feed     bool
	closed   bool
}

func newCursor(conn *Connection, token uint64, first []any, finished, feed bool) *Cursor {
	buf := make([]any, len(first))
	copy(buf, first)
	return &Cursor{conn: conn, token: token, buf: buf, finished: finished, feed: feed}
}

// IsFeed reports whether this cursor follows an unbounded change feed.
func (c *Cursor) IsFeed() bool { return c.feed }

// Next yields the next item in frame arrival order. When the buffer is
// empty and the server has more, it blocks on a CONTINUE round trip.
// Returns ErrCursorEnd once the sequence is exhausted or the cursor is
// closed.
func (c *Cursor) Next(ctx context.Context) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if len(c.buf) > 0 {
			item := c.buf[0]
			c.buf = c.buf[1:]
			return item, nil
		}
		if c.closed || c.finished {
			return nil, ErrCursorEnd
		}

		resp, err := c.conn.continueToken(ctx, c.token)
		if err != nil {
			return nil, err
		}
		switch resp.Type {
		case codec.ResponseSuccessPartial, codec.ResponseSuccessFeed:
			c.buf = append(c.buf, resp.Results...)
		case codec.ResponseSuccessSequence:
			c.buf = append(c.buf, resp.Results...)
			c.finished = true
		default:
			c.finished = true
			if err := responseError(resp); err != nil {
				return nil, err
			}
			return nil, ErrCursorEnd
		}
	}
}

// All drains the cursor into a slice and closes it. Do not call on a
// feed cursor; it would never return.
func (c *Cursor) All(ctx context.Context) ([]any, error) {
	var out []any
	for {
		item, err := c.Next(ctx)
		if err != nil {
			if err == ErrCursorEnd {
				return out, c.Close()
			}
			_ = c.Close()
			return nil, err
		}
		out = append(out, item)
	}
}

// Close releases the cursor. If the server still holds state for the
// token, a single best-effort STOP is sent; late responses for the
// token are consumed and discarded. Idempotent.
func (c *Cursor) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	finished := c.finished
	c.buf = nil
	c.mu.Unlock()

	if finished {
		return nil
	}
	return c.conn.stopToken(c.token)
}
