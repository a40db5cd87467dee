package driftdb

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/driftdb/driftdb-go/internal/codec"
	"github.com/driftdb/driftdb-go/internal/logging"
	"github.com/driftdb/driftdb-go/internal/wire"
	"github.com/driftdb/driftdb-go/term"
)

// Connection owns a handshaken stream and multiplexes concurrent
// queries over it by token. One background goroutine drains the stream
// and routes each decoded response to the waiting caller; writes are
// serialized per frame but never wait for responses to other tokens.
type Connection struct {
	opts   ConnectOpts
	stream io.ReadWriteCloser
	reader *bufio.Reader
	limits wire.Limits
	log    zerolog.Logger

	writeMu sync.Mutex

	serverVersion string

	token atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]*pendingQuery
	closed   bool
	closeErr error
}

type pendingQuery struct {
	ch chan pendingResult

	// abandoned marks a slot whose caller gave up; the reader discards
	// its responses so the token cannot leak.
	abandoned bool
	stopSent  bool
}

type pendingResult struct {
	resp *codec.Response
	err  error
}

func newConnection(stream io.ReadWriteCloser, opts ConnectOpts) *Connection {
	c := &Connection{
		opts:    opts,
		stream:  stream,
		reader:  bufio.NewReader(stream),
		limits:  wire.Limits{MaxPayloadBytes: opts.MaxResponseBytes},
		log:     logging.New("connection"),
		pending: make(map[uint64]*pendingQuery),
	}
	return c
}

// start launches the reader after the handshake (or directly in tests).
func (c *Connection) start() {
	go c.readLoop()
}

// ServerVersion reports the version string the server announced during
// the handshake. Empty when the connection was built over a raw stream
// in tests.
func (c *Connection) ServerVersion() string { return c.serverVersion }

// Run serializes the term, sends it as a START query, and waits for the
// first response. An atom yields its decoded value, a streamed result
// yields a *Cursor, WAIT_COMPLETE yields nil, and server-reported query
// failures come back as typed errors.
func (c *Connection) Run(ctx context.Context, t term.Term, opts RunOpts) (any, error) {
	encoded, err := codec.EncodeTerm(t)
	if err != nil {
		return nil, err
	}
	return c.runEncoded(ctx, encoded, opts)
}

// RunRaw sends an already-encoded wire term. Used by tooling that deals
// in raw protocol JSON.
func (c *Connection) RunRaw(ctx context.Context, encoded json.RawMessage, opts RunOpts) (any, error) {
	return c.runEncoded(ctx, encoded, opts)
}

func (c *Connection) runEncoded(ctx context.Context, encoded json.RawMessage, opts RunOpts) (any, error) {
	optsMap := opts.toMap()
	if c.opts.Database != "" {
		dbTerm, err := codec.EncodeTerm(term.DB(c.opts.Database))
		if err != nil {
			return nil, err
		}
		optsMap["db"] = json.RawMessage(dbTerm)
	}
	payload, err := codec.EncodeQuery(codec.QueryStart, encoded, optsMap)
	if err != nil {
		return nil, err
	}

	token := c.token.Add(1)
	if opts.Noreply {
		return nil, c.writeFrame(token, payload)
	}

	p, err := c.register(token)
	if err != nil {
		return nil, err
	}
	if err := c.writeFrame(token, payload); err != nil {
		c.unregister(token)
		return nil, err
	}
	resp, err := c.await(ctx, token, p)
	if err != nil {
		return nil, err
	}
	return c.firstResponse(token, resp)
}

// NoreplyWait blocks until the server has processed every previous
// noreply query on this connection.
func (c *Connection) NoreplyWait(ctx context.Context) error {
	payload, err := codec.EncodeQuery(codec.QueryNoreplyWait, nil, nil)
	if err != nil {
		return err
	}
	token := c.token.Add(1)
	p, err := c.register(token)
	if err != nil {
		return err
	}
	if err := c.writeFrame(token, payload); err != nil {
		c.unregister(token)
		return err
	}
	resp, err := c.await(ctx, token, p)
	if err != nil {
		return err
	}
	if resp.Type.IsError() {
		return responseError(resp)
	}
	return nil
}

// Close tears the connection down. Every pending caller is resolved
// with ErrConnectionClosed. Safe to call multiple times.
func (c *Connection) Close() error {
	c.teardown(ErrConnectionClosed)
	return nil
}

func (c *Connection) firstResponse(token uint64, resp *codec.Response) (any, error) {
	switch resp.Type {
	case codec.ResponseSuccessAtom:
		if len(resp.Results) == 0 {
			return nil, nil
		}
		return resp.Results[0], nil
	case codec.ResponseWaitComplete:
		return nil, nil
	case codec.ResponseSuccessSequence:
		return newCursor(c, token, resp.Results, true, false), nil
	case codec.ResponseSuccessPartial:
		return newCursor(c, token, resp.Results, false, false), nil
	case codec.ResponseSuccessFeed:
		return newCursor(c, token, resp.Results, false, true), nil
	default:
		return nil, responseError(resp)
	}
}

func (c *Connection) register(token uint64) (*pendingQuery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, c.closeErr
	}
	p := &pendingQuery{ch: make(chan pendingResult, 1)}
	c.pending[token] = p
	return p, nil
}

func (c *Connection) unregister(token uint64) {
	c.mu.Lock()
	delete(c.pending, token)
	c.mu.Unlock()
}

// await waits for the reader to hand over the next response for token.
// On caller cancellation the slot is marked abandoned; its eventual
// answer is discarded when it arrives.
func (c *Connection) await(ctx context.Context, token uint64, p *pendingQuery) (*codec.Response, error) {
	select {
	case result := <-p.ch:
		if result.err != nil {
			return nil, result.err
		}
		return result.resp, nil
	case <-ctx.Done():
		c.abandon(token, p)
		return nil, ctx.Err()
	}
}

func (c *Connection) abandon(token uint64, p *pendingQuery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if _, ok := c.pending[token]; ok {
		p.abandoned = true
	}
}

// writeFrame owns the write lock for exactly one frame. A failed size
// check never touches the stream and only fails the issuing caller; an
// actual write error means the stream can no longer be trusted, so it
// tears the connection down.
func (c *Connection) writeFrame(token uint64, payload []byte) error {
	if c.limits.MaxPayloadBytes > 0 && uint64(len(payload)) > uint64(c.limits.MaxPayloadBytes) {
		return ErrQueryTooLarge
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := wire.WriteFrame(c.stream, token, payload, c.limits); err != nil {
		c.log.Warn().Err(err).Uint64("token", token).Msg("frame write failed")
		c.teardown(ErrConnectionClosed)
		return ErrConnectionClosed
	}
	return nil
}

// readLoop is the single consumer of the stream. It runs until the
// stream fails or the connection closes; framing and decode errors are
// unrecoverable because the frame boundary is lost.
func (c *Connection) readLoop() {
	for {
		token, payload, err := wire.ReadFrame(c.reader, c.limits)
		if err != nil {
			c.log.Debug().Err(err).Msg("read loop exit")
			c.teardown(ErrConnectionClosed)
			return
		}
		resp, err := codec.DecodeResponse(payload)
		if err != nil {
			c.log.Warn().Err(err).Uint64("token", token).Msg("undecodable response frame")
			c.teardown(ErrConnectionClosed)
			return
		}
		c.dispatch(token, resp)
	}
}

func (c *Connection) dispatch(token uint64, resp *codec.Response) {
	streaming := resp.Type == codec.ResponseSuccessPartial || resp.Type == codec.ResponseSuccessFeed

	c.mu.Lock()
	p, ok := c.pending[token]
	if !ok {
		c.mu.Unlock()
		c.log.Debug().Uint64("token", token).Msg("response for unknown token dropped")
		return
	}
	if !streaming {
		delete(c.pending, token)
	}
	if p.abandoned {
		needStop := streaming && !p.stopSent
		if needStop {
			p.stopSent = true
		}
		c.mu.Unlock()
		c.log.Debug().Uint64("token", token).Msg("response for abandoned token discarded")
		if needStop {
			go c.sendStop(token)
		}
		return
	}
	c.mu.Unlock()

	select {
	case p.ch <- pendingResult{resp: resp}:
	default:
		// Two responses for one token without an intervening request is
		// a protocol violation; drop rather than stall the reader.
		c.log.Warn().Uint64("token", token).Msg("unsolicited extra response dropped")
	}
}

// continueToken sends CONTINUE for a streaming token and waits for the
// refill. The pending slot survives partial responses, so the same
// channel carries every batch.
func (c *Connection) continueToken(ctx context.Context, token uint64) (*codec.Response, error) {
	c.mu.Lock()
	p, ok := c.pending[token]
	c.mu.Unlock()
	if !ok {
		return nil, ErrConnectionClosed
	}

	payload, err := codec.EncodeQuery(codec.QueryContinue, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := c.writeFrame(token, payload); err != nil {
		return nil, err
	}
	return c.await(ctx, token, p)
}

// stopToken asks the server to stop a streaming token. Best effort: the
// slot is marked abandoned so the terminal answer is consumed and
// discarded whenever it lands.
func (c *Connection) stopToken(token uint64) error {
	c.mu.Lock()
	p, ok := c.pending[token]
	if ok {
		p.abandoned = true
		p.stopSent = true
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.sendStop(token)
}

func (c *Connection) sendStop(token uint64) error {
	payload, err := codec.EncodeQuery(codec.QueryStop, nil, nil)
	if err != nil {
		return err
	}
	return c.writeFrame(token, payload)
}

// teardown moves the connection to its terminal state and resolves
// every pending slot, so no caller is left waiting forever.
func (c *Connection) teardown(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	pend := c.pending
	c.pending = make(map[uint64]*pendingQuery)
	c.mu.Unlock()

	_ = c.stream.Close()
	for token, p := range pend {
		if p.abandoned {
			continue
		}
		select {
		case p.ch <- pendingResult{err: cause}:
		default:
			c.log.Debug().Uint64("token", token).Msg("pending slot already resolved")
		}
	}
}
