package jrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kytnacode/go-jrpcwire/parse"
)

// Errors returned by the client.
var (
	// Server returned an unknown error.
	ErrUnknownError = errors.New("unknown server error")

	// Server returned a response with an ID that does not match any pending call.
	ErrUnmatchedCall = errors.New("response ID does not match any pending call")

	// Client was shutdown.
	ErrClientShutdown = errors.New("client shutdown")

	// An error occurred in one or more requests in a batch call.
	ErrBatch = errors.New("error in batch response")

	// ErrNullID is returned when the server returned a response without a usable ID, typically an invalid request or
	// parse error answered with a null ID. Single calls stay pending, as the response can't be matched. A batch call
	// with at least one matched response is marked as done with this error in [CallState].Error.
	ErrNullID = errors.New("response contain null ID(s)")
)

// Client represents a JSON-RPC client, it is used to make calls to the server, is necessary to call [Client.Input]
// to start reading the responses from the server.
//
// Is safe for concurrent use.
//
// Implements [Generator].
//
// Example:
//
//	conn, err := net.Dial("tcp", "localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c := jrpc.NewClient(conn)
//	go c.Input(context.Background(), errCh)
//
//	call := c.Call(jrpc.Call("method").Args(args))
//	if call.Error != nil {
//	    // Handle error
//	}
//
//	result := call.Result[0] // Single call, the result will be the element with key 0.
type Client struct {
	seq  atomic.Uint64
	conn io.ReadWriteCloser

	encMu sync.Mutex
	enc   *json.Encoder
	dec   *json.Decoder

	pendingMu sync.Mutex
	pending   map[uint64]*CallState
	closed    bool

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new [Client] over the given connection. Once the client is created is necessary to call
// [Client.Input] to start reading the responses from the server.
func NewClient(conn io.ReadWriteCloser) *Client {
	return &Client{
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(conn),
		pending: make(map[uint64]*CallState),
		closeCh: make(chan struct{}),
	}
}

// Call makes a synchronous call to the server and blocks until it is done. [CallState].Result has only one element,
// the response indexed by 0.
func (c *Client) Call(data *CallData) *CallState {
	return <-c.Go(nil, data).Done
}

// CallBatch makes a synchronous batch call to the server and blocks until the server responds to all requests.
// [CallState].Result is indexed by request ID, see [CallData.GetID]; notifications have no entry.
func (c *Client) CallBatch(data ...*CallData) *CallState {
	return <-c.GoBatch(nil, data...).Done
}

// Closed returns a channel that is closed when the client is closed and all pending calls are done.
func (c *Client) Closed() <-chan struct{} {
	return c.closeCh
}

// Go makes an asynchronous non-batch call to the server. If done is nil a new channel is allocated, if non-nil
// done must be buffered. A notification is done as soon as it is sent.
func (c *Client) Go(done chan *CallState, data *CallData) *CallState {
	call := newCallState(done, false)

	req, seq, err := c.request(data)
	if err != nil {
		return call.fail(err)
	}

	if data.notify {
		if err := c.send(req); err != nil {
			return call.fail(err)
		}

		return call.finish()
	}

	return c.sendPending(call, req, seq)
}

// GoBatch makes an asynchronous batch call to the server. [CallState].Done receives the call when every
// non-notification request has been answered, or immediately if there is none.
func (c *Client) GoBatch(done chan *CallState, data ...*CallData) *CallState {
	call := newCallState(done, true)

	reqs := make([]Request, 0, len(data))
	seqs := make([]uint64, 0, len(data))

	for _, d := range data {
		req, seq, err := c.request(d)
		if err != nil {
			return call.fail(err)
		}

		reqs = append(reqs, req)

		if !d.notify {
			seqs = append(seqs, seq)
		}
	}

	if len(seqs) == 0 {
		if err := c.send(reqs); err != nil {
			return call.fail(err)
		}

		return call.finish()
	}

	return c.sendPending(call, reqs, seqs...)
}

// request builds the request for data, returning the sequence number of its ID.
func (c *Client) request(data *CallData) (Request, uint64, error) {
	req := Request{JSONRPC: Version, Method: data.method}

	var seq uint64

	if !data.notify {
		if data.gen != nil || data.id != nil {
			data.GetID(&seq)
		} else {
			seq = c.Next()
		}

		id := NumberID(int64(seq)) //nolint:gosec // IDs are far below the int64 range.
		req.ID = &id
	}

	if data.args != nil {
		params, err := json.Marshal(data.args)
		if err != nil {
			return req, seq, fmt.Errorf("failed to marshal params of %q: %w", data.method, err)
		}

		req.Params = params
	}

	return req, seq, nil
}

// sendPending registers call under seqs and sends msg.
func (c *Client) sendPending(call *CallState, msg any, seqs ...uint64) *CallState {
	c.pendingMu.Lock()

	if c.closed {
		c.pendingMu.Unlock()

		return call.fail(fmt.Errorf("failed to send the request: %w", ErrClientShutdown))
	}

	for _, seq := range seqs {
		c.pending[seq] = call
	}

	call.remaining = len(seqs)

	c.pendingMu.Unlock()

	if err := c.send(msg); err != nil {
		c.pendingMu.Lock()
		for _, seq := range seqs {
			delete(c.pending, seq)
		}
		c.pendingMu.Unlock()

		return call.fail(err)
	}

	return call
}

func (c *Client) send(msg any) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()

	if err := c.enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to send the request: %w", err)
	}

	return nil
}

// Input reads the responses from the server, and sends them to the [CallState] objects. It blocks until the
// connection is closed, an error occurs, or the context is cancelled. Errors that can't be attributed to a call are
// sent to errCh, which may be nil. When Input returns all pending calls are done with [ErrClientShutdown].
//
// Is usually called in a goroutine:
//
//	errCh := make(chan error, 1)
//
//	c := jrpc.NewClient(conn)
//	go c.Input(context.Background(), errCh)
func (c *Client) Input(ctx context.Context, errCh chan error) {
	report := func(err error) {
		if errCh != nil {
			errCh <- err
		}
	}

	stop := context.AfterFunc(ctx, func() {
		if err := c.conn.Close(); err != nil {
			report(fmt.Errorf("failed to close connection: %w", err))
		}
	})
	defer stop()

	for ctx.Err() == nil {
		var res Batch

		if err := c.dec.Decode(&res); err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				report(fmt.Errorf("failed to decode message: %w", err))
			}

			if errors.Is(err, ErrMalformedResponse) {
				continue // The JSON text was consumed, the stream is still usable.
			}

			break
		}

		for _, err := range c.dispatch(res) {
			report(err)
		}
	}

	c.shutdown()
}

// dispatch delivers the responses of res to their calls, returning the errors that can't be attributed to one.
func (c *Client) dispatch(res Batch) []error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	var errs []error

	touched := make([]*CallState, 0, res.Len())
	unmatched := 0

	for _, r := range res.Responses() {
		seq, ok := responseSeq(r)
		if !ok {
			unmatched++

			continue
		}

		call, ok := c.pending[seq]
		if !ok {
			errs = append(errs, fmt.Errorf("failed to find call with ID %d: %w", seq, ErrUnmatchedCall))

			continue
		}

		delete(c.pending, seq)

		call.remaining--
		call.deliver(seq, r.Outcome())

		touched = append(touched, call)
	}

	if unmatched > 0 {
		errs = append(errs, fmt.Errorf("response contains %d null IDs: %w", unmatched, ErrNullID))
	}

	for _, call := range touched {
		if call.done {
			continue
		}

		if unmatched > 0 && call.Batch {
			// Some requests of the batch were answered without ID, they will never be matched.
			for seq, pending := range c.pending {
				if pending == call {
					delete(c.pending, seq)
				}
			}

			call.Error = fmt.Errorf("response contain null IDs, some requests may be invalid: %w", ErrNullID)
			call.finish()

			continue
		}

		if call.remaining == 0 {
			call.finish()
		}
	}

	return errs
}

// shutdown marks the client as closed and all pending calls as done.
func (c *Client) shutdown() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for seq, call := range c.pending {
		delete(c.pending, seq)

		// Batch calls are mapped to the same call, so we only need to finish the call once.
		if !call.done {
			call.Error = fmt.Errorf("failed to close connection: %w", ErrClientShutdown)
			call.finish()
		}
	}

	c.closed = true

	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// responseSeq returns the sequence number of the ID of r, ok is false if it has no numeric ID.
func responseSeq(r Response) (uint64, bool) {
	id, ok := r.ID()
	if !ok {
		return 0, false
	}

	n, ok := id.Number()
	if !ok {
		return 0, false
	}

	seq, err := strconv.ParseUint(n.String(), 10, 64)

	return seq, err == nil
}

// MakeCall behaves like [Call] but sets the generator to an autoincrementing ID:
//
//	// jrpc.Call("method").GenID(c) is equivalent to
//	c.MakeCall("method")
func (c *Client) MakeCall(method string) *CallData {
	return Call(method).GenID(c)
}

// Next returns an incrementing ID starting from 0. Implements [Generator].
func (c *Client) Next() uint64 {
	return c.seq.Add(1) - 1
}

// Generator defines the interface for generate IDs for the calls. The [Client] implements this interface.
type Generator interface {
	Next() uint64 // Generate the next ID.
}

// CallState contains the state of a call to the server. If the whole call fails (the connection was closed, an
// error response to a single call, ...) [CallState].Error is set; errors of the requests of a batch are set on
// the [CallResult].Error of each request.
type CallState struct {
	// Error is set if the call itself failed.
	Error error

	// Result contains the result of all non-notification requests, the key is the ID of the request, see
	// [CallData.GetID]. For non-batch calls the key is 0.
	Result map[uint64]CallResult

	// Batch will be true if the call is a batch call, and false if the call is a single call.
	Batch bool

	// Done receives the CallState itself when the call is done.
	Done chan *CallState

	remaining int  // Responses still expected.
	done      bool // Guarded by Client.pendingMu once the call is pending.
}

func newCallState(done chan *CallState, batch bool) *CallState {
	if done == nil {
		done = make(chan *CallState, 1)
	}

	return &CallState{
		Result: make(map[uint64]CallResult),
		Batch:  batch,
		Done:   done,
	}
}

// deliver records the outcome of the request seq.
func (call *CallState) deliver(seq uint64, outcome Outcome) {
	key := seq
	if !call.Batch {
		key = 0
	}

	if e, ok := outcome.Err(); ok {
		err := callError(e)
		call.Result[key] = CallResult{Error: err}

		if call.Batch {
			call.Error = fmt.Errorf("error in batch response: %w", ErrBatch)
		} else {
			call.Error = err
		}

		return
	}

	result, _ := outcome.Result() // Decoded outcomes hold a json.RawMessage.
	raw, _ := result.(json.RawMessage)

	call.Result[key] = CallResult{Result: raw}
}

func (call *CallState) fail(err error) *CallState {
	call.Error = err

	return call.finish()
}

func (call *CallState) finish() *CallState {
	call.done = true
	call.Done <- call

	return call
}

// CallResult contains the result of one request. If successful [CallResult].Error is nil and
// [CallResult].Result holds the encoded result, otherwise [CallResult].Error holds the error.
type CallResult struct {
	// Result is the result of the request.
	Result json.RawMessage

	// Error is the error of the request, it wraps the matching sentinel error and the [Error] sent by the server.
	Error error
}

// Decode unmarshals the result into v, or returns the error of the request.
func (r CallResult) Decode(v any) error {
	if r.Error != nil {
		return r.Error
	}

	return json.Unmarshal(r.Result, v)
}

// CallData contains the method and arguments to be sent to the server, is used by [Client] to make a call to the
// server. To create a new CallData, use [Call] function. To set the arguments, use [CallData.Args] method:
//
//	call := jrpc.Call("method").Args(args)
//	call := jrpc.Call("method").Args([]string{"arg1", "arg2"})
type CallData struct {
	method string
	args   any
	id     *uint64
	gen    Generator
	notify bool
}

// Call wraps the necessary data to make a call to the server into a [CallData] object:
//
//	// Single call.
//	client.Call(jrpc.Call("method").Args(args))
//
//	// Batch call.
//	client.CallBatch(
//	    jrpc.Call("method1").Args(args1),
//	    jrpc.Call("method2").Args(args2),
//	)
func Call(method string) *CallData {
	return &CallData{
		method: method,
	}
}

// Args sets the arguments for the call, and returns the [CallData] object itself.
func (c *CallData) Args(args any) *CallData {
	c.args = args

	return c
}

// Notify makes the request a notification, a request that does not expect a response from the server.
func (c *CallData) Notify() *CallData {
	c.notify = true

	return c
}

// GenID sets the generator for the call, and returns the [CallData] object itself. [Client] implements the
// [Generator] interface, see also [Client.MakeCall].
func (c *CallData) GenID(gen Generator) *CallData {
	c.gen = gen

	return c
}

// GetID sets id to the ID of the call, and returns the [CallData] object itself. The ID is generated on first use,
// so GetID must be called after [CallData.GenID] unless you are using the [Client.MakeCall] method.
func (c *CallData) GetID(id *uint64) *CallData {
	if c.id == nil {
		c.id = new(uint64)
		*c.id = c.gen.Next()
	}

	*id = *c.id

	return c
}

// Method overrides the method of the call, and returns the [CallData] object itself.
func (c *CallData) Method(method string) *CallData {
	c.method = method

	return c
}

// callError maps an error response to a Go error wrapping both the matching sentinel error and e.
func callError(e Error) error {
	var sentinel error

	switch e.Code() {
	case ParseError:
		sentinel = ErrParse
	case InvalidRequest:
		sentinel = ErrInvalidRequest
	case MethodNotFound:
		sentinel = ErrMethodNotFound
	case InvalidParams:
		sentinel = parse.ErrInvalidParams
	case InternalError:
		sentinel = ErrInternalError
	default:
		sentinel = ErrUnknownError
	}

	return fmt.Errorf("%v: %w: %w", e.Message(), sentinel, e)
}
