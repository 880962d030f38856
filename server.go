package jrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kytnacode/go-jrpcwire/internal/jsonutil"
	"github.com/kytnacode/go-jrpcwire/parse"
)

// Server dispatches JSON-RPC requests to the registered handlers and writes back their responses.
// Is safe for concurrent use.
type Server struct {
	registry       MethodRegister       // Registry of methods.
	errorLog       func(string, ...any) // Log errors.
	maxConcurrency int                  // Max calls of a batch running at once, 0 means no limit.
	limiter        *rate.Limiter        // Calls admission, nil means no limit.
	maxBodySize    int64                // Max size of an HTTP request body.
}

// DefaultMaxBodySize is the largest HTTP request body a server reads unless [WithMaxBodySize] says otherwise.
const DefaultMaxBodySize = 1 << 20

// Option configures a [Server].
type Option func(*Server)

// WithMaxConcurrency limits the number of calls of a single batch that run at the same time. n <= 0 means no
// limit, which is the default.
func WithMaxConcurrency(n int) Option {
	return func(s *Server) {
		s.maxConcurrency = n
	}
}

// WithRateLimit limits the server to rps calls per second with bursts of burst calls. A call over the limit is
// answered with a [ServerOverloaded] error, the handler is not run.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMaxBodySize limits the size of HTTP request bodies to n bytes, larger bodies are answered with status 413.
// n <= 0 keeps [DefaultMaxBodySize].
func WithMaxBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

// WithRegistry sets the registry of methods, see [Server.SetRegistry].
func WithRegistry(registry MethodRegister) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// NewServer creates a new server. errorLog receives the errors that can't be sent to the client, if nil no logging
// is done.
func NewServer(errorLog func(string, ...any), opts ...Option) *Server {
	if errorLog == nil {
		errorLog = func(string, ...any) {}
	}

	s := &Server{errorLog: errorLog, registry: NewRegistry(), maxBodySize: DefaultMaxBodySize}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SetRegistry sets the registry of methods, if not set, a new registry is created.
func (s *Server) SetRegistry(registry MethodRegister) {
	s.registry = registry
}

// Register registers a method with the server. Implements the Register interface.
func (s *Server) Register(method string, handler any) error {
	return s.registry.Register(method, handler)
}

// Accept serves every connection accepted from lis in its own goroutine until ctx is done or lis fails.
func (s *Server) Accept(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn, err := lis.Accept()
			if err != nil {
				return err
			}

			go s.ServeConn(ctx, conn)
		}
	}
}

// ServeConn reads and writes JSON-RPC messages from conn.
// It decodes the requests from conn and encodes the responses back to conn, one JSON text per message.
// A message that is not valid JSON is answered with a parse error and ends the connection, as the stream can't be
// resynchronised. Closes conn when done.
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	closeConn := sync.OnceValue(conn.Close)
	defer closeConn()

	// Unblock the decoder when ctx is done.
	go func() {
		<-ctx.Done()
		closeConn()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var msg json.RawMessage // Raw JSON-RPC message.

		if err := dec.Decode(&msg); errors.Is(err, io.EOF) { // Connection closed.
			return
		} else if err != nil { // Decode error.
			if ctx.Err() != nil {
				return
			}

			s.errorLog("failed to decode message: %v", err)
			s.write(enc, parseError(err))

			return
		}

		res, ok := s.Handle(ctx, msg)
		if !ok { // Notifications only, don't write anything at all.
			continue
		}

		s.write(enc, res)
	}
}

// ServeHTTP implements the http.Handler interface. The request body is one JSON-RPC message.
//
// The response has status 204 when there is nothing to answer. A single error response gets the status matching its
// code, see httpStatus; batches are always 200.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "JSON-RPC requests must use POST", http.StatusMethodNotAllowed)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, s.maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)

			return
		}

		s.errorLog("failed to read request body: %v", err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)

		return
	}

	res, ok := s.Handle(req.Context(), body)
	if !ok {
		w.WriteHeader(http.StatusNoContent)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(res))

	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.errorLog("failed to encode response: %v", err)
	}
}

// Handle takes a raw JSON-RPC message and returns the response to it. ok is false if there is nothing to answer,
// when the message is a notification or a batch of notifications.
//
// The returned batch is a single response for a single request and for message level failures (invalid JSON, an
// empty batch, a message that is neither an object nor an array), an array otherwise, in the order of the requests.
func (s *Server) Handle(ctx context.Context, msg []byte) (res Batch, ok bool) {
	switch jsonutil.FirstByte(msg) {
	case '[': // Batch request.
		var elems []json.RawMessage
		if err := json.Unmarshal(msg, &elems); err != nil {
			return parseError(err), true
		}

		if len(elems) == 0 {
			return Single(InvalidRequestResponse(NullID)), true
		}

		return s.handleBatch(ctx, elems)
	case '{': // Single request.
		if !json.Valid(msg) {
			return parseError(nil), true
		}

		r, ok := s.handleRequest(ctx, msg)
		if !ok {
			return Batch{}, false
		}

		return Single(r), true
	case 0:
		return parseError(fmt.Errorf("empty message: %w", ErrEmptyRequest)), true
	default:
		if !json.Valid(msg) {
			return parseError(nil), true
		}

		return Single(InvalidRequestResponse(NullID)), true // Valid JSON, but not a request.
	}
}

// handleBatch handles concurrently a batch of requests. The responses keep the order of the requests, responses to
// notifications are left out.
func (s *Server) handleBatch(ctx context.Context, elems []json.RawMessage) (Batch, bool) {
	responses := make([]Response, len(elems))
	replied := make([]bool, len(elems))

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, elem := range elems {
		g.Go(func() error {
			responses[i], replied[i] = s.handleRequest(ctx, elem)

			return nil
		})
	}

	_ = g.Wait() // Calls never fail, failures are outcomes.

	out := make([]Response, 0, len(elems))

	for i := range elems {
		if replied[i] {
			out = append(out, responses[i])
		}
	}

	if len(out) == 0 {
		return Batch{}, false
	}

	return NewBatch(out), true
}

// handleRequest handles a single request, ok is false for notifications.
func (s *Server) handleRequest(ctx context.Context, raw json.RawMessage) (res Response, ok bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return InvalidRequestResponse(recoverID(raw)), true
	}

	if err := validateRequest(&req); err != nil {
		id := NullID
		if req.ID != nil {
			id = *req.ID
		}

		return InvalidRequestResponse(id), true
	}

	outcome := s.call(ctx, &req)

	if req.IsNotification() {
		return Response{}, false
	}

	return NewResponse(*req.ID, outcome), true
}

// call runs the handler of a valid request. Handler errors that are an [Error] are sent as is, any other error is
// logged and answered with an internal error.
func (s *Server) call(ctx context.Context, req *Request) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.errorLog("method %q panicked: %v", req.Method, r)
			outcome = Failure(NewInternalError())
		}
	}()

	if s.limiter != nil && !s.limiter.Allow() {
		return Failure(NewServerOverloadedError())
	}

	paramsT, err := s.registry.MethodParamsType(req.Method)
	if errors.Is(err, ErrMethodNotFound) {
		return Failure(errorWithData(NewMethodNotFoundError(), req.Method))
	} else if err != nil {
		s.errorLog("failed to look up method %q: %v", req.Method, err)

		return Failure(NewInternalError()) // Don't expose internal errors.
	}

	var params any

	if req.Params != nil {
		params, err = parse.ParamsType(paramsT, req.Params) // Parse params.
		if err != nil {
			return Failure(errorWithData(NewInvalidParamsError(), err.Error()))
		}
	}

	result, err := s.registry.Call(ctx, req.Method, params) // Call method.
	if err != nil {
		if e, ok := asError(err); ok {
			return Failure(e)
		}

		if errors.Is(err, ErrMethodNotFound) {
			return Failure(errorWithData(NewMethodNotFoundError(), req.Method))
		}

		s.errorLog("method %q failed: %v", req.Method, err)

		return Failure(NewInternalError())
	}

	// Encode now so a reply that can't be marshaled fails this call only.
	raw, err := json.Marshal(result)
	if err != nil {
		s.errorLog("failed to marshal reply of method %q: %v", req.Method, err)

		return Failure(NewInternalError())
	}

	return Success(json.RawMessage(raw))
}

func (s *Server) write(enc *json.Encoder, res Batch) {
	if err := enc.Encode(res); err != nil {
		s.errorLog("failed to encode response: %v", err)
	}
}

// parseError returns a parse error response, err is sent as data if not nil.
func parseError(err error) Batch {
	e := NewParseError()
	if err != nil {
		e = errorWithData(e, err.Error())
	}

	return ErrorBatch(e)
}

// errorWithData attaches data to e, e is returned unchanged if data can't be marshaled.
func errorWithData(e Error, data any) Error {
	if withData, err := e.WithData(data); err == nil {
		return withData
	}

	return e
}

// httpStatus maps the response to a single call to an HTTP status code.
func httpStatus(res Batch) int {
	if res.IsBatch() || res.Len() != 1 {
		return http.StatusOK
	}

	e, ok := res.responses[0].Outcome().Err()
	if !ok {
		return http.StatusOK
	}

	switch e.Code() {
	case ParseError, InvalidRequest, InvalidParams:
		return http.StatusBadRequest
	case MethodNotFound:
		return http.StatusNotFound
	case InternalError:
		return http.StatusInternalServerError
	case ServerOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}
