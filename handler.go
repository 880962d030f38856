package jrpc

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrInvalidHandlerType = errors.New("invalid handler type") // Error returned when the handler is invalid.
	ErrMethodNotFound     = errors.New("method not found")     // Error returned when the method is not found.
)

// RegisterInto is a type-safe wrapper around Register.Register.
func RegisterInto[I, O any](r Register, method string, handler func(in I, out *O) error) error {
	return r.Register(method, handler)
}

// RegisterContextInto is like [RegisterInto] for handlers that take the call context.
func RegisterContextInto[I, O any](
	r Register,
	method string,
	handler func(ctx context.Context, in I, out *O) error,
) error {
	return r.Register(method, handler)
}

// Register defines the method to register a handler.
type Register interface {
	Register(method string, handler any) error
}

// MethodRegister is what a [Server] dispatches calls to. [Registry] implements it.
type MethodRegister interface {
	Register

	// MethodParamsType returns the type the params of method must be decoded into, or an error wrapping
	// ErrMethodNotFound.
	MethodParamsType(method string) (reflect.Type, error)

	// Call calls the handler for method and returns its reply.
	Call(ctx context.Context, method string, params any) (any, error)
}

// handler is a validated handler function.
type handler struct {
	fn         reflect.Value
	withCtx    bool         // First argument is a context.Context.
	paramsType reflect.Type // Type of the args argument.
	replyType  reflect.Type // Type pointed to by the reply argument.
}

// Registry registers handlers and calls them. Implements the [MethodRegister] interface.
// Is safe for concurrent use.
type Registry struct {
	handlers sync.Map // method name -> *handler
}

// NewRegistry creates a new Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register registers a handler for the method. Implements the [Register] interface.
// The handler must be a function with one of the signatures
//
//	func(args A, reply *R) error
//	func(ctx context.Context, args A, reply *R) error
//
// where A is a struct or a pointer to a struct. Registering a method again replaces its handler.
func (r *Registry) Register(method string, fn any) error {
	h, err := newHandler(reflect.ValueOf(fn))
	if err != nil {
		return fmt.Errorf("method %q: %w", method, err)
	}

	r.handlers.Store(method, h)

	return nil
}

// MethodParamsType returns the args type of the handler registered for method.
func (r *Registry) MethodParamsType(method string) (reflect.Type, error) {
	h, err := r.lookup(method)
	if err != nil {
		return nil, err
	}

	return h.paramsType, nil
}

// Call calls the handler for the method with the params and returns the reply.
// Params must be a value of the handler's args type, for get a valid value from the raw params use the
// parse.Params or parse.ParamsType functions. A nil params calls the handler with the zero value, or a pointer to
// it when the args type is a pointer.
func (r *Registry) Call(ctx context.Context, method string, params any) (any, error) {
	h, err := r.lookup(method)
	if err != nil {
		return nil, err
	}

	paramsV := reflect.Zero(h.paramsType)
	if h.paramsType.Kind() == reflect.Pointer {
		paramsV = reflect.New(h.paramsType.Elem())
	}

	if params != nil {
		paramsV = reflect.ValueOf(params)
		if paramsV.Type() != h.paramsType {
			return nil, fmt.Errorf("method %q takes %v, got %v: %w", method, h.paramsType, paramsV.Type(), ErrInvalidHandlerType)
		}
	}

	replyV := reflect.New(h.replyType) // Pass reply as reference.

	in := []reflect.Value{paramsV, replyV}
	if h.withCtx {
		if ctx == nil {
			ctx = context.Background()
		}

		in = append([]reflect.Value{reflect.ValueOf(ctx)}, in...)
	}

	out := h.fn.Call(in)

	if outErr, _ := out[0].Interface().(error); outErr != nil { // Safe to convert.
		return nil, outErr
	}

	return replyV.Interface(), nil
}

func (r *Registry) lookup(method string) (*handler, error) {
	h, ok := r.handlers.Load(method)
	if !ok {
		return nil, fmt.Errorf("method %q not found: %w", method, ErrMethodNotFound)
	}

	return h.(*handler), nil //nolint:forcetypeassert // Only *handler is stored.
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// newHandler checks the handler type.
func newHandler(fn reflect.Value) (*handler, error) {
	if fn.Kind() != reflect.Func { // Must be a function.
		return nil, fmt.Errorf("handler must be a function: %w", ErrInvalidHandlerType)
	}

	fnT := fn.Type()
	h := &handler{fn: fn}

	first := 0
	if fnT.NumIn() == 3 && fnT.In(0) == contextType {
		h.withCtx = true
		first = 1
	}

	if fnT.NumIn()-first != 2 { // Must take arguments and reply.
		return nil, fmt.Errorf("handler must take args and reply, got %v arguments: %w", fnT.NumIn(), ErrInvalidHandlerType)
	}

	argsT, replyT := fnT.In(first), fnT.In(first+1)

	// Check if the args argument is a struct or a pointer to a struct.
	if argsT.Kind() != reflect.Struct && !(argsT.Kind() == reflect.Pointer && argsT.Elem().Kind() == reflect.Struct) {
		return nil, fmt.Errorf("handler's args must be a struct or a pointer to a struct, got %v: %w", argsT.Kind(), ErrInvalidHandlerType)
	}

	if replyT.Kind() != reflect.Pointer { // Must be a pointer.
		return nil, fmt.Errorf("handler's reply must be a pointer, got %v: %w", replyT.Kind(), ErrInvalidHandlerType)
	}

	if fnT.NumOut() != 1 || fnT.Out(0) != errorType { // Must return an error.
		return nil, fmt.Errorf("handler must return only an error: %w", ErrInvalidHandlerType)
	}

	h.paramsType = argsT
	h.replyType = replyT.Elem()

	return h, nil
}
