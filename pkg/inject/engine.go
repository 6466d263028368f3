package inject

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// LegacyEngine is the engine whose responses use the two-branch
// success/error schema instead of the generic envelope.
const LegacyEngine = "tonhub-bridge"

// ErrUnknownMethod is returned for calls to unregistered methods.
var ErrUnknownMethod = errors.New("inject: unknown method")

// Call is the data part of an inbound envelope.
type Call struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Result is the outcome of one method call.
type Result struct {
	Type    string `json:"type"` // "ok" or "error"
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result { return Result{Type: "ok", Data: data} }

// Fail wraps err in an error Result.
func Fail(err error) Result { return Result{Type: "error", Message: err.Error()} }

// IsOK reports whether the call succeeded.
func (r Result) IsOK() bool { return r.Type == "ok" }

// Method handles one named call.
type Method func(ctx context.Context, args json.RawMessage) (any, error)

// Typed adapts a function taking decoded arguments into a Method. Arguments
// that fail to decode produce an error without calling fn.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Method {
	return func(ctx context.Context, args json.RawMessage) (any, error) {
		var in In
		if len(args) > 0 {
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}

		return fn(ctx, in)
	}
}

// Engine is a named registry of methods callable by embedded content.
type Engine struct {
	name    string
	mu      sync.RWMutex
	methods map[string]Method
}

// NewEngine creates an empty engine.
func NewEngine(name string) *Engine {
	return &Engine{
		name:    name,
		methods: make(map[string]Method),
	}
}

// Name returns the engine name used to select the response schema.
func (e *Engine) Name() string { return e.name }

// Register adds a method, replacing any previous one with the same name.
func (e *Engine) Register(name string, m Method) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.methods[name] = m
}

// Methods returns the registered method names, sorted.
func (e *Engine) Methods() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.methods))
	for n := range e.methods {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// Execute decodes data as a Call and runs the matching method. It never
// returns an error; failures, including panics in the method, become error
// results.
func (e *Engine) Execute(ctx context.Context, data json.RawMessage) (res Result) {
	var call Call
	if err := json.Unmarshal(data, &call); err != nil {
		return Fail(fmt.Errorf("inject: decode call: %w", err))
	}

	e.mu.RLock()
	m, ok := e.methods[call.Name]
	e.mu.RUnlock()

	if !ok {
		return Fail(fmt.Errorf("%w: %s", ErrUnknownMethod, call.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("inject: %s: panic: %v", call.Name, r))
		}
	}()

	out, err := m(ctx, call.Args)
	if err != nil {
		return Fail(err)
	}

	return OK(out)
}

// TxState is the user's decision on a transaction or signing request.
type TxState string

const (
	TxSent     TxState = "sent"
	TxRejected TxState = "rejected"
)

// TxResponse is returned by transaction-style methods. The legacy engine
// reshapes it into its success/error schema.
type TxResponse struct {
	State  TxState `json:"state"`
	Result *string `json:"result"`
}
