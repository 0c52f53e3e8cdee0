package httpbind

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jaz303/operation"
	"github.com/jaz303/operation/operr"
)

// Bind creates an Invoker running handler inside op's boundary for each
// HTTP request. The returned Invoker can be further customised before
// finally calling Go().
func Bind[I any, O any](
	op *operation.Operation,
	handler func(ctx context.Context, input *I) (*O, error),
) *Invoker[I, O] {
	return &Invoker[I, O]{
		op:      op,
		handler: handler,

		ctx:         func(r *http.Request) context.Context { return context.Background() },
		errorMapper: operr.DefaultErrorMapper,
	}
}

// Invoker acts as a configuration point when binding an operation-wrapped
// handler to an HTTP endpoint. Use its With* functions to customise
// input, output, and error behaviour, then call Go() to serve a request.
type Invoker[I any, O any] struct {
	op      *operation.Operation
	handler func(ctx context.Context, input *I) (*O, error)

	ctx          func(r *http.Request) context.Context
	inputMapper  func(r *http.Request) (*I, error)
	outputMapper func(w http.ResponseWriter, o *O)
	errorMapper  func(w http.ResponseWriter, err error)
}

// WithContext sets a static context for the operation.
func (i *Invoker[I, O]) WithContext(ctx context.Context) *Invoker[I, O] {
	i.ctx = func(r *http.Request) context.Context { return ctx }
	return i
}

// WithContextFunc sets fn as a context factory for the operation. This
// can be used, for example, to use the HTTP request's context as the
// operation context (in most cases this is undesirable, however).
func (i *Invoker[I, O]) WithContextFunc(fn func(*http.Request) context.Context) *Invoker[I, O] {
	i.ctx = fn
	return i
}

// WithInputMapper registers the binding's input mapper.
func (i *Invoker[I, O]) WithInputMapper(fn func(r *http.Request) (*I, error)) *Invoker[I, O] {
	i.inputMapper = fn
	return i
}

// WithOutputMapper registers the binding's output mapper.
func (i *Invoker[I, O]) WithOutputMapper(fn func(w http.ResponseWriter, o *O)) *Invoker[I, O] {
	i.outputMapper = fn
	return i
}

// WithJSONOutput is a shortcut for the common pattern of transforming the
// handler's output before writing it as JSON.
func (i *Invoker[I, O]) WithJSONOutput(fn func(w http.ResponseWriter, o *O) any) *Invoker[I, O] {
	i.outputMapper = func(w http.ResponseWriter, o *O) {
		WriteJSON(w, fn(w, o))
	}
	return i
}

// WithErrorMapper registers an error mapper for writing an error to the
// HTTP response.
//
// The error provided to the callback wraps both the source error, and one
// of either operr.ErrInputMappingFailed or operr.ErrOperationFailed, to
// indicate in which phase the error occurred.
//
// Since you will likely use the same error mapper for every operation, to
// avoid registering the mapper each time, it is common to wrap Bind() to
// attach your preferred handler automatically.
func (i *Invoker[I, O]) WithErrorMapper(fn func(w http.ResponseWriter, err error)) *Invoker[I, O] {
	i.errorMapper = fn
	return i
}

// Go serves one HTTP request: it maps the request to the handler's input,
// runs the handler inside the operation boundary, then writes the output
// or the error. A cancellation suppressed at the boundary yields 204 No
// Content.
func (i *Invoker[I, O]) Go(w http.ResponseWriter, r *http.Request) {
	input, err := i.getInputMapper()(r)
	if err != nil {
		i.errorMapper(w, fmt.Errorf("%w: %w", operr.ErrInputMappingFailed, err))
		return
	}

	output, err := operation.InvokeResult(i.getContext(r), i.op, func(ctx context.Context) (*O, error) {
		return i.handler(ctx, input)
	})
	if err != nil {
		i.errorMapper(w, fmt.Errorf("%w: %w", operr.ErrOperationFailed, err))
		return
	}
	if output == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	i.getOutputMapper()(w, output)
}

func (i *Invoker[I, O]) getContext(r *http.Request) context.Context {
	return i.ctx(r)
}

func (i *Invoker[I, O]) getInputMapper() func(r *http.Request) (*I, error) {
	if i.inputMapper == nil {
		return Zero[I]
	}
	return i.inputMapper
}

func (i *Invoker[I, O]) getOutputMapper() func(http.ResponseWriter, *O) {
	if i.outputMapper == nil {
		return func(w http.ResponseWriter, o *O) {
			WriteJSON(w, o)
		}
	}
	return i.outputMapper
}
