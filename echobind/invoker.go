package echobind

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jaz303/operation"
	"github.com/jaz303/operation/operr"
	"github.com/labstack/echo/v4"
)

// Bind creates an Invoker running handler inside op's boundary for each
// Echo request. The returned Invoker can be further customised before
// finally calling Go().
func Bind[I any, O any](
	op *operation.Operation,
	handler func(ctx context.Context, input *I) (*O, error),
) *Invoker[I, O] {
	return &Invoker[I, O]{
		op:      op,
		handler: handler,

		ctx: func(c echo.Context) context.Context { return context.Background() },
	}
}

// Invoker acts as a configuration point when binding an operation-wrapped
// handler to an Echo route. Use its With* functions to customise input
// and output behaviour, then call Go() to produce an echo.HandlerFunc.
type Invoker[I any, O any] struct {
	op      *operation.Operation
	handler func(ctx context.Context, input *I) (*O, error)

	ctx          func(c echo.Context) context.Context
	inputMapper  func(c echo.Context) (*I, error)
	outputMapper func(c echo.Context, o *O) error
}

// WithContext sets a static context for the operation.
func (i *Invoker[I, O]) WithContext(ctx context.Context) *Invoker[I, O] {
	i.ctx = func(c echo.Context) context.Context { return ctx }
	return i
}

// WithContextFunc sets fn as a context factory for the operation.
func (i *Invoker[I, O]) WithContextFunc(fn func(echo.Context) context.Context) *Invoker[I, O] {
	i.ctx = fn
	return i
}

// WithInputMapper registers the binding's input mapper.
func (i *Invoker[I, O]) WithInputMapper(fn func(c echo.Context) (*I, error)) *Invoker[I, O] {
	i.inputMapper = fn
	return i
}

// WithOutputMapper registers the binding's output mapper.
func (i *Invoker[I, O]) WithOutputMapper(fn func(c echo.Context, o *O) error) *Invoker[I, O] {
	i.outputMapper = fn
	return i
}

// Go returns an echo.HandlerFunc serving the bound operation: it maps the
// request to the handler's input, runs the handler inside the operation
// boundary, then writes the output. Mapping and operation errors are
// returned to Echo wrapped in operr.ErrInputMappingFailed or
// operr.ErrOperationFailed respectively; a cancellation suppressed at the
// boundary yields 204 No Content.
func (i *Invoker[I, O]) Go() echo.HandlerFunc {
	return func(c echo.Context) error {
		input, err := i.getInputMapper()(c)
		if err != nil {
			return fmt.Errorf("%w: %w", operr.ErrInputMappingFailed, err)
		}

		output, err := operation.InvokeResult(i.ctx(c), i.op, func(ctx context.Context) (*O, error) {
			return i.handler(ctx, input)
		})
		if err != nil {
			return fmt.Errorf("%w: %w", operr.ErrOperationFailed, err)
		}
		if output == nil {
			return c.NoContent(http.StatusNoContent)
		}

		return i.getOutputMapper()(c, output)
	}
}

func (i *Invoker[I, O]) getInputMapper() func(c echo.Context) (*I, error) {
	if i.inputMapper == nil {
		return BindInput[I]
	}
	return i.inputMapper
}

func (i *Invoker[I, O]) getOutputMapper() func(c echo.Context, o *O) error {
	if i.outputMapper == nil {
		return func(c echo.Context, o *O) error {
			return c.JSON(http.StatusOK, o)
		}
	}
	return i.outputMapper
}

// BindInput reads the request into a *I using Echo's binder.
func BindInput[I any](c echo.Context) (*I, error) {
	var out I
	if err := c.Bind(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
