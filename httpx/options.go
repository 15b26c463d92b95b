package httpx

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// HTTPErrorHandler handles errors raised during request processing.
type HTTPErrorHandler func(error, echo.Context)

type ServerOptions struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       zerolog.Logger
	Middlewares  []echo.MiddlewareFunc
	ErrorHandler HTTPErrorHandler
}

type ServerOption func(*ServerOptions)

func defaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:      ":8000",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		Logger:       zerolog.Nop(),
		ErrorHandler: defaultHTTPErrorHandler,
	}
}

func WithAddress(addr string) ServerOption {
	return func(o *ServerOptions) {
		if addr != "" {
			o.Address = addr
		}
	}
}

func WithTimeouts(read, write time.Duration) ServerOption {
	return func(o *ServerOptions) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// WithLogger sets the logger used for request logging; it is also made
// available to handlers through the request context.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(o *ServerOptions) {
		o.Logger = logger
	}
}

// AppendMiddlewares appends additional middleware after the built-in
// recover and request-log stack.
func AppendMiddlewares(mw ...echo.MiddlewareFunc) ServerOption {
	return func(o *ServerOptions) {
		if len(mw) > 0 {
			o.Middlewares = append(o.Middlewares, mw...)
		}
	}
}

func WithErrorHandler(handler HTTPErrorHandler) ServerOption {
	return func(o *ServerOptions) {
		if handler != nil {
			o.ErrorHandler = handler
		}
	}
}
