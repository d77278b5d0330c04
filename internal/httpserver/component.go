package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

var errNotReady = errors.New("server is not ready")

// component is the listener lifecycle shared by the API and metrics servers.
type component struct {
	logger *slog.Logger
	name   string
	port   string

	mu         sync.Mutex
	server     *http.Server
	addr       string
	ready      chan struct{}
	inShutdown atomic.Bool
}

func newComponent(logger *slog.Logger, name, port string) *component {
	return &component{
		logger: logger.With("component", name),
		name:   name,
		port:   port,
		ready:  make(chan struct{}),
	}
}

// Name returns the name of the server component.
func (c *component) Name() string {
	return c.name
}

// Ready returns a channel that is closed once the listener is bound.
func (c *component) Ready() <-chan struct{} {
	return c.ready
}

// Addr returns the bound address, empty before Start.
func (c *component) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addr
}

// Ping returns nil when the server is serving.
func (c *component) Ping(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ready:
		if c.inShutdown.Load() {
			return fmt.Errorf("%s: %w", c.name, errNotReady)
		}

		return nil
	default:
		return fmt.Errorf("%s: %w", c.name, errNotReady)
	}
}

// serve binds the port synchronously, so a busy port fails Start, and then
// serves in the background.
func (c *component) serve(ctx context.Context, handler http.Handler) error {
	if c.inShutdown.Load() {
		c.logger.InfoContext(ctx, "server is shutting down, skipping start")

		return nil
	}

	lc := &net.ListenConfig{
		KeepAliveConfig: net.KeepAliveConfig{
			Enable: true,
		},
	}

	listener, err := lc.Listen(ctx, "tcp", ":"+c.port)
	if err != nil {
		return fmt.Errorf("listen %s tcp: %w", c.name, err)
	}

	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	c.mu.Lock()
	c.server = server
	c.addr = listener.Addr().String()
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "listening", "addr", listener.Addr().String())

	close(c.ready)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.ErrorContext(ctx, "server error", "reason", err)
		}
	}()

	return nil
}

// Shutdown drains in-flight requests.
func (c *component) Shutdown(ctx context.Context) error {
	if !c.inShutdown.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	server := c.server
	c.mu.Unlock()

	if server == nil {
		return nil
	}

	c.logger.InfoContext(ctx, "shutting down")

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", c.name, err)
	}

	c.logger.InfoContext(ctx, "closed properly")

	return nil
}
