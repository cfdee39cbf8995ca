package config

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/graphcache/internal/transport"
)

// Connection is a transport built from a configuration. Close releases the
// WebSocket connection; it does nothing for HTTP.
type Connection struct {
	Transport transport.Transport
	close     func() error
}

// Close releases the connection.
func (c *Connection) Close() error {
	if c == nil || c.close == nil {
		return nil
	}
	return c.close()
}

// Connect builds the configured transport. A WebSocket transport dials
// immediately.
func (c *Config) Connect(ctx context.Context, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	header := http.Header{}
	for k, v := range c.Transport.Headers {
		header.Set(k, v)
	}

	switch c.Transport.Kind {
	case KindHTTP:
		opts := []transport.HTTPOption{
			transport.WithHTTPClient(&http.Client{Timeout: c.Transport.Timeout}),
			transport.WithBreaker(c.BreakerConfig("graphql-http")),
			transport.WithHTTPLogger(logger),
		}
		for k := range header {
			opts = append(opts, transport.WithHeader(k, header.Get(k)))
		}
		h, err := transport.NewHTTP(c.Transport.URL, opts...)
		if err != nil {
			return nil, err
		}
		return &Connection{Transport: h}, nil

	case KindWebSocket:
		if c.Transport.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Transport.Timeout)
			defer cancel()
		}
		ws, err := transport.DialWebSocket(ctx, c.Transport.URL, header, logger)
		if err != nil {
			return nil, err
		}
		return &Connection{Transport: ws, close: ws.Close}, nil

	default:
		return nil, fmt.Errorf("unknown transport kind %q", c.Transport.Kind)
	}
}
