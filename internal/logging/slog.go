package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// osStdout is swapped out by tests that capture console output.
var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional GELF and OTel
// integration. Every record passes through a ContextHandler fed by the
// registered context provider, so connection attributes show up on all
// sinks without threading the connector through every log call.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	mu      sync.Mutex
	context ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// SetContextProvider registers the source of dynamic record attributes,
// such as the current server address and mission name. May be called
// before or after Setup; nil clears it.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.mu.Lock()
	m.context = p
	m.mu.Unlock()
}

func (m *SlogManager) contextAttrs() []slog.Attr {
	m.mu.Lock()
	p := m.context
	m.mu.Unlock()
	if p == nil {
		return nil
	}
	return p()
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system with console, file and optional
// GELF and OTel output. Empty gelfAddr disables GELF; nil provider
// disables OTel.
func (m *SlogManager) Setup(file io.Writer, level, gelfAddr string, provider *sdklog.LoggerProvider) error {
	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	// Build list of handlers
	var handlers []slog.Handler

	// Console handler
	handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))

	// File handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	}

	// GELF handler shipping records to graylog
	if gelfAddr != "" {
		gelfWriter, err := gelf.NewWriter(gelfAddr)
		if err != nil {
			return fmt.Errorf("creating gelf writer for %s: %w", gelfAddr, err)
		}
		handlers = append(handlers, slog.NewTextHandler(gelfWriter, handlerOpts))
	}

	// OTel handler (if provider is available)
	if provider != nil {
		otelHandler := otelslog.NewHandler("dcs-connect", otelslog.WithLoggerProvider(provider))
		handlers = append(handlers, otelHandler)
	}

	// Combine all handlers and inject the dynamic connection context
	root := NewContextHandler(NewMultiHandler(handlers...), m.contextAttrs)

	m.logger = slog.New(root)
	m.logger.Info("Logging initialized", "level", level)
	return nil
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
