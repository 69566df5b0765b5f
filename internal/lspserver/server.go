// Package lspserver implements the tsumiki-ls language server.
//
// The server answers heuristic, line based code intelligence queries for
// ECMAScript and Kotlin documents and pushes bracket balance diagnostics.
//
// Transport: JSON-RPC 2.0 via github.com/sourcegraph/jsonrpc2 over stdio,
// framed with LSP headers or one message per line. Messages are handled one
// at a time in arrival order.
package lspserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/config"
	"github.com/tsumiki/tsumiki-ls/internal/telemetry"
)

const serverName = "tsumiki-ls"

const defaultRegistrationTimeout = 10 * time.Second

// Options configure a Server.
type Options struct {
	// Logger defaults to the standard logrus logger.
	Logger *logrus.Logger
	// Framing is one of the config.Framing* modes; empty means auto.
	Framing string
	// IdleTimeout closes the connection after this long without a message.
	// Zero disables it.
	IdleTimeout time.Duration
	// Instruments records per-message telemetry; nil disables it.
	Instruments *telemetry.Instruments
	// RegistrationTimeout bounds the wait for client/registerCapability.
	RegistrationTimeout time.Duration
}

// Server is the tsumiki-ls language server. A Server serves a single
// connection.
type Server struct {
	opts      Options
	logger    *logrus.Entry
	routes    routeTable
	documents *DocumentStore
	lifecycle lifecycle
	caps      clientCapabilities
	inst      *telemetry.Instruments

	conn atomic.Pointer[jsonrpc2.Conn]

	folderListener atomic.Bool
	pending        sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
}

// New creates a server. It panics if the route table is inconsistent.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Framing == "" {
		opts.Framing = config.FramingAuto
	}
	if opts.RegistrationTimeout <= 0 {
		opts.RegistrationTimeout = defaultRegistrationTimeout
	}
	logger := opts.Logger.WithField("component", "lsp")
	return &Server{
		opts:      opts,
		logger:    logger,
		routes:    defaultRoutes(),
		documents: NewDocumentStore(logger),
		inst:      opts.Instruments,
		done:      make(chan struct{}),
	}
}

// RunStdio starts the server on stdin/stdout.
// It blocks until the connection is closed or the context is cancelled.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, stdioReadWriteCloser{})
}

// Run serves one connection on rwc until exit, end of stream, idle timeout
// or cancellation of ctx.
func (s *Server) Run(ctx context.Context, rwc io.ReadWriteCloser) error {
	codec := newFrameCodec(s.opts.Framing, s.logger)
	stream := jsonrpc2.NewBufferedStream(rwc, codec)

	var opts []jsonrpc2.ConnOpt
	if s.opts.Logger.IsLevelEnabled(logrus.TraceLevel) {
		opts = append(opts, jsonrpc2.LogMessages(traceLogger{s.logger}))
	}
	var idle *idleTimer
	if s.opts.IdleTimeout > 0 {
		idle = newIdleTimer(s.opts.IdleTimeout, func() {
			s.logger.WithField("timeout", s.opts.IdleTimeout).Info("idle timeout, closing connection")
			s.stop()
		})
		defer idle.stop()
		opts = append(opts, jsonrpc2.OnRecv(func(*jsonrpc2.Request, *jsonrpc2.Response) { idle.touch() }))
	}

	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle), opts...)
	s.conn.Store(conn)

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-conn.DisconnectNotify():
		s.logger.Debug("connection closed by peer")
	case <-s.done:
	}
	if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, jsonrpc2.ErrClosed) {
		s.logger.WithError(closeErr).Debug("close connection")
	}
	return err
}

// Wait blocks until background work started by handlers (capability
// registration) has finished.
func (s *Server) Wait() {
	s.pending.Wait()
}

// ExitCode is the process status after Run returns: 0 when shutdown was
// requested before exit, 1 otherwise.
func (s *Server) ExitCode() int {
	if s.lifecycle.cleanExit() {
		return 0
	}
	return 1
}

func (s *Server) stop() {
	s.doneOnce.Do(func() { close(s.done) })
}

// handle is the jsonrpc2 handler. It is invoked synchronously for every
// message in arrival order.
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	s.conn.Store(conn)

	ctx, msg := s.inst.StartMessage(ctx, req.Method, req.Notif)
	result, outcome, err := s.dispatch(ctx, req)
	msg.End(outcome)
	return result, err
}

func (s *Server) dispatch(ctx context.Context, req *jsonrpc2.Request) (result any, outcome string, err error) {
	log := s.logger.WithField("method", req.Method)

	if rejection := s.lifecycle.admit(req.Method, req.Notif); rejection != nil {
		if req.Notif {
			log.WithField("state", s.lifecycle.state()).Debug("dropping notification")
			return nil, telemetry.OutcomeRejected, nil
		}
		return nil, telemetry.OutcomeRejected, rejection
	}

	rt, ok := s.routes[req.Method]
	if !ok {
		if req.Notif {
			if !strings.HasPrefix(req.Method, "$/") {
				log.Debug("dropping unknown notification")
			}
			return nil, telemetry.OutcomeUnknown, nil
		}
		return nil, telemetry.OutcomeUnknown, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: "method not found: " + req.Method,
		}
	}

	params, err := rt.decode(req.Params)
	if err != nil {
		if req.Notif {
			log.WithError(err).Warn("dropping notification with invalid params")
			return nil, telemetry.OutcomeError, nil
		}
		return nil, telemetry.OutcomeError, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidParams,
			Message: fmt.Sprintf("invalid params: %v", err),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("handler panicked")
			result, err = rt.neutral(params)
			outcome = telemetry.OutcomePanic
		}
	}()

	result, err = rt.call(ctx, s, params)
	if err == nil {
		return result, telemetry.OutcomeOK, nil
	}
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return nil, telemetry.OutcomeError, rpcErr
	}
	log.WithError(err).Error("handler failed")
	result, err = rt.neutral(params)
	return result, telemetry.OutcomeError, err
}

// notify sends a notification to the client. Failures are logged.
func (s *Server) notify(ctx context.Context, method string, params any) {
	conn := s.conn.Load()
	if conn == nil {
		return
	}
	if err := conn.Notify(ctx, method, params); err != nil {
		s.logger.WithError(err).WithField("method", method).Warn("notification failed")
	}
}

// clientInfoString formats client info for logging.
func clientInfoString(info *protocol.ClientInfo) string {
	if info == nil {
		return "unknown"
	}
	if info.Version != "" {
		return info.Name + " " + info.Version
	}
	return info.Name
}

// traceLogger routes jsonrpc2 message logs to logrus at trace level.
type traceLogger struct{ entry *logrus.Entry }

func (l traceLogger) Printf(format string, v ...any) {
	l.entry.Tracef(strings.TrimRight(format, "\n"), v...)
}

type idleTimer struct {
	timeout time.Duration
	timer   *time.Timer
}

func newIdleTimer(timeout time.Duration, fire func()) *idleTimer {
	return &idleTimer{timeout: timeout, timer: time.AfterFunc(timeout, fire)}
}

func (t *idleTimer) touch() { t.timer.Reset(t.timeout) }
func (t *idleTimer) stop()  { t.timer.Stop() }

// stdioReadWriteCloser wraps stdin/stdout as an io.ReadWriteCloser for JSON-RPC.
type stdioReadWriteCloser struct{}

func (stdioReadWriteCloser) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdioReadWriteCloser) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdioReadWriteCloser) Close() error                { return nil }
