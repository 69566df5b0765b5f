package lspserver

import (
	"sync/atomic"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

// codeServerNotInitialized is the LSP error code for requests that arrive
// before initialize.
const codeServerNotInitialized int64 = -32002

type lifecycleState int32

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateRunning
	stateShuttingDown
	stateExited
)

func (s lifecycleState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateInitialized:
		return "initialized"
	case stateRunning:
		return "running"
	case stateShuttingDown:
		return "shutting down"
	case stateExited:
		return "exited"
	default:
		return "unknown"
	}
}

// lifecycle tracks the session state. Transitions happen on the dispatch
// goroutine; reads may come from anywhere.
type lifecycle struct {
	current       atomic.Int32
	shutdownFirst atomic.Bool
}

func (l *lifecycle) state() lifecycleState {
	return lifecycleState(l.current.Load())
}

func (l *lifecycle) set(s lifecycleState) {
	l.current.Store(int32(s))
}

// admit decides whether a message may be dispatched in the current state.
// A non-nil error is the reply for a rejected request; rejected
// notifications are dropped by the caller.
func (l *lifecycle) admit(method string, notif bool) *jsonrpc2.Error {
	if method == protocol.MethodExit {
		return nil
	}
	switch l.state() {
	case stateUninitialized:
		if method == protocol.MethodInitialize && !notif {
			return nil
		}
		return &jsonrpc2.Error{Code: codeServerNotInitialized, Message: "server not initialized"}
	case stateInitialized, stateRunning:
		if method == protocol.MethodInitialize {
			return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server already initialized"}
		}
		return nil
	case stateShuttingDown:
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	default:
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server has exited"}
	}
}

// exit moves to the final state and reports whether shutdown came first.
func (l *lifecycle) exit() bool {
	clean := l.state() == stateShuttingDown
	l.shutdownFirst.Store(clean)
	l.set(stateExited)
	return clean
}

func (l *lifecycle) cleanExit() bool {
	return l.state() == stateExited && l.shutdownFirst.Load()
}
