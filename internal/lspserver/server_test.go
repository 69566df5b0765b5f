package lspserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/google/uuid"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/telemetry"
)

const waitTimeout = 5 * time.Second

// testClient drives a Server over an in-memory pipe with a header framed
// jsonrpc2 client connection.
type testClient struct {
	conn          *jsonrpc2.Conn
	server        *Server
	diagnostics   chan protocol.PublishDiagnosticsParams
	registrations chan protocol.RegistrationParams
	done          chan error
}

func startServer(t *testing.T, opts Options) *testClient {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger, _ = logrustest.NewNullLogger()
	}

	client, server, closeAll := connPair()

	tc := &testClient{
		server:        New(opts),
		diagnostics:   make(chan protocol.PublishDiagnosticsParams, 32),
		registrations: make(chan protocol.RegistrationParams, 4),
		done:          make(chan error, 1),
	}
	go func() {
		tc.done <- tc.server.Run(context.Background(), server)
	}()

	stream := jsonrpc2.NewBufferedStream(client, jsonrpc2.VSCodeObjectCodec{})
	tc.conn = jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(tc.handle))

	t.Cleanup(func() {
		_ = tc.conn.Close()
		closeAll()
		select {
		case <-tc.done:
		case <-time.After(waitTimeout):
			t.Error("server did not stop")
		}
		tc.server.Wait()
	})
	return tc
}

func (tc *testClient) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case protocol.MethodTextDocumentPublishDiagnostics:
		var params protocol.PublishDiagnosticsParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		tc.diagnostics <- params
		return nil, nil
	case protocol.MethodClientRegisterCapability:
		var params protocol.RegistrationParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		tc.registrations <- params
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: req.Method}
}

func (tc *testClient) call(t *testing.T, method string, params, result any) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(t.Context(), waitTimeout)
	defer cancel()
	return tc.conn.Call(ctx, method, params, result)
}

func (tc *testClient) notify(t *testing.T, method string, params any) {
	t.Helper()
	require.NoError(t, tc.conn.Notify(t.Context(), method, params))
}

func (tc *testClient) initialize(t *testing.T, caps protocol.ClientCapabilities) protocol.InitializeResult {
	t.Helper()
	var result protocol.InitializeResult
	require.NoError(t, tc.call(t, protocol.MethodInitialize, &protocol.InitializeParams{
		ClientInfo:   &protocol.ClientInfo{Name: "test-client", Version: "1.0.0"},
		Capabilities: caps,
	}, &result))
	tc.notify(t, protocol.MethodInitialized, &protocol.InitializedParams{})
	return result
}

func (tc *testClient) open(t *testing.T, uri protocol.DocumentURI, text string) {
	t.Helper()
	tc.notify(t, protocol.MethodTextDocumentDidOpen, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "typescript", Version: 1, Text: text},
	})
}

func (tc *testClient) nextDiagnostics(t *testing.T) protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case d := <-tc.diagnostics:
		return d
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for diagnostics")
		return protocol.PublishDiagnosticsParams{}
	}
}

func (tc *testClient) waitStopped(t *testing.T) {
	t.Helper()
	select {
	case err := <-tc.done:
		tc.done <- err
	case <-time.After(waitTimeout):
		t.Fatal("server did not stop")
	}
}

func rpcCode(t *testing.T, err error) int64 {
	t.Helper()
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr), "expected a JSON-RPC error, got %v", err)
	return rpcErr.Code
}

func pos(line, char uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

const testURI = protocol.DocumentURI("file:///work/src/app.ts")

func TestInitializeHandshake(t *testing.T) {
	tc := startServer(t, Options{})

	result := tc.initialize(t, protocol.ClientCapabilities{})

	require.NotNil(t, result.ServerInfo)
	assert.Equal(t, serverName, result.ServerInfo.Name)
	assert.NotEmpty(t, result.ServerInfo.Version)
	assert.Equal(t, float64(protocol.TextDocumentSyncKindIncremental), result.Capabilities.TextDocumentSync)
	require.NotNil(t, result.Capabilities.CompletionProvider)
	assert.True(t, result.Capabilities.CompletionProvider.ResolveProvider)
	assert.Len(t, result.Capabilities.CompletionProvider.TriggerCharacters, 30)
	assert.Nil(t, result.Capabilities.Workspace, "no workspace folder support declared")

	snaps.MatchStandaloneJSON(t, result.Capabilities)
}

func TestInitializeWorkspaceFolders(t *testing.T) {
	tc := startServer(t, Options{})

	result := tc.initialize(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{WorkspaceFolders: true},
	})

	require.NotNil(t, result.Capabilities.Workspace)
	require.NotNil(t, result.Capabilities.Workspace.WorkspaceFolders)
	assert.True(t, result.Capabilities.Workspace.WorkspaceFolders.Supported)
	assert.Equal(t, true, result.Capabilities.Workspace.WorkspaceFolders.ChangeNotifications)

	tc.notify(t, protocol.MethodWorkspaceDidChangeWorkspaceFolders, &protocol.DidChangeWorkspaceFoldersParams{
		Event: protocol.WorkspaceFoldersChangeEvent{Added: []protocol.WorkspaceFolder{{URI: "file:///w", Name: "w"}}},
	})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))
	assert.True(t, tc.server.folderListener.Load())
}

func TestWorkspaceNotifications(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	tc := startServer(t, Options{Logger: logger})

	tc.initialize(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})
	tc.notify(t, protocol.MethodSetTrace, &protocol.SetTraceParams{Value: "verbose"})
	tc.notify(t, protocol.MethodWorkspaceDidChangeConfiguration, &protocol.DidChangeConfigurationParams{
		Settings: map[string]any{"tsumiki": map[string]any{}},
	})
	tc.notify(t, protocol.MethodWorkspaceDidChangeWorkspaceFolders, &protocol.DidChangeWorkspaceFoldersParams{})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "configuration changed")
	assert.NotContains(t, messages, "workspace folders changed", "listener is off without folder support")
}

func TestSecondInitializeRejected(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	var result protocol.InitializeResult
	err := tc.call(t, protocol.MethodInitialize, &protocol.InitializeParams{
		Capabilities: protocol.ClientCapabilities{
			Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true, WorkspaceFolders: true},
		},
	}, &result)
	require.Error(t, err)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcCode(t, err))
	assert.Equal(t, clientCapabilities{}, tc.server.caps, "record is not modified")
}

func TestRequestsBeforeInitialize(t *testing.T) {
	tc := startServer(t, Options{})

	var hover *protocol.Hover
	err := tc.call(t, protocol.MethodTextDocumentHover, &protocol.HoverParams{TextDocumentPositionParams: pos(0, 0)}, &hover)
	require.Error(t, err)
	assert.Equal(t, codeServerNotInitialized, rpcCode(t, err))

	// Dropped: the document is never stored.
	tc.open(t, testURI, "foo(")
	tc.initialize(t, protocol.ClientCapabilities{})

	var raw json.RawMessage
	require.NoError(t, tc.call(t, protocol.MethodTextDocumentHover, &protocol.HoverParams{TextDocumentPositionParams: pos(0, 0)}, &raw))
	assert.JSONEq(t, "null", string(raw))
	assert.Empty(t, tc.diagnostics)
}

func TestShutdownThenExit(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	var raw json.RawMessage
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, &raw))
	assert.JSONEq(t, "null", string(raw))

	err := tc.call(t, protocol.MethodTextDocumentCompletion, &protocol.CompletionParams{TextDocumentPositionParams: pos(0, 0)}, &raw)
	require.Error(t, err)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidRequest), rpcCode(t, err))

	tc.notify(t, protocol.MethodExit, nil)
	tc.waitStopped(t)
	assert.Equal(t, 0, tc.server.ExitCode())
}

func TestExitWithoutShutdown(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	tc.notify(t, protocol.MethodExit, nil)
	tc.waitStopped(t)
	assert.Equal(t, 1, tc.server.ExitCode())
}

func TestExitIgnoresParams(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, json.RawMessage(`[]`), nil))

	tc.notify(t, protocol.MethodExit, json.RawMessage(`[]`))
	tc.waitStopped(t)
	assert.Equal(t, 0, tc.server.ExitCode())
}

func TestEndOfStreamIsNotCleanExit(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))

	require.NoError(t, tc.conn.Close())
	tc.waitStopped(t)
	assert.Equal(t, 1, tc.server.ExitCode())
}

func TestUnknownMethods(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	err := tc.call(t, "textDocument/semanticTokens/full", map[string]any{}, nil)
	require.Error(t, err)
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcCode(t, err))

	tc.notify(t, "$/cancelRequest", map[string]any{"id": 1})
	tc.notify(t, "custom/notification", nil)

	var raw json.RawMessage
	require.NoError(t, tc.call(t, protocol.MethodWorkspaceSymbol, &protocol.WorkspaceSymbolParams{Query: "x"}, &raw))
	assert.JSONEq(t, "[]", string(raw))
}

func TestInvalidParams(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	err := tc.call(t, protocol.MethodTextDocumentHover, json.RawMessage(`"oops"`), nil)
	require.Error(t, err)
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcCode(t, err))

	// A notification with bad params is dropped and the session continues.
	tc.notify(t, protocol.MethodTextDocumentDidOpen, json.RawMessage(`{"textDocument":"nope"}`))
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))
}

func TestDiagnosticsLifecycle(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	tc.open(t, testURI, "foo(")
	diag := tc.nextDiagnostics(t)
	assert.Equal(t, testURI, diag.URI)
	require.Len(t, diag.Diagnostics, 1)
	assert.Equal(t, protocol.DiagnosticSeverityWarning, diag.Diagnostics[0].Severity)
	assert.Equal(t, "Unmatched brackets", diag.Diagnostics[0].Message)

	// Full replacement fixes the line.
	tc.notify(t, protocol.MethodTextDocumentDidChange, &didChangeParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI}, Version: 2},
		ContentChanges: []ContentChange{{Text: "foo()"}},
	})
	assert.Empty(t, tc.nextDiagnostics(t).Diagnostics, "empty publish replaces the previous set")

	// Incremental insert breaks it again on a new line.
	tc.notify(t, protocol.MethodTextDocumentDidChange, &didChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: testURI}, Version: 3},
		ContentChanges: []ContentChange{{
			Range: &protocol.Range{Start: protocol.Position{Line: 0, Character: 5}, End: protocol.Position{Line: 0, Character: 5}},
			Text:  "\nbar[",
		}},
	})
	diag = tc.nextDiagnostics(t)
	require.Len(t, diag.Diagnostics, 1)
	assert.Equal(t, uint32(1), diag.Diagnostics[0].Range.Start.Line)
	assert.Equal(t, "foo()\nbar[", tc.server.documents.Get(testURI).Content)
	assert.Equal(t, int32(3), tc.server.documents.Get(testURI).Version)

	tc.notify(t, protocol.MethodTextDocumentDidClose, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	diag = tc.nextDiagnostics(t)
	assert.Equal(t, testURI, diag.URI)
	assert.NotNil(t, diag.Diagnostics)
	assert.Empty(t, diag.Diagnostics, "expected empty diagnostics after close")
}

func TestDidSave(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	tc.open(t, testURI, "ok")
	assert.Empty(t, tc.nextDiagnostics(t).Diagnostics)

	tc.notify(t, protocol.MethodTextDocumentDidSave, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
	})
	tc.notify(t, protocol.MethodTextDocumentDidSave, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Text:         "x{",
	})
	assert.Len(t, tc.nextDiagnostics(t).Diagnostics, 1, "save without text publishes nothing")
	assert.Equal(t, "x{", tc.server.documents.Get(testURI).Content)
}

func TestLanguageFeatures(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	tc.open(t, testURI, "function greet(name) {\n  return name;\n}\ngreet(1)")
	tc.nextDiagnostics(t)

	t.Run("completion", func(t *testing.T) {
		var items []protocol.CompletionItem
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentCompletion, &protocol.CompletionParams{TextDocumentPositionParams: pos(0, 0)}, &items))
		assert.Len(t, items, 19)
	})

	t.Run("resolve", func(t *testing.T) {
		var item protocol.CompletionItem
		require.NoError(t, tc.call(t, protocol.MethodCompletionItemResolve, &protocol.CompletionItem{
			Label: "fun", Data: 3,
		}, &item))
		assert.Equal(t, "Kotlin details", item.Detail)
		assert.Equal(t, "Kotlin documentation", item.Documentation)

		var untagged protocol.CompletionItem
		require.NoError(t, tc.call(t, protocol.MethodCompletionItemResolve, &protocol.CompletionItem{Label: "x"}, &untagged))
		assert.Equal(t, protocol.CompletionItem{Label: "x"}, untagged)
	})

	t.Run("resolve keeps markup documentation", func(t *testing.T) {
		var item protocol.CompletionItem
		require.NoError(t, tc.call(t, protocol.MethodCompletionItemResolve,
			json.RawMessage(`{"label":"x","documentation":{"kind":"markdown","value":"x"}}`), &item))
		assert.Equal(t, "x", item.Label)
		assert.Empty(t, item.Detail)
		assert.Equal(t, map[string]any{"kind": "markdown", "value": "x"}, item.Documentation)
	})

	t.Run("definition", func(t *testing.T) {
		var loc *protocol.Location
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentDefinition, &protocol.DefinitionParams{TextDocumentPositionParams: pos(0, 10)}, &loc))
		require.NotNil(t, loc)
		assert.Equal(t, uint32(22), loc.Range.End.Character)
	})

	t.Run("references", func(t *testing.T) {
		var locs []protocol.Location
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentReferences, &protocol.ReferenceParams{TextDocumentPositionParams: pos(3, 0)}, &locs))
		require.Len(t, locs, 2)
		assert.Equal(t, uint32(9), locs[0].Range.Start.Character)
		assert.Equal(t, uint32(3), locs[1].Range.Start.Line)
	})

	t.Run("hover", func(t *testing.T) {
		var hover protocol.Hover
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentHover, &protocol.HoverParams{TextDocumentPositionParams: pos(1, 0)}, &hover))
		assert.Equal(t, "**return name;**\n\nFile: app.ts\nLine: 2", hover.Contents.Value)
	})

	t.Run("code action", func(t *testing.T) {
		var actions []protocol.CodeAction
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentCodeAction, &protocol.CodeActionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		}, &actions))
		require.Len(t, actions, 1)
		assert.Equal(t, protocol.QuickFix, actions[0].Kind)
	})

	t.Run("code action with foreign diagnostics", func(t *testing.T) {
		params := json.RawMessage(`{
			"textDocument": {"uri": "` + string(testURI) + `"},
			"range": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 1}},
			"context": {"diagnostics": [
				{"range": {"start": {"line": 0, "character": 0}, "end": {"line": 0, "character": 1}},
				 "code": 2304, "source": "ts", "message": "Cannot find name 'x'."}
			]}
		}`)
		var actions []protocol.CodeAction
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentCodeAction, params, &actions))
		require.Len(t, actions, 1)
		assert.Equal(t, "Add missing import", actions[0].Title)
	})

	t.Run("formatting", func(t *testing.T) {
		var edits []protocol.TextEdit
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentFormatting, &protocol.DocumentFormattingParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		}, &edits))
		require.Len(t, edits, 1)
		assert.Equal(t, "function greet(name) {\nreturn name;\n}\ngreet(1)", edits[0].NewText)
	})

	t.Run("rename", func(t *testing.T) {
		var edit protocol.WorkspaceEdit
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentRename, &protocol.RenameParams{
			TextDocumentPositionParams: pos(3, 0), NewName: "hello",
		}, &edit))
		assert.Len(t, edit.Changes[testURI], 2)
	})

	t.Run("document symbols", func(t *testing.T) {
		var raw json.RawMessage
		require.NoError(t, tc.call(t, protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		}, &raw))
		assert.JSONEq(t, "[]", string(raw))
	})
}

func TestNeutralResultsForUnknownDocuments(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})

	other := protocol.TextDocumentIdentifier{URI: "file:///never/opened.kt"}
	at := protocol.TextDocumentPositionParams{TextDocument: other}

	tests := []struct {
		method string
		params any
		want   string
	}{
		{protocol.MethodTextDocumentCompletion, &protocol.CompletionParams{TextDocumentPositionParams: at}, "[]"},
		{protocol.MethodTextDocumentDefinition, &protocol.DefinitionParams{TextDocumentPositionParams: at}, "null"},
		{protocol.MethodTextDocumentReferences, &protocol.ReferenceParams{TextDocumentPositionParams: at}, "[]"},
		{protocol.MethodTextDocumentHover, &protocol.HoverParams{TextDocumentPositionParams: at}, "null"},
		{protocol.MethodTextDocumentCodeAction, &protocol.CodeActionParams{TextDocument: other}, "[]"},
		{protocol.MethodTextDocumentFormatting, &protocol.DocumentFormattingParams{TextDocument: other}, "[]"},
		{protocol.MethodTextDocumentRename, &protocol.RenameParams{TextDocumentPositionParams: at, NewName: "x"}, "null"},
		{protocol.MethodTextDocumentDocumentSymbol, &protocol.DocumentSymbolParams{TextDocument: other}, "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var raw json.RawMessage
			require.NoError(t, tc.call(t, tt.method, tt.params, &raw))
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestRegisterCapability(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{
		Workspace: &protocol.WorkspaceClientCapabilities{Configuration: true},
	})

	select {
	case reg := <-tc.registrations:
		require.Len(t, reg.Registrations, 1)
		assert.Equal(t, protocol.MethodWorkspaceDidChangeConfiguration, reg.Registrations[0].Method)
		_, err := uuid.Parse(reg.Registrations[0].ID)
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("no registration request")
	}

	tc.notify(t, protocol.MethodWorkspaceDidChangeConfiguration, &protocol.DidChangeConfigurationParams{})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))
}

func TestNoRegistrationWithoutConfigurationSupport(t *testing.T) {
	tc := startServer(t, Options{})
	tc.initialize(t, protocol.ClientCapabilities{})
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))
	assert.Empty(t, tc.registrations)
}

func TestHandlerFailuresAnswerNeutral(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	tc := startServer(t, Options{Logger: logger})
	tc.server.routes["test/panic"] = request("test/panic", emptyList[struct{}, string],
		func(*Server, context.Context, *struct{}) ([]string, error) { panic("boom") })
	tc.server.routes["test/fail"] = request("test/fail", null[struct{}, *protocol.Hover],
		func(*Server, context.Context, *struct{}) (*protocol.Hover, error) { return nil, errors.New("nope") })
	tc.initialize(t, protocol.ClientCapabilities{})

	var raw json.RawMessage
	require.NoError(t, tc.call(t, "test/panic", nil, &raw))
	assert.JSONEq(t, "[]", string(raw))

	require.NoError(t, tc.call(t, "test/fail", nil, &raw))
	assert.JSONEq(t, "null", string(raw))

	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil), "session continues")

	var messages []string
	for _, e := range hook.AllEntries() {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages, "handler panicked")
	assert.Contains(t, messages, "handler failed")
}

func TestDuplicateRoutePanics(t *testing.T) {
	r := notification(protocol.MethodExit, (*Server).handleExit)
	assert.Panics(t, func() { newRouteTable(r, r) })
	assert.NotPanics(t, func() { defaultRoutes() })
}

func TestIdleTimeout(t *testing.T) {
	tc := startServer(t, Options{IdleTimeout: 100 * time.Millisecond})
	tc.initialize(t, protocol.ClientCapabilities{})

	tc.waitStopped(t)
	assert.Equal(t, 1, tc.server.ExitCode())
}

func TestTelemetry(t *testing.T) {
	ctx := context.Background()
	provider, err := telemetry.Setup(ctx, telemetry.Config{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	tc := startServer(t, Options{Instruments: provider.Instruments()})
	tc.initialize(t, protocol.ClientCapabilities{})
	tc.open(t, testURI, "a(")
	tc.nextDiagnostics(t)
	require.NoError(t, tc.call(t, protocol.MethodShutdown, nil, nil))

	rm, err := provider.Collect(ctx)
	require.NoError(t, err)
	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	assert.Subset(t, names, []string{"lsp.messages", "lsp.message.duration", "lsp.diagnostics.published"})
}
