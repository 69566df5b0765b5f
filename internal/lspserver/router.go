package lspserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
)

// route is the dispatch entry for one method.
type route struct {
	method       string
	notification bool

	// decode returns a pointer to the typed parameters.
	decode func(raw *json.RawMessage) (any, error)
	call   func(ctx context.Context, s *Server, params any) (any, error)
	// neutral is the result sent when the handler fails. params may be nil
	// if decoding never happened.
	neutral func(params any) (any, error)
}

func decodeParams[P any](raw *json.RawMessage) (any, error) {
	p := new(P)
	if raw == nil || string(*raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(*raw, p); err != nil {
		return nil, err
	}
	return p, nil
}

// request registers a request handler whose failures are answered with
// neutral.
func request[P, R any](method string, neutral func(*P) R, h func(*Server, context.Context, *P) (R, error)) route {
	return route{
		method: method,
		decode: decodeParams[P],
		call: func(ctx context.Context, s *Server, params any) (any, error) {
			return h(s, ctx, params.(*P))
		},
		neutral: func(params any) (any, error) {
			p, _ := params.(*P)
			if p == nil {
				p = new(P)
			}
			return neutral(p), nil
		},
	}
}

// notification registers a notification handler.
func notification[P any](method string, h func(*Server, context.Context, *P) error) route {
	return route{
		method:       method,
		notification: true,
		decode:       decodeParams[P],
		call: func(ctx context.Context, s *Server, params any) (any, error) {
			return nil, h(s, ctx, params.(*P))
		},
		neutral: func(any) (any, error) { return nil, nil },
	}
}

// ignoreParams accepts any params, including non-object ones, for methods
// whose params carry no data.
func ignoreParams[P any](*json.RawMessage) (any, error) { return new(P), nil }

func withDecode(r route, decode func(*json.RawMessage) (any, error)) route {
	r.decode = decode
	return r
}

func emptyList[P, T any](*P) []T { return []T{} }

func null[P, R any](*P) R {
	var zero R
	return zero
}

// routeTable maps method names to routes.
type routeTable map[string]route

func newRouteTable(routes ...route) routeTable {
	t := make(routeTable, len(routes))
	for _, r := range routes {
		if _, dup := t[r.method]; dup {
			panic(fmt.Sprintf("lspserver: duplicate route for %q", r.method))
		}
		t[r.method] = r
	}
	return t
}

// defaultRoutes is the method surface of the server.
func defaultRoutes() routeTable {
	return newRouteTable(
		// Lifecycle
		route{
			method: protocol.MethodInitialize,
			decode: decodeParams[protocol.InitializeParams],
			call: func(ctx context.Context, s *Server, params any) (any, error) {
				return s.handleInitialize(ctx, params.(*protocol.InitializeParams))
			},
			neutral: func(any) (any, error) {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: "initialize failed"}
			},
		},
		withDecode(notification(protocol.MethodInitialized, (*Server).handleInitialized),
			ignoreParams[protocol.InitializedParams]),
		withDecode(request(protocol.MethodShutdown, null[struct{}, any], (*Server).handleShutdown),
			ignoreParams[struct{}]),
		withDecode(notification(protocol.MethodExit, (*Server).handleExit),
			ignoreParams[struct{}]),
		notification(protocol.MethodSetTrace, (*Server).handleSetTrace),

		// Document sync
		notification(protocol.MethodTextDocumentDidOpen, (*Server).handleDidOpen),
		notification(protocol.MethodTextDocumentDidChange, (*Server).handleDidChange),
		notification(protocol.MethodTextDocumentDidSave, (*Server).handleDidSave),
		notification(protocol.MethodTextDocumentDidClose, (*Server).handleDidClose),

		// Workspace
		notification(protocol.MethodWorkspaceDidChangeConfiguration, (*Server).handleDidChangeConfiguration),
		notification(protocol.MethodWorkspaceDidChangeWorkspaceFolders, (*Server).handleDidChangeWorkspaceFolders),

		// Language features
		request(protocol.MethodTextDocumentCompletion,
			emptyList[protocol.CompletionParams, protocol.CompletionItem], (*Server).handleCompletion),
		request(protocol.MethodCompletionItemResolve,
			func(item *protocol.CompletionItem) protocol.CompletionItem { return *item }, (*Server).handleCompletionResolve),
		request(protocol.MethodTextDocumentDefinition,
			null[protocol.DefinitionParams, *protocol.Location], (*Server).handleDefinition),
		request(protocol.MethodTextDocumentReferences,
			emptyList[protocol.ReferenceParams, protocol.Location], (*Server).handleReferences),
		request(protocol.MethodTextDocumentHover,
			null[protocol.HoverParams, *protocol.Hover], (*Server).handleHover),
		request(protocol.MethodTextDocumentCodeAction,
			emptyList[protocol.CodeActionParams, protocol.CodeAction], (*Server).handleCodeAction),
		request(protocol.MethodTextDocumentFormatting,
			emptyList[protocol.DocumentFormattingParams, protocol.TextEdit], (*Server).handleFormatting),
		request(protocol.MethodTextDocumentRename,
			null[protocol.RenameParams, *protocol.WorkspaceEdit], (*Server).handleRename),
		request(protocol.MethodTextDocumentDocumentSymbol,
			emptyList[protocol.DocumentSymbolParams, protocol.SymbolInformation], (*Server).handleDocumentSymbol),
		request(protocol.MethodWorkspaceSymbol,
			emptyList[protocol.WorkspaceSymbolParams, protocol.SymbolInformation], (*Server).handleWorkspaceSymbol),
	)
}
