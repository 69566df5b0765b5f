package lspserver

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/features"
)

func (s *Server) handleCompletion(_ context.Context, params *protocol.CompletionParams) ([]protocol.CompletionItem, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []protocol.CompletionItem{}, nil
	}
	return features.Completion(doc.URI), nil
}

func (s *Server) handleCompletionResolve(_ context.Context, item *protocol.CompletionItem) (protocol.CompletionItem, error) {
	return features.Resolve(*item), nil
}

func (s *Server) handleDefinition(_ context.Context, params *protocol.DefinitionParams) (*protocol.Location, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil //nolint:nilnil // LSP: null result for unknown documents
	}
	return features.Definition(doc.URI, doc.Content, params.Position), nil
}

func (s *Server) handleReferences(_ context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []protocol.Location{}, nil
	}
	return features.References(doc.URI, doc.Content, params.Position), nil
}

func (s *Server) handleHover(_ context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil //nolint:nilnil // LSP: null result for unknown documents
	}
	return features.Hover(doc.URI, doc.Content, params.Position), nil
}

// handleCodeAction offers the import quick fix for any open document.
func (s *Server) handleCodeAction(_ context.Context, params *protocol.CodeActionParams) ([]protocol.CodeAction, error) {
	if s.documents.Get(params.TextDocument.URI) == nil {
		return []protocol.CodeAction{}, nil
	}
	return features.CodeActions(params.TextDocument.URI), nil
}

// handleFormatting trims every line of the document in one edit.
func (s *Server) handleFormatting(_ context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []protocol.TextEdit{}, nil
	}
	return features.Format(doc.Content), nil
}

func (s *Server) handleRename(_ context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil //nolint:nilnil // LSP: null result for unknown documents
	}
	return features.Rename(doc.URI, doc.Content, params.Position, params.NewName), nil
}

func (s *Server) handleDocumentSymbol(_ context.Context, params *protocol.DocumentSymbolParams) ([]protocol.SymbolInformation, error) {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return []protocol.SymbolInformation{}, nil
	}
	return features.DocumentSymbols(doc.URI, doc.Content), nil
}

func (s *Server) handleWorkspaceSymbol(_ context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	return features.WorkspaceSymbols(params.Query), nil
}
