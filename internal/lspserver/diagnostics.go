package lspserver

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/diagnostics"
)

// publishDiagnostics computes diagnostics for a document and publishes them
// to the client. Each publication replaces the previous set for the URI.
func (s *Server) publishDiagnostics(ctx context.Context, doc *Document) {
	diags := diagnostics.Compute(doc.Content)
	s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         doc.URI,
		Diagnostics: diags,
	})
	s.inst.DiagnosticsPublished(ctx, len(diags))
	s.logger.WithFields(logrus.Fields{"uri": doc.URI, "version": doc.Version, "count": len(diags)}).Debug("published diagnostics")
}

// clearDiagnostics sends an empty diagnostics array to clear issues for a URI.
func (s *Server) clearDiagnostics(ctx context.Context, uri protocol.DocumentURI) {
	s.notify(ctx, protocol.MethodTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}

// handleDidOpen handles textDocument/didOpen by storing and checking the document.
func (s *Server) handleDidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	item := params.TextDocument
	s.documents.Open(item.URI, string(item.LanguageID), item.Version, item.Text)

	if doc := s.documents.Get(item.URI); doc != nil {
		s.publishDiagnostics(ctx, doc)
	}
	return nil
}

// handleDidChange applies the changes and re-checks the document.
func (s *Server) handleDidChange(ctx context.Context, params *didChangeParams) error {
	uri := params.TextDocument.URI
	if !s.documents.Change(uri, params.TextDocument.Version, params.ContentChanges) {
		s.logger.WithField("uri", uri).Debug("change for a document that is not open")
		return nil
	}
	if doc := s.documents.Get(uri); doc != nil {
		s.publishDiagnostics(ctx, doc)
	}
	return nil
}

// handleDidSave re-checks the document when the client sends its text.
func (s *Server) handleDidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text == "" {
		return nil
	}
	uri := params.TextDocument.URI
	if !s.documents.Save(uri, params.Text) {
		return nil
	}
	if doc := s.documents.Get(uri); doc != nil {
		s.publishDiagnostics(ctx, doc)
	}
	return nil
}

// handleDidClose removes the document and clears its diagnostics.
func (s *Server) handleDidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI
	s.documents.Close(uri)
	s.clearDiagnostics(ctx, uri)
	return nil
}
