package lspserver

import (
	"sync"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/language"
	"github.com/tsumiki/tsumiki-ls/internal/textdoc"
)

// Document represents an open text document tracked by the server.
type Document struct {
	// URI is the document URI (e.g., "file:///src/app.ts").
	URI protocol.DocumentURI

	// LanguageID is the language identifier sent by the client, or derived
	// from the file name when the client sent none.
	LanguageID string

	// Version is the document version as reported by the client.
	Version int32

	// Content is the current full text of the document.
	Content string
}

// ContentChange is one edit carried by textDocument/didChange. A nil Range
// means Text replaces the whole document.
type ContentChange struct {
	Range *protocol.Range `json:"range,omitempty"`
	Text  string          `json:"text"`
}

// didChangeParams mirrors protocol.DidChangeTextDocumentParams with an
// optional range per change; protocol.TextDocumentContentChangeEvent
// decodes a missing range as the zero range.
type didChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []ContentChange                          `json:"contentChanges"`
}

// DocumentStore manages open documents in the server.
// It is safe for concurrent access.
type DocumentStore struct {
	mu     sync.RWMutex
	docs   map[protocol.DocumentURI]*Document
	logger *logrus.Entry
}

// NewDocumentStore creates a new empty document store.
func NewDocumentStore(logger *logrus.Entry) *DocumentStore {
	return &DocumentStore{
		docs:   make(map[protocol.DocumentURI]*Document),
		logger: logger,
	}
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri protocol.DocumentURI, languageID string, version int32, content string) {
	if languageID == "" {
		languageID = language.IDFromURI(string(uri))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    version,
		Content:    content,
	}
}

// Change applies content changes in order. A change without a range
// replaces the whole text. Returns false if the document is not open.
func (s *DocumentStore) Change(uri protocol.DocumentURI, version int32, changes []ContentChange) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false
	}
	if version < doc.Version {
		s.logger.WithFields(logrus.Fields{
			"uri":      uri,
			"version":  version,
			"previous": doc.Version,
		}).Warn("document version went backwards")
	}
	for _, change := range changes {
		if change.Range == nil {
			doc.Content = change.Text
			continue
		}
		doc.Content = textdoc.Apply(doc.Content, *change.Range, change.Text)
	}
	doc.Version = version
	return true
}

// Save replaces the content of an open document with the text carried by
// didSave. Returns false if the document is not open.
func (s *DocumentStore) Save(uri protocol.DocumentURI, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return false
	}
	doc.Content = content
	return true
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri protocol.DocumentURI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}

// Get returns a snapshot of the document, or nil if it is not open.
func (s *DocumentStore) Get(uri protocol.DocumentURI) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return nil
	}
	snapshot := *doc
	return &snapshot
}

// Len returns the number of open documents.
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
