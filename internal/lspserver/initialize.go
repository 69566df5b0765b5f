package lspserver

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"

	"github.com/tsumiki/tsumiki-ls/internal/version"
)

// completionTriggerCharacters are the punctuation characters that open the
// completion list.
var completionTriggerCharacters = []string{
	".", ":", `"`, "'", "`", "/", `\`, "@", "#", "$",
	"%", "&", "*", "+", "-", "=", "|", "~", "!", "?",
	"<", ">", "(", ")", "[", "]", "{", "}", ";", ",",
}

// clientCapabilities is what the server remembers of the client's
// declaration. It is written once by initialize.
type clientCapabilities struct {
	configuration                bool
	workspaceFolders             bool
	diagnosticRelatedInformation bool
}

func newClientCapabilities(c protocol.ClientCapabilities) clientCapabilities {
	var caps clientCapabilities
	if ws := c.Workspace; ws != nil {
		caps.configuration = ws.Configuration
		caps.workspaceFolders = ws.WorkspaceFolders
	}
	if td := c.TextDocument; td != nil && td.PublishDiagnostics != nil {
		caps.diagnosticRelatedInformation = td.PublishDiagnostics.RelatedInformation
	}
	return caps
}

// serverCapabilities builds the descriptor returned from initialize.
func serverCapabilities(caps clientCapabilities) protocol.ServerCapabilities {
	sc := protocol.ServerCapabilities{
		TextDocumentSync: protocol.TextDocumentSyncKindIncremental,
		CompletionProvider: &protocol.CompletionOptions{
			ResolveProvider:   true,
			TriggerCharacters: completionTriggerCharacters,
		},
		HoverProvider:           true,
		DefinitionProvider:      true,
		ReferencesProvider:      true,
		DocumentSymbolProvider:  true,
		WorkspaceSymbolProvider: true,
		CodeActionProvider: &protocol.CodeActionOptions{
			CodeActionKinds: []protocol.CodeActionKind{
				protocol.QuickFix,
				protocol.Refactor,
				protocol.Source,
			},
		},
		DocumentFormattingProvider: true,
		RenameProvider:             true,
	}
	if caps.workspaceFolders {
		sc.Workspace = &protocol.ServerCapabilitiesWorkspace{
			WorkspaceFolders: &protocol.ServerCapabilitiesWorkspaceFolders{
				Supported:           true,
				ChangeNotifications: true,
			},
		}
	}
	return sc
}

// handleInitialize records the client capabilities and responds with the
// server capabilities.
func (s *Server) handleInitialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.caps = newClientCapabilities(params.Capabilities)
	s.lifecycle.set(stateInitialized)

	s.logger.WithFields(logrus.Fields{
		"client":           clientInfoString(params.ClientInfo),
		"configuration":    s.caps.configuration,
		"workspaceFolders": s.caps.workspaceFolders,
	}).Info("initialize")

	return &protocol.InitializeResult{
		Capabilities: serverCapabilities(s.caps),
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: version.RawVersion(),
		},
	}, nil
}

// handleInitialized registers for configuration changes and enables the
// workspace folder listener, depending on what the client declared.
func (s *Server) handleInitialized(ctx context.Context, _ *protocol.InitializedParams) error {
	s.lifecycle.set(stateRunning)

	if s.caps.configuration {
		s.registerConfigurationChange(ctx)
	}
	if s.caps.workspaceFolders {
		s.folderListener.Store(true)
	}
	return nil
}

// registerConfigurationChange asks the client for configuration change
// notifications. The reply is awaited off the dispatch goroutine.
func (s *Server) registerConfigurationChange(ctx context.Context) {
	conn := s.conn.Load()
	if conn == nil {
		return
	}
	id := uuid.NewString()
	log := s.logger.WithField("registration", id)

	call, err := conn.DispatchCall(ctx, protocol.MethodClientRegisterCapability, &protocol.RegistrationParams{
		Registrations: []protocol.Registration{{
			ID:     id,
			Method: protocol.MethodWorkspaceDidChangeConfiguration,
		}},
	})
	if err != nil {
		log.WithError(err).Warn("register configuration change")
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RegistrationTimeout)
		defer cancel()
		// The stdio reader cannot be interrupted, so the pending call would
		// otherwise outlive the connection until the timeout.
		go func() {
			select {
			case <-s.done:
				cancel()
			case <-waitCtx.Done():
			}
		}()

		start := time.Now()
		var result any
		if err := call.Wait(waitCtx, &result); err != nil {
			log.WithError(err).Warn("client rejected or ignored capability registration")
			return
		}
		log.WithField("elapsed", time.Since(start)).Debug("configuration change registered")
	}()
}

func (s *Server) handleShutdown(context.Context, *struct{}) (any, error) {
	s.lifecycle.set(stateShuttingDown)
	s.logger.Info("shutdown requested")
	return nil, nil //nolint:nilnil // LSP: shutdown result is null
}

func (s *Server) handleExit(context.Context, *struct{}) error {
	clean := s.lifecycle.exit()
	s.logger.WithField("clean", clean).Info("exit")
	s.stop()
	return nil
}

func (s *Server) handleSetTrace(_ context.Context, params *protocol.SetTraceParams) error {
	s.logger.WithField("value", params.Value).Debug("trace level changed")
	return nil
}

func (s *Server) handleDidChangeConfiguration(context.Context, *protocol.DidChangeConfigurationParams) error {
	if s.caps.configuration {
		s.logger.Info("configuration changed")
	}
	return nil
}

func (s *Server) handleDidChangeWorkspaceFolders(_ context.Context, params *protocol.DidChangeWorkspaceFoldersParams) error {
	if !s.folderListener.Load() {
		return nil
	}
	s.logger.WithFields(logrus.Fields{
		"added":   len(params.Event.Added),
		"removed": len(params.Event.Removed),
	}).Info("workspace folders changed")
	return nil
}
