package features

import "go.lsp.dev/protocol"

// DocumentSymbols is advertised but there is no symbol table: the result is
// always empty.
func DocumentSymbols(protocol.DocumentURI, string) []protocol.SymbolInformation {
	return []protocol.SymbolInformation{}
}

// WorkspaceSymbols is always empty; there is no cross-file index.
func WorkspaceSymbols(string) []protocol.SymbolInformation {
	return []protocol.SymbolInformation{}
}
