package main

import (
	"fmt"
	"os"

	"github.com/tsumiki/tsumiki-ls/cmd/tsumiki-ls/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tsumiki-ls:", err)
		os.Exit(1)
	}
}
