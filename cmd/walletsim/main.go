package main

import (
	"os"

	"github.com/wonny/walletsim/cmd/walletsim/commands"
)

// main is the entry point for the walletsim CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/walletsim [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
