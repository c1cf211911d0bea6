package main

import (
	"os"

	"ar-reconciliation-service/cmd/arrecon/cmd"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Load a local .env if present; environment variables override it.
	_ = godotenv.Load()

	// Set version information
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.HandleCommandError(err))
	}
}
