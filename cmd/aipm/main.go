package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/aipm/internal"
	"github.com/valter-silva-au/aipm/internal/cli"
	"github.com/valter-silva-au/aipm/internal/storage"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)

	dataDir, err := storage.EnsureDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a, err := app.NewApp(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing aipm: %v\n", err)
		os.Exit(1)
	}

	err = cli.Execute()
	_ = a.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
