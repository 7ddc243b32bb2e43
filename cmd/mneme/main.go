// mneme: session knowledge capture MCP server.
//
// Archives AI pair-programming transcripts into a searchable knowledge
// base over the MCP stdio transport.
//
// Usage:
//
//	mneme serve    # Start MCP server (stdio transport)
//	mneme update   # Update to the latest version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mnemeserver "github.com/hir4ta/mneme-sub001/internal/server"
	"github.com/hir4ta/mneme-sub001/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("mneme v%s\n", mnemeserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func run() error {
	s, cleanup, err := mnemeserver.New(os.Getenv("MNEME_DATA_DIR"))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check. Prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

// checkForUpdates runs a best-effort version check and prints a notice
// to stderr if a newer release exists. Network failures are silent.
func checkForUpdates() {
	result := updater.CheckVersion(mnemeserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  Update available: v%s -> v%s\n"+
				"  Run: mneme update\n"+
				"  Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest release.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "Checking for updates...\n")

	result := updater.CheckVersion(mnemeserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "New version available: v%s -> v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "Downloading...\n")

	if err := updater.SelfUpdate(mnemeserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\nYou can download manually from:\n%s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Updated to v%s. Restart mneme to use the new version.\n", result.LatestVersion)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `mneme v%s — Session Knowledge Capture MCP Server

Usage:
  mneme serve    Start the MCP server (stdio transport)
  mneme update   Update to the latest version

Environment:
  MNEME_DATA_DIR   Data directory (default: ~/.mneme)

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "mneme": {
        "command": "mneme",
        "args": ["serve"]
      }
    }
  }
`, mnemeserver.Version)
}
