// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root: it creates concrete implementations
// and injects them into the tools and resources that depend on them.
// No business logic lives here, only wiring.
package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/hir4ta/mneme-sub001/internal/config"
	"github.com/hir4ta/mneme-sub001/internal/docstore"
	"github.com/hir4ta/mneme-sub001/internal/index"
	"github.com/hir4ta/mneme-sub001/internal/knowtools"
	"github.com/hir4ta/mneme-sub001/internal/lifecycle"
	"github.com/hir4ta/mneme-sub001/internal/prompts"
	"github.com/hir4ta/mneme-sub001/internal/resources"
	"github.com/hir4ta/mneme-sub001/internal/search"
	"github.com/hir4ta/mneme-sub001/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// AliasFile is the optional alias dictionary inside the knowledge
// directory.
const AliasFile = "aliases.yaml"

// New creates and configures the MCP server with all tools and
// resources registered. dataDir overrides the configured data
// directory when non-empty. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the relational store and must
// be called on shutdown (typically via defer). It is always non-nil.
func New(dataDir string) (*server.MCPServer, func(), error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, noop, fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr; stdout carries the MCP stdio transport.
	log := config.NewLogger(cfg, os.Stderr)

	st, err := store.Open(cfg.DataDir, log.With().Str("component", "store").Logger())
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}

	docs := docstore.New(cfg.KnowledgeDir, log.With().Str("component", "docstore").Logger())
	idx := index.New(docs, log.With().Str("component", "index").Logger())
	lc := lifecycle.New(st, docs, log.With().Str("component", "lifecycle").Logger())

	aliases, err := search.LoadAliases(filepath.Join(cfg.KnowledgeDir, AliasFile))
	if err != nil {
		// A broken alias file degrades search, it must not block capture.
		log.Warn().Err(err).Msg("alias dictionary disabled")
		aliases = search.AliasDict{}
	}
	engine := search.New(st, docs, idx, aliases, cfg.MaxSearchResults, cfg.SearchTimeout,
		log.With().Str("component", "search").Logger())

	s := server.NewMCPServer(
		"mneme",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Capture and lifecycle tools ---

	saveTool := knowtools.NewSaveTool(lc)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	backupTool := knowtools.NewBackupTool(lc)
	s.AddTool(backupTool.Definition(), backupTool.Handle)

	commitTool := knowtools.NewCommitTool(lc)
	s.AddTool(commitTool.Definition(), commitTool.Handle)

	finalizeTool := knowtools.NewFinalizeTool(lc, &cfg)
	s.AddTool(finalizeTool.Definition(), finalizeTool.Handle)

	sweepTool := knowtools.NewSweepTool(lc, &cfg)
	s.AddTool(sweepTool.Definition(), sweepTool.Handle)

	// --- Retrieval tools ---

	searchTool := knowtools.NewSearchTool(engine)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	rebuildTool := knowtools.NewIndexRebuildTool(idx, &cfg)
	s.AddTool(rebuildTool.Definition(), rebuildTool.Handle)

	statusTool := knowtools.NewIndexStatusTool(idx)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	statsTool := knowtools.NewStatsTool(st, docs)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(st, docs, idx)
	s.AddResource(resourceHandler.RecentResource(), resourceHandler.HandleRecent)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	// --- Prompts ---

	wrapupPrompt := prompts.NewWrapupPrompt()
	s.AddPrompt(wrapupPrompt.Definition(), wrapupPrompt.Handle)

	recallPrompt := prompts.NewRecallPrompt()
	s.AddPrompt(recallPrompt.Definition(), recallPrompt.Handle)

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// host how to use mneme effectively.
func serverInstructions() string {
	return `You have access to mneme, a session knowledge capture MCP server.

mneme archives AI pair-programming transcripts into a searchable
knowledge base: full conversation turns, session documents, extracted
decisions, and approved patterns.

## Capture lifecycle

1. During a session, call transcript_save periodically with the session
   id and transcript path. Saves are incremental and idempotent — the
   server tracks a checkpoint per session and only ingests new lines.
2. If the host compacts the transcript (context compaction), call
   transcript_backup FIRST, then keep calling transcript_save as usual.
   The server reconciles the compacted log against the snapshot.
3. When the user decides a session is worth keeping, call
   session_commit. Committed sessions are never auto-deleted.
4. At session end, call session_finalize with a cleanup policy:
   - immediate: delete uncommitted sessions now (a session whose
     document has a summary is always kept)
   - grace: keep uncommitted sessions for the grace window, then let
     session_sweep remove them
   - never: keep everything

## Retrieval

- knowledge_search ranks sessions, decisions, approved patterns, and
  archived turns. Exact matches always outrank partial matches.
- The mneme://index/recent resource lists recently captured knowledge.
- Call index_rebuild after bulk document edits; index_status reports
  whether the index lags the documents.

## Housekeeping

- session_sweep removes uncommitted sessions past their grace window.
  Run it occasionally; sessions with summaries survive every sweep.
- knowledge_stats reports corpus size and pending compaction backups.`
}
