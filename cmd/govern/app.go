package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/compiler"
	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/protocol"
	"github.com/steveyegge/govern/internal/storage/sqlite"
)

// activityPaths are the flag overrides for the activity log.
type activityPaths struct {
	schemaPath string
	logPath    string
}

// openIndex opens the SQLite activity index, or returns nil when it is
// disabled. Failing to open it is logged, not fatal: the JSONL log stays
// authoritative.
func openIndex(ctx context.Context) *sqlite.Index {
	path := resolve(cfg.Activity.IndexPath)
	if path == "" {
		return nil
	}
	idx, err := sqlite.Open(ctx, path)
	if err != nil {
		logger.Warn("activity index unavailable", zap.String("path", path), zap.Error(err))
		return nil
	}
	return idx
}

// openActivity builds the activity log writer and its index. The returned
// cleanup closes the index.
func openActivity(ctx context.Context, p activityPaths) (*events.Writer, *sqlite.Index, func(), error) {
	idx := openIndex(ctx)
	cleanup := func() {
		if idx != nil {
			_ = idx.Close()
		}
	}

	wcfg := events.Config{
		SchemaPath: pick(p.schemaPath, cfg.Activity.SchemaPath),
		LogPath:    pick(p.logPath, cfg.Activity.LogPath),
		Logger:     logger,
	}
	if idx != nil {
		wcfg.Index = idx
	}
	w, err := events.NewWriter(wcfg)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("opening activity log: %w", err)
	}
	return w, idx, cleanup, nil
}

// logActivity writes rec, logging instead of failing when the write fails.
func logActivity(ctx context.Context, w *events.Writer, rec events.Record) {
	if w == nil {
		return
	}
	if _, err := w.Log(ctx, rec); err != nil {
		logger.Warn("failed to write activity log entry", zap.String("action", rec.ActionType), zap.Error(err))
	}
}

// protocolPaths are the flag overrides for the protocol store and compiler.
type protocolPaths struct {
	sourceDir    string
	outputFile   string
	safeFallback string
	templatePath string
}

func newStore(p protocolPaths) *protocol.Store {
	return protocol.NewStore(pick(p.sourceDir, cfg.Protocols.SourceDir), logger)
}

func newCompiler(store *protocol.Store, p protocolPaths) (*compiler.Compiler, error) {
	return compiler.New(store, compiler.Config{
		OutputFile:       pick(p.outputFile, cfg.Protocols.OutputFile),
		SafeFallbackPath: pick(p.safeFallback, cfg.Protocols.SafeFallbackPath),
		TemplatePath:     p.templatePath,
		Logger:           logger,
	})
}
