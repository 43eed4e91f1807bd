// Package compiler renders every protocol source into the single Markdown
// document agents read at runtime.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"text/template"

	"github.com/steveyegge/govern/internal/logging"
	"github.com/steveyegge/govern/internal/protocol"
	"github.com/steveyegge/govern/internal/storage"
	"go.uber.org/zap"
)

// Config configures a Compiler.
type Config struct {
	// OutputFile is the rendered document's path.
	OutputFile string
	// SafeFallbackPath is a checked-in, known-good document copied to
	// OutputFile when compilation fails for any reason other than a schema
	// violation.
	SafeFallbackPath string
	// TemplatePath optionally replaces the built-in document template.
	TemplatePath string
	Logger       *zap.Logger
}

// Result describes a finished compilation.
type Result struct {
	OutputFile string
	Protocols  int
	Bytes      int
	// UsedFallback is set when the safe document was written instead.
	UsedFallback bool
	// Cause is the failure that triggered the fallback.
	Cause error
}

// Compiler renders a protocol store into one document.
type Compiler struct {
	store    *protocol.Store
	cfg      Config
	template *template.Template
	logger   *zap.Logger
}

// New creates a compiler. It fails only when a custom template cannot be read
// or parsed.
func New(store *protocol.Store, cfg Config) (*Compiler, error) {
	if cfg.OutputFile == "" {
		return nil, fmt.Errorf("compiler: output file is required")
	}

	text := documentTemplate
	if cfg.TemplatePath != "" {
		data, err := os.ReadFile(cfg.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("reading template: %w", err)
		}
		text = string(data)
	}
	tmpl, err := newTemplate(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse protocol template: %w", err)
	}

	return &Compiler{
		store:    store,
		cfg:      cfg,
		template: tmpl,
		logger:   logging.OrNop(cfg.Logger),
	}, nil
}

// Render produces the document for protocols, which must already be sorted.
// A panic inside the template is reported as an error.
func (c *Compiler) Render(protocols []*protocol.Protocol) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("template panicked: %v", r)
		}
	}()

	var buf bytes.Buffer
	if err := c.template.Execute(&buf, protocols); err != nil {
		return nil, fmt.Errorf("failed to execute protocol template: %w", err)
	}
	return buf.Bytes(), nil
}

// Compile loads, renders, and writes the protocol document.
//
// Schema violations abort with a *protocol.SchemaError and leave the output
// untouched. Any other failure copies the safe fallback document to the output
// path; the returned Result then has UsedFallback set and a nil error. An
// error is returned only when the fallback copy itself fails.
func (c *Compiler) Compile(ctx context.Context) (*Result, error) {
	protocols, err := c.store.Load(ctx)
	if err != nil {
		var schemaErr *protocol.SchemaError
		if errors.As(err, &schemaErr) {
			c.logger.Error("protocol schema violation; compilation aborted",
				zap.String("file", schemaErr.File), zap.String("reason", schemaErr.Reason))
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		return c.fallback(fmt.Errorf("loading protocols: %w", err))
	}

	data, err := c.Render(protocols)
	if err != nil {
		return c.fallback(err)
	}

	if err := storage.WriteFileAtomic(c.cfg.OutputFile, data, 0644); err != nil {
		return c.fallback(err)
	}

	c.logger.Info("compiled protocols",
		zap.String("output", c.cfg.OutputFile),
		zap.Int("protocols", len(protocols)),
		zap.Int("bytes", len(data)))
	return &Result{
		OutputFile: c.cfg.OutputFile,
		Protocols:  len(protocols),
		Bytes:      len(data),
	}, nil
}

func (c *Compiler) fallback(cause error) (*Result, error) {
	c.logger.Warn("protocol compilation failed; writing safe fallback",
		zap.Error(cause), zap.String("fallback", c.cfg.SafeFallbackPath))

	if c.cfg.SafeFallbackPath == "" {
		return nil, fmt.Errorf("compilation failed and no safe fallback is configured: %w", cause)
	}
	safe, err := os.ReadFile(c.cfg.SafeFallbackPath)
	if err != nil {
		return nil, fmt.Errorf("compilation failed (%v); reading safe fallback: %w", cause, err)
	}
	if err := storage.WriteFileAtomic(c.cfg.OutputFile, safe, 0644); err != nil {
		return nil, fmt.Errorf("compilation failed (%v); writing safe fallback: %w", cause, err)
	}

	return &Result{
		OutputFile:   c.cfg.OutputFile,
		Bytes:        len(safe),
		UsedFallback: true,
		Cause:        cause,
	}, nil
}
