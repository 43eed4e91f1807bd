package protocol

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/steveyegge/govern/internal/logging"
	"go.uber.org/zap"
)

// Store owns the protocol source files beneath Root.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{root: dir, logger: logging.OrNop(logger)}
}

// Root returns the source directory.
func (s *Store) Root() string { return s.root }

// Discover returns every protocol source path beneath the root, sorted.
func (s *Store) Discover(ctx context.Context) ([]string, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		return nil, fmt.Errorf("protocol source directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("protocol source %s is not a directory", s.root)
	}

	var paths []string
	err = filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), SourceSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", s.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load discovers, validates, and decodes every protocol, sorted by
// protocol_id. A schema violation in any file fails the whole load with a
// *SchemaError; read failures are returned wrapped as-is.
func (s *Store) Load(ctx context.Context) ([]*Protocol, error) {
	paths, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}

	protocols := make([]*Protocol, 0, len(paths))
	byID := make(map[string]string, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading protocol source: %w", err)
		}
		p, err := Decode(path, raw)
		if err != nil {
			return nil, err
		}
		if prev, dup := byID[p.ProtocolID]; dup {
			return nil, &SchemaError{
				File:   path,
				Reason: fmt.Sprintf("protocol_id '%s' is already defined in %s", p.ProtocolID, prev),
			}
		}
		byID[p.ProtocolID] = path

		narrative, err := readNarrative(path)
		if err != nil {
			return nil, err
		}
		p.Narrative = narrative
		protocols = append(protocols, p)
	}

	sort.Slice(protocols, func(i, j int) bool {
		return protocols[i].ProtocolID < protocols[j].ProtocolID
	})
	s.logger.Debug("loaded protocols", zap.String("root", s.root), zap.Int("count", len(protocols)))
	return protocols, nil
}

// Get loads the protocol with the given id.
func (s *Store) Get(ctx context.Context, protocolID string) (*Protocol, error) {
	path, raw, err := s.locate(ctx, protocolID)
	if err != nil {
		return nil, err
	}
	p, err := Decode(path, raw)
	if err != nil {
		return nil, err
	}
	if p.Narrative, err = readNarrative(path); err != nil {
		return nil, err
	}
	return p, nil
}

// Applicable returns the protocols whose applicability predicate matches c.
// Protocols without a predicate always apply.
func (s *Store) Applicable(ctx context.Context, c Context) ([]*Protocol, error) {
	all, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Protocol
	for _, p := range all {
		if p.Applicability.Matches(c) {
			out = append(out, p)
		}
	}
	return out, nil
}

func readNarrative(sourcePath string) (string, error) {
	mdPath := strings.TrimSuffix(sourcePath, SourceSuffix) + NarrativeSuffix
	data, err := os.ReadFile(mdPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading protocol narrative: %w", err)
	}
	return string(data), nil
}
