package protocol

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/steveyegge/govern/internal/storage"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

// AddTool appends tool to the protocol's associated_tools. It reports false,
// without touching the file, when the tool is already present.
func (s *Store) AddTool(ctx context.Context, protocolID, tool string) (bool, error) {
	if tool == "" {
		return false, fmt.Errorf("add-tool: tool name is empty")
	}
	path, raw, err := s.locate(ctx, protocolID)
	if err != nil {
		return false, err
	}

	tools := gjson.GetBytes(raw, "associated_tools")
	var updated []byte
	switch {
	case !tools.Exists():
		updated, err = sjson.SetBytes(raw, "associated_tools", []string{tool})
	case !tools.IsArray():
		return false, &SchemaError{File: path, Reason: "'associated_tools' must be an array"}
	default:
		for _, t := range tools.Array() {
			if t.String() == tool {
				s.logger.Info("tool already associated with protocol",
					zap.String("protocol_id", protocolID), zap.String("tool", tool))
				return false, nil
			}
		}
		updated, err = sjson.SetBytes(raw, "associated_tools.-1", tool)
	}
	if err != nil {
		return false, fmt.Errorf("editing %s: %w", path, err)
	}

	if err := s.commit(path, updated); err != nil {
		return false, err
	}
	s.logger.Info("added tool to protocol",
		zap.String("protocol_id", protocolID), zap.String("tool", tool), zap.String("file", path))
	return true, nil
}

// UpdateRule replaces the description of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, protocolID, ruleID, description string) error {
	path, raw, err := s.locate(ctx, protocolID)
	if err != nil {
		return err
	}

	idx := -1
	for i, rule := range gjson.GetBytes(raw, "rules").Array() {
		if rule.Get("rule_id").String() == ruleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &ReferentialError{ProtocolID: protocolID, RuleID: ruleID}
	}

	updated, err := sjson.SetBytes(raw, "rules."+strconv.Itoa(idx)+".description", description)
	if err != nil {
		return fmt.Errorf("editing %s: %w", path, err)
	}
	if err := s.commit(path, updated); err != nil {
		return err
	}
	s.logger.Info("updated protocol rule",
		zap.String("protocol_id", protocolID), zap.String("rule_id", ruleID), zap.String("file", path))
	return nil
}

// locate finds the single source file declaring protocolID.
func (s *Store) locate(ctx context.Context, protocolID string) (string, []byte, error) {
	paths, err := s.Discover(ctx)
	if err != nil {
		return "", nil, err
	}

	var foundPath string
	var foundRaw []byte
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("reading protocol source: %w", err)
		}
		if gjson.GetBytes(raw, "protocol_id").String() != protocolID {
			continue
		}
		if foundPath != "" {
			return "", nil, &SchemaError{
				File:   path,
				Reason: fmt.Sprintf("protocol_id '%s' is already defined in %s", protocolID, foundPath),
			}
		}
		foundPath, foundRaw = path, raw
	}
	if foundPath == "" {
		return "", nil, &ReferentialError{ProtocolID: protocolID}
	}
	if _, err := Decode(foundPath, foundRaw); err != nil {
		return "", nil, err
	}
	return foundPath, foundRaw, nil
}

// commit re-validates the edited document and writes it in place.
func (s *Store) commit(path string, data []byte) error {
	if _, err := Decode(path, data); err != nil {
		return fmt.Errorf("edit would produce an invalid protocol: %w", err)
	}
	return storage.WriteFileAtomic(path, data, 0644)
}
