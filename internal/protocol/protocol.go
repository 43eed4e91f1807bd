// Package protocol loads, validates, and mutates the per-protocol JSON
// sources that govern agent behavior.
//
// A protocol source is a `*.protocol.json` file beneath the store root with an
// optional `<name>.protocol.md` narrative beside it. Each protocol_id maps to
// exactly one source file. Only the Store writes these files; edits are made in
// place so fields the store does not model survive byte-for-byte.
package protocol

import (
	"fmt"
)

// Source file suffixes.
const (
	SourceSuffix    = ".protocol.json"
	NarrativeSuffix = ".protocol.md"
)

// Rule is one enforceable statement within a protocol. RuleID is unique within
// its protocol.
type Rule struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Enforcement string `json:"enforcement"`
}

// Protocol is a governance document: rules, the tools it governs, and an
// optional predicate deciding where it applies.
type Protocol struct {
	ProtocolID      string         `json:"protocol_id"`
	Version         string         `json:"version,omitempty"`
	Description     string         `json:"description"`
	Rules           []Rule         `json:"rules"`
	AssociatedTools []string       `json:"associated_tools,omitempty"`
	Applicability   *Applicability `json:"applicability,omitempty"`

	// Source is the path of the file the protocol was loaded from.
	Source string `json:"-"`
	// Narrative is the sibling Markdown document, if any.
	Narrative string `json:"-"`
}

// HasTool reports whether tool is in the protocol's associated tools.
func (p *Protocol) HasTool(tool string) bool {
	for _, t := range p.AssociatedTools {
		if t == tool {
			return true
		}
	}
	return false
}

// Rule returns the rule with the given id.
func (p *Protocol) Rule(ruleID string) (*Rule, bool) {
	for i := range p.Rules {
		if p.Rules[i].RuleID == ruleID {
			return &p.Rules[i], true
		}
	}
	return nil, false
}

// SchemaError reports a protocol source that violates the protocol schema.
type SchemaError struct {
	File   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error in %s: %s", e.File, e.Reason)
}

// ReferentialError reports a mutation that names a missing protocol or rule.
type ReferentialError struct {
	ProtocolID string
	RuleID     string
}

func (e *ReferentialError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("rule '%s' not found in protocol '%s'", e.RuleID, e.ProtocolID)
	}
	return fmt.Sprintf("protocol '%s' not found", e.ProtocolID)
}
