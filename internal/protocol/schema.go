package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// Decode validates raw against the protocol schema and decodes it. file is
// used only for error reporting.
//
// Required: protocol_id and description (strings), rules (array). Each rule
// needs a non-empty rule_id unique within the protocol. associated_tools, when
// present, is an array of strings. version, when present, is a semantic version
// with or without the leading "v". applicability, when present, must be a
// well-formed predicate.
func Decode(file string, raw []byte) (*Protocol, error) {
	fail := func(format string, args ...interface{}) error {
		return &SchemaError{File: file, Reason: fmt.Sprintf(format, args...)}
	}

	if !gjson.ValidBytes(raw) {
		return nil, fail("not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, fail("top level must be an object")
	}

	for _, field := range []string{"protocol_id", "description"} {
		v := doc.Get(field)
		if !v.Exists() {
			return nil, fail("missing required field '%s'", field)
		}
		if v.Type != gjson.String {
			return nil, fail("'%s' must be a string", field)
		}
	}
	if strings.TrimSpace(doc.Get("protocol_id").String()) == "" {
		return nil, fail("'protocol_id' must not be empty")
	}

	rules := doc.Get("rules")
	if !rules.Exists() {
		return nil, fail("missing required field 'rules'")
	}
	if !rules.IsArray() {
		return nil, fail("'rules' must be an array")
	}
	seen := make(map[string]int)
	for i, rule := range rules.Array() {
		if !rule.IsObject() {
			return nil, fail("rules[%d] must be an object", i)
		}
		id := rule.Get("rule_id")
		if id.Type != gjson.String || id.String() == "" {
			return nil, fail("rules[%d] needs a non-empty string 'rule_id'", i)
		}
		if prev, dup := seen[id.String()]; dup {
			return nil, fail("duplicate rule_id '%s' (rules[%d] and rules[%d])", id.String(), prev, i)
		}
		seen[id.String()] = i
		for _, field := range []string{"description", "enforcement"} {
			if v := rule.Get(field); v.Exists() && v.Type != gjson.String {
				return nil, fail("rules[%d].%s must be a string", i, field)
			}
		}
	}

	if tools := doc.Get("associated_tools"); tools.Exists() {
		if !tools.IsArray() {
			return nil, fail("'associated_tools' must be an array")
		}
		for i, tool := range tools.Array() {
			if tool.Type != gjson.String {
				return nil, fail("associated_tools[%d] must be a string", i)
			}
		}
	}

	if v := doc.Get("version"); v.Exists() {
		if v.Type != gjson.String || !semver.IsValid(canonicalVersion(v.String())) {
			return nil, fail("'version' must be a semantic version, got %s", v.Raw)
		}
	}

	if a := doc.Get("applicability"); a.Exists() {
		if err := checkPredicate(a, "applicability"); err != nil {
			return nil, fail("%v", err)
		}
	}

	var p Protocol
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fail("%v", err)
	}
	if p.Rules == nil {
		p.Rules = []Rule{}
	}
	p.Source = file
	return &p, nil
}

// canonicalVersion adds the "v" prefix semver expects.
func canonicalVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
