package protocol

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// Applicability is a declarative predicate over a Context. Every clause that is
// set must hold; an Applicability with no clauses is rejected at load time.
//
//	{"any_path_prefix": ["legacy/"]}
//	{"any": [{"any_tool": ["git_push"]}, {"any_path_prefix": ["deploy/"]}]}
type Applicability struct {
	// AnyPathPrefix holds when some target path starts with one of the prefixes.
	AnyPathPrefix []string `json:"any_path_prefix,omitempty"`
	// AnyTool holds when the plan uses one of the tools.
	AnyTool []string `json:"any_tool,omitempty"`
	// All holds when every nested predicate holds.
	All []Applicability `json:"all,omitempty"`
	// Any holds when at least one nested predicate holds.
	Any []Applicability `json:"any,omitempty"`
	// Not holds when the nested predicate does not.
	Not *Applicability `json:"not,omitempty"`
}

// Context is what applicability predicates are evaluated against.
type Context struct {
	TargetPaths []string
	Tools       []string
}

// Matches evaluates the predicate. A nil predicate always matches.
func (a *Applicability) Matches(c Context) bool {
	if a == nil {
		return true
	}
	if len(a.AnyPathPrefix) > 0 && !anyPathHasPrefix(c.TargetPaths, a.AnyPathPrefix) {
		return false
	}
	if len(a.AnyTool) > 0 && !intersects(c.Tools, a.AnyTool) {
		return false
	}
	for i := range a.All {
		if !a.All[i].Matches(c) {
			return false
		}
	}
	if len(a.Any) > 0 {
		matched := false
		for i := range a.Any {
			if a.Any[i].Matches(c) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if a.Not != nil && a.Not.Matches(c) {
		return false
	}
	return true
}

func anyPathHasPrefix(paths, prefixes []string) bool {
	for _, p := range paths {
		clean := filepath.ToSlash(filepath.Clean(p))
		for _, prefix := range prefixes {
			if strings.HasPrefix(clean, prefix) || strings.HasPrefix(p, prefix) {
				return true
			}
		}
	}
	return false
}

func intersects(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

var predicateKeys = map[string]bool{
	"any_path_prefix": true,
	"any_tool":        true,
	"all":             true,
	"any":             true,
	"not":             true,
}

// checkPredicate validates the raw JSON of a predicate before decoding, so
// typos such as "any_paths" are reported rather than silently ignored.
func checkPredicate(v gjson.Result, path string) error {
	if !v.IsObject() {
		return fmt.Errorf("%s must be an object", path)
	}

	var err error
	clauses := 0
	v.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		at := path + "." + name
		if !predicateKeys[name] {
			err = fmt.Errorf("%s: unknown predicate clause", at)
			return false
		}
		clauses++

		switch name {
		case "any_path_prefix", "any_tool":
			err = checkStringList(value, at)
		case "all", "any":
			if !value.IsArray() || len(value.Array()) == 0 {
				err = fmt.Errorf("%s must be a non-empty array of predicates", at)
				break
			}
			for i, nested := range value.Array() {
				if err = checkPredicate(nested, fmt.Sprintf("%s[%d]", at, i)); err != nil {
					break
				}
			}
		case "not":
			err = checkPredicate(value, at)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	if clauses == 0 {
		return fmt.Errorf("%s has no clauses", path)
	}
	return nil
}

func checkStringList(v gjson.Result, path string) error {
	if !v.IsArray() || len(v.Array()) == 0 {
		return fmt.Errorf("%s must be a non-empty array of strings", path)
	}
	for i, item := range v.Array() {
		if item.Type != gjson.String || item.String() == "" {
			return fmt.Errorf("%s[%d] must be a non-empty string", path, i)
		}
	}
	return nil
}
