package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaError reports an entry that failed validation against the logging
// schema. The entry is not written.
type SchemaError struct {
	LogID  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("log entry %s violates logging schema: %s", e.LogID, e.Reason)
}

// schemaResource is the URL the extracted schema is registered under.
const schemaResource = "logging_schema.json"

// ExtractFencedBlock returns the body of the first fenced code block in a
// Markdown document.
func ExtractFencedBlock(markdown string) (string, bool) {
	scanner := bufio.NewScanner(strings.NewReader(markdown))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var body []string
	fence := ""
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if fence == "" {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				fence = trimmed[:3]
			}
			continue
		}
		if strings.HasPrefix(trimmed, fence) {
			return strings.Join(body, "\n"), true
		}
		body = append(body, line)
	}
	return "", false
}

// LoadSchema reads the Markdown schema document at path and compiles the JSON
// Schema in its first fenced block.
func LoadSchema(path string) (*jsonschema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading logging schema: %w", err)
	}
	block, ok := ExtractFencedBlock(string(data))
	if !ok {
		return nil, fmt.Errorf("no fenced code block in %s", path)
	}
	return CompileSchema(block)
}

// CompileSchema compiles a JSON Schema document.
func CompileSchema(text string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("parsing logging schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("adding logging schema: %w", err)
	}
	sch, err := c.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compiling logging schema: %w", err)
	}
	return sch, nil
}

// validateEntry checks the serialized form of entry against sch.
func validateEntry(sch *jsonschema.Schema, entry *LogEntry, line []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(line))
	if err != nil {
		return &SchemaError{LogID: entry.LogID, Reason: err.Error()}
	}
	if err := sch.Validate(inst); err != nil {
		return &SchemaError{LogID: entry.LogID, Reason: err.Error()}
	}
	return nil
}

// marshalEntry renders entry as a single JSON line without the trailing newline.
func marshalEntry(entry *LogEntry) ([]byte, error) {
	line, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal log entry: %w", err)
	}
	return line, nil
}
