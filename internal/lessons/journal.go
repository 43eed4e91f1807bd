package lessons

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/steveyegge/govern/internal/storage"
)

// Journal is the JSONL file of lessons. The extractor appends; the
// self-correction pass rewrites it whole.
type Journal struct {
	path string
}

// NewJournal returns a journal backed by path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file.
func (j *Journal) Path() string { return j.path }

// ParseError reports a malformed journal line.
type ParseError struct {
	Path string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: malformed lesson: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Append writes lessons to the end of the journal, creating it if needed.
func (j *Journal) Append(lessons ...*Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	data, err := encodeLines(lessons)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("creating journal directory: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening lesson journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing lesson journal: %w", err)
	}
	return nil
}

// ReadAll decodes every lesson in file order. A missing journal is empty.
func (j *Journal) ReadAll() ([]*Lesson, error) {
	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Lesson{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening lesson journal: %w", err)
	}
	defer f.Close()

	lessons := []*Lesson{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var l Lesson
		if err := json.Unmarshal([]byte(line), &l); err != nil {
			return nil, &ParseError{Path: j.path, Line: lineNum, Err: err}
		}
		if l.Status == "" {
			l.Status = StatusPending
		}
		lessons = append(lessons, &l)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading lesson journal: %w", err)
	}
	return lessons, nil
}

// Rewrite atomically replaces the journal with lessons.
func (j *Journal) Rewrite(lessons []*Lesson) error {
	data, err := encodeLines(lessons)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(j.path, data, 0644); err != nil {
		return fmt.Errorf("rewriting lesson journal: %w", err)
	}
	return nil
}

func encodeLines(lessons []*Lesson) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, l := range lessons {
		if err := enc.Encode(l); err != nil {
			return nil, fmt.Errorf("encoding lesson %s: %w", l.LessonID, err)
		}
	}
	return buf.Bytes(), nil
}

// Pending filters lessons still awaiting self-correction.
func Pending(lessons []*Lesson) []*Lesson {
	var out []*Lesson
	for _, l := range lessons {
		if l.Status == StatusPending {
			out = append(out, l)
		}
	}
	return out
}
