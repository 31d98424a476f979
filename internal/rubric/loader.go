package rubric

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Rubric is one grading-instruction template plus the oracle parameters
// used with it
type Rubric struct {
	Name        string `yaml:"name" json:"name"`
	Instruction string `yaml:"instruction" json:"instruction"`
	Model       string `yaml:"model" json:"model"`
	MaxTokens   int    `yaml:"max_tokens" json:"max_tokens"`
}

// RevaluationInstruction extends the rubric with the operator's corrective
// prompt and the marker the client UI looks for on adjusted answers
func (r *Rubric) RevaluationInstruction(prompt string) string {
	if strings.TrimSpace(prompt) == "" || prompt == "null" {
		return r.Instruction
	}
	return r.Instruction +
		"\n\nTHIS IS REVALUATION. PROMPT: " + prompt +
		"\nGive remarks as 'Revaluated' for all questions extra remarks applied to."
}

// builtinDefault keeps grading working when no rubrics directory is
// deployed alongside the binary
var builtinDefault = &Rubric{
	Name: "default",
	Instruction: `You are an experienced teacher grading a student's handwritten answer sheet.
You are given the question paper pages, the answer key pages, the student's
identity, and the student's answer sheet pages, in that order.

Grade every question on the answer sheet against the answer key. Award
partial credit where the working deserves it. Respond with JSON only, no
surrounding prose, matching exactly this shape:

{"answers": [{"question_no": 1, "answer": "<transcribed answer>", "remarks": "<short justification>", "score": [<awarded>, <maximum>]}]}

Every answer must carry a score pair of two numbers: points awarded and
the maximum for that question. If a question was not attempted, award 0
and note "Not attempted" in remarks.`,
}

// Loader manages loading and caching of grading rubrics
type Loader struct {
	mu      sync.RWMutex
	rubrics map[string]*Rubric
}

// NewLoader creates a new rubric loader
func NewLoader() *Loader {
	return &Loader{rubrics: make(map[string]*Rubric)}
}

// LoadFromDir loads all YAML rubrics from a directory
func (l *Loader) LoadFromDir(dir string) error {
	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load rubric", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("rubrics loaded", "count", loaded, "dir", dir)
	return nil
}

// LoadFromFile loads a single rubric from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if r.Name == "" {
		return fmt.Errorf("rubric name is required")
	}
	if r.Instruction == "" {
		return fmt.Errorf("rubric instruction is required")
	}

	l.mu.Lock()
	l.rubrics[r.Name] = &r
	l.mu.Unlock()

	return nil
}

// Get returns a rubric by name, nil when absent
func (l *Loader) Get(name string) *Rubric {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rubrics[name]
}

// Default returns the "default" rubric, falling back to the built-in one
func (l *Loader) Default() *Rubric {
	if r := l.Get("default"); r != nil {
		return r
	}
	return builtinDefault
}

// List returns the names of all loaded rubrics
func (l *Loader) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.rubrics))
	for name := range l.rubrics {
		names = append(names, name)
	}
	return names
}
