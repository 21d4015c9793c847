package workflow

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/gateci/internal/domain"
)

// DefaultFileName is the workflow definition looked up in a repository
// root when no path is given.
const DefaultFileName = "gateci.yml"

// Parse decodes a workflow definition. Unknown keys are rejected so a
// stray `needs:` or misspelled field fails loudly instead of silently
// changing behavior.
func Parse(r io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var w Workflow
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWorkflow, err)
	}
	return &w, nil
}

// ParseFile decodes the workflow definition at path.
func ParseFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Encode writes the workflow back out as YAML.
func Encode(w *Workflow, out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(w); err != nil {
		enc.Close()
		return fmt.Errorf("failed to encode workflow: %w", err)
	}
	return enc.Close()
}
