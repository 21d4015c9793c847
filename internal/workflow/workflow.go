// Package workflow models the declarative definition file that drives a
// build: the push trigger, the runtime version matrix, and one job per
// quality gate. Each job expands to the same canonical step sequence:
// checkout, setup-runtime, install-deps, verify.
package workflow

import (
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/gateci/internal/domain"
)

// DefaultFailUnder is the coverage threshold applied when a unit-tests
// job does not declare one.
const DefaultFailUnder = 100.0

// DefaultSupportedRuntimes is the set of runtime versions the executor
// knows how to provision.
var DefaultSupportedRuntimes = []string{"3.8", "3.9", "3.10", "3.11"}

// Workflow is the root of a definition file.
type Workflow struct {
	Name    string             `yaml:"name"`
	On      Trigger            `yaml:"on"`
	Runtime RuntimeMatrix      `yaml:"runtime"`
	Jobs    map[string]JobSpec `yaml:"jobs"`
}

// Trigger declares what starts a build. Push is the only supported
// trigger and matches any push event.
type Trigger struct {
	Push *PushTrigger `yaml:"push,omitempty"`
}

// UnmarshalYAML decodes the trigger block by key presence: a bare
// `push:` entry carries a null value, so the default decoder would
// leave the pointer nil even though the trigger is declared.
func (t *Trigger) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!null" {
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: on: must be a mapping", domain.ErrInvalidWorkflow)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		switch key := value.Content[i].Value; key {
		case "push":
			t.Push = &PushTrigger{}
		default:
			return fmt.Errorf("%w: unsupported trigger %q", domain.ErrInvalidWorkflow, key)
		}
	}
	return nil
}

// PushTrigger matches every push; it has no filters.
type PushTrigger struct{}

// RuntimeMatrix is the runtime version axis. Entries with Enabled set
// to false stay in the file but are inactive, the declarative analogue
// of a commented-out matrix value.
type RuntimeMatrix struct {
	Matrix []RuntimeEntry `yaml:"matrix"`
}

// RuntimeEntry is one version in the matrix. A nil Enabled means active.
type RuntimeEntry struct {
	Version string `yaml:"version"`
	Enabled *bool  `yaml:"enabled"`
}

// Active returns true unless the entry is explicitly disabled.
func (e RuntimeEntry) Active() bool {
	return e.Enabled == nil || *e.Enabled
}

// JobSpec declares one gate. Kind selects which of the kind-specific
// fields apply.
type JobSpec struct {
	Kind     string `yaml:"kind"`
	Manifest string `yaml:"manifest"`
	Tool     string `yaml:"tool"`
	Timeout  string `yaml:"timeout"`

	// unit-tests
	Targets   []string `yaml:"targets"`
	CovConfig string   `yaml:"cov_config"`
	FailUnder *float64 `yaml:"fail_under"`

	// typecheck
	Config string `yaml:"config"`

	// lint
	RcFile string `yaml:"rcfile"`
}

// GateKind returns the job's kind as a domain type.
func (j JobSpec) GateKind() domain.GateKind {
	return domain.GateKind(j.Kind)
}

// FailUnderOrDefault returns the declared coverage threshold, or
// DefaultFailUnder when none is set.
func (j JobSpec) FailUnderOrDefault() float64 {
	if j.FailUnder == nil {
		return DefaultFailUnder
	}
	return *j.FailUnder
}

// TimeoutDuration parses the job timeout. Zero means no timeout.
func (j JobSpec) TimeoutDuration() (time.Duration, error) {
	if j.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(j.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %q: %v", domain.ErrInvalidWorkflow, j.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: timeout %q is negative", domain.ErrInvalidWorkflow, j.Timeout)
	}
	return d, nil
}

// JobNames returns the declared job names in stable order.
func (w *Workflow) JobNames() []string {
	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ActiveRuntime returns the single enabled runtime version.
func (w *Workflow) ActiveRuntime() (string, error) {
	var active []string
	for _, e := range w.Runtime.Matrix {
		if e.Active() {
			active = append(active, e.Version)
		}
	}
	switch len(active) {
	case 0:
		return "", fmt.Errorf("%w: no enabled runtime version", domain.ErrUnsupportedRuntime)
	case 1:
		return active[0], nil
	default:
		return "", fmt.Errorf("%w: %d runtime versions enabled, want exactly 1",
			domain.ErrUnsupportedRuntime, len(active))
	}
}

// Steps expands the named job into its canonical step list. The
// expansion is deterministic: always four steps, in the order checkout,
// setup-runtime, install-deps, verify.
func (w *Workflow) Steps(name string) ([]domain.Step, error) {
	spec, ok := w.Jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: job %q", domain.ErrNotFound, name)
	}
	version, err := w.ActiveRuntime()
	if err != nil {
		return nil, err
	}

	verifyArgs := map[string]any{}
	switch spec.GateKind() {
	case domain.GateUnitTests:
		targets := spec.Targets
		if len(targets) == 0 {
			targets = []string{"src/", "tests/"}
		}
		verifyArgs["targets"] = targets
		verifyArgs["cov_config"] = spec.CovConfig
		verifyArgs["fail_under"] = spec.FailUnderOrDefault()
	case domain.GateTypecheck:
		verifyArgs["config"] = spec.Config
	case domain.GateLint:
		verifyArgs["rcfile"] = spec.RcFile
	}

	return []domain.Step{
		domain.NewStep(0, domain.StepCheckout, "checkout", nil),
		domain.NewStep(1, domain.StepSetupRuntime, "setup-runtime", map[string]any{
			"version": version,
		}),
		domain.NewStep(2, domain.StepInstallDeps, "install-deps", map[string]any{
			"manifest": spec.Manifest,
			"tool":     spec.Tool,
		}),
		domain.NewStep(3, domain.StepVerify, "verify", verifyArgs),
	}, nil
}
