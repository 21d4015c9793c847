package workflow

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/example/gateci/internal/domain"
)

// Validate checks the workflow against the default supported runtime set.
func Validate(w *Workflow) error {
	return ValidateWith(w, DefaultSupportedRuntimes)
}

// ValidateWith checks the workflow structurally. All problems are
// aggregated and reported together rather than one at a time.
func ValidateWith(w *Workflow, supportedRuntimes []string) error {
	var result *multierror.Error

	if w.Name == "" {
		result = multierror.Append(result, fmt.Errorf("%w: name is required", domain.ErrInvalidWorkflow))
	}
	if w.On.Push == nil {
		result = multierror.Append(result, fmt.Errorf("%w: on.push trigger is required", domain.ErrInvalidWorkflow))
	}
	if len(w.Jobs) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: at least one job is required", domain.ErrInvalidWorkflow))
	}

	result = multierror.Append(result, validateRuntime(w, supportedRuntimes))

	for _, name := range w.JobNames() {
		if err := validateJob(name, w.Jobs[name]); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func validateRuntime(w *Workflow, supported []string) *multierror.Error {
	var result *multierror.Error

	if len(w.Runtime.Matrix) == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: runtime.matrix is required", domain.ErrInvalidWorkflow))
		return result
	}

	supportedSet := make(map[string]bool, len(supported))
	for _, v := range supported {
		supportedSet[v] = true
	}

	var active int
	for _, e := range w.Runtime.Matrix {
		if e.Version == "" {
			result = multierror.Append(result, fmt.Errorf("%w: runtime entry with empty version", domain.ErrInvalidWorkflow))
			continue
		}
		if !e.Active() {
			continue
		}
		active++
		if !supportedSet[e.Version] {
			result = multierror.Append(result, fmt.Errorf("%w: %q is enabled but not supported",
				domain.ErrUnsupportedRuntime, e.Version))
		}
	}

	// The matrix axis is single-valued: exactly one enabled version.
	if active == 0 {
		result = multierror.Append(result, fmt.Errorf("%w: no enabled runtime version", domain.ErrUnsupportedRuntime))
	} else if active > 1 {
		result = multierror.Append(result, fmt.Errorf("%w: %d runtime versions enabled, want exactly 1",
			domain.ErrUnsupportedRuntime, active))
	}

	return result
}

func validateJob(name string, spec JobSpec) error {
	var result *multierror.Error

	if name == "" {
		result = multierror.Append(result, fmt.Errorf("%w: job with empty name", domain.ErrInvalidWorkflow))
	}
	if !spec.GateKind().Valid() {
		result = multierror.Append(result, fmt.Errorf("%w: job %q has unknown kind %q",
			domain.ErrInvalidWorkflow, name, spec.Kind))
	}
	if spec.Manifest == "" {
		result = multierror.Append(result, fmt.Errorf("%w: job %q: manifest is required",
			domain.ErrInvalidWorkflow, name))
	}
	if _, err := spec.TimeoutDuration(); err != nil {
		result = multierror.Append(result, fmt.Errorf("job %q: %w", name, err))
	}

	switch spec.GateKind() {
	case domain.GateUnitTests:
		fu := spec.FailUnderOrDefault()
		if fu < 0 || fu > 100 {
			result = multierror.Append(result, fmt.Errorf("%w: job %q: fail_under %v out of range [0,100]",
				domain.ErrInvalidWorkflow, name, fu))
		}
	case domain.GateTypecheck:
		if spec.Config == "" {
			result = multierror.Append(result, fmt.Errorf("%w: job %q: config is required for typecheck",
				domain.ErrInvalidWorkflow, name))
		}
		if spec.FailUnder != nil {
			result = multierror.Append(result, fmt.Errorf("%w: job %q: fail_under only applies to unit-tests",
				domain.ErrInvalidWorkflow, name))
		}
	case domain.GateLint:
		if spec.RcFile == "" {
			result = multierror.Append(result, fmt.Errorf("%w: job %q: rcfile is required for lint",
				domain.ErrInvalidWorkflow, name))
		}
		if spec.FailUnder != nil {
			result = multierror.Append(result, fmt.Errorf("%w: job %q: fail_under only applies to unit-tests",
				domain.ErrInvalidWorkflow, name))
		}
	}

	return result.ErrorOrNil()
}
