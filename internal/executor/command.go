package executor

import (
	"fmt"

	"github.com/example/gateci/internal/domain"
)

// Commands expands a step into the ordered command list that realizes
// it. The verification commands reproduce the gate contract verbatim:
// the job's outcome is the exit status of the last command here.
func Commands(jobKind domain.GateKind, step domain.Step, build *domain.Build, workDir string) ([]StepCommand, error) {
	switch step.Kind {
	case domain.StepCheckout:
		return checkoutCommands(build, workDir), nil
	case domain.StepSetupRuntime:
		return setupRuntimeCommands(step, workDir)
	case domain.StepInstallDeps:
		return installDepsCommands(step, workDir)
	case domain.StepVerify:
		return verifyCommands(jobKind, step, workDir)
	default:
		return nil, fmt.Errorf("%w: unknown step kind %q", domain.ErrInvalidArgument, step.Kind)
	}
}

func checkoutCommands(build *domain.Build, workDir string) []StepCommand {
	return []StepCommand{
		{WorkDir: workDir, Program: "git", Args: []string{"clone", "--quiet", build.Repo, "."}},
		{WorkDir: workDir, Program: "git", Args: []string{"checkout", "--detach", "--quiet", build.CommitSHA}},
	}
}

func setupRuntimeCommands(step domain.Step, workDir string) ([]StepCommand, error) {
	version, _ := step.Args["version"].(string)
	if version == "" {
		return nil, fmt.Errorf("%w: setup-runtime step without version", domain.ErrInvalidArgument)
	}
	// Provisioning is delegated to the host; this probes that the pinned
	// interpreter actually resolves before anything depends on it.
	return []StepCommand{
		{WorkDir: workDir, Program: "python" + version, Args: []string{"--version"}},
	}, nil
}

func installDepsCommands(step domain.Step, workDir string) ([]StepCommand, error) {
	manifest, _ := step.Args["manifest"].(string)
	if manifest == "" {
		return nil, fmt.Errorf("%w: install-deps step without manifest", domain.ErrInvalidArgument)
	}
	cmds := []StepCommand{
		{WorkDir: workDir, Program: "pip", Args: []string{"install", "-r", manifest}},
	}
	if tool, _ := step.Args["tool"].(string); tool != "" {
		cmds = append(cmds, StepCommand{
			WorkDir: workDir, Program: "pip", Args: []string{"install", tool},
		})
	}
	return cmds, nil
}

func verifyCommands(jobKind domain.GateKind, step domain.Step, workDir string) ([]StepCommand, error) {
	switch jobKind {
	case domain.GateUnitTests:
		args := []string{"-s", "tests/"}
		if covConfig, _ := step.Args["cov_config"].(string); covConfig != "" {
			args = append(args, "--cov-config="+covConfig)
		}
		for _, t := range TargetList(step.Args["targets"]) {
			args = append(args, "--cov="+t)
		}
		failUnder := 100.0
		if fu, ok := step.Args["fail_under"].(float64); ok {
			failUnder = fu
		}
		args = append(args, fmt.Sprintf("--cov-fail-under=%g", failUnder), "--durations=0")
		return []StepCommand{{WorkDir: workDir, Program: "pytest", Args: args}}, nil

	case domain.GateTypecheck:
		config, _ := step.Args["config"].(string)
		if config == "" {
			return nil, fmt.Errorf("%w: typecheck verify step without config", domain.ErrInvalidArgument)
		}
		return []StepCommand{
			{WorkDir: workDir, Program: "mypy", Args: []string{".", "--config-file", config}},
		}, nil

	case domain.GateLint:
		rcfile, _ := step.Args["rcfile"].(string)
		if rcfile == "" {
			return nil, fmt.Errorf("%w: lint verify step without rcfile", domain.ErrInvalidArgument)
		}
		return []StepCommand{
			{WorkDir: workDir, Program: "pytest", Args: []string{
				".", "--pylint", "-m", "pylint", "--pylint-rcfile=" + rcfile,
			}},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown gate kind %q", domain.ErrInvalidArgument, jobKind)
	}
}

// TargetList reads a coverage-target step argument, tolerating both
// []string (builder API) and []any (decoded from persisted JSON args).
func TargetList(v any) []string {
	switch ts := v.(type) {
	case []string:
		return ts
	case []any:
		out := make([]string, 0, len(ts))
		for _, t := range ts {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
