package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/example/gateci/internal/domain"
	"github.com/example/gateci/internal/workflow"
)

func validWorkflowBuilder() *WorkflowBuilder {
	return NewWorkflow("quality-gates").
		Runtime("3.8").
		DisabledRuntime("3.9").
		Job(NewJob("unit-tests").
			UnitTests().
			Manifest("requirements.txt").
			Tool("pytest-cov").
			Targets("src/", "tests/").
			CovConfig(".coveragerc").
			FailUnder(100).
			Timeout(30 * time.Minute)).
		Job(NewJob("typecheck").
			Typecheck().
			Manifest("requirements.txt").
			Tool("mypy").
			Config("mypy.ini")).
		Job(NewJob("lint").
			Lint().
			Manifest("requirements.txt").
			Tool("pytest-pylint").
			RcFile(".pylintrc"))
}

func TestWorkflowBuilder(t *testing.T) {
	wf, err := validWorkflowBuilder().Build()
	if err != nil {
		t.Fatalf("Build() = %v", err)
	}

	if wf.Name != "quality-gates" {
		t.Errorf("Name = %s, want quality-gates", wf.Name)
	}
	if wf.On.Push == nil {
		t.Error("On.Push not set")
	}
	if len(wf.Jobs) != 3 {
		t.Errorf("Jobs = %d, want 3", len(wf.Jobs))
	}

	version, err := wf.ActiveRuntime()
	if err != nil {
		t.Fatalf("ActiveRuntime() = %v", err)
	}
	if version != "3.8" {
		t.Errorf("ActiveRuntime() = %s, want 3.8", version)
	}

	ut := wf.Jobs["unit-tests"]
	if ut.GateKind() != domain.GateUnitTests {
		t.Errorf("unit-tests Kind = %s", ut.Kind)
	}
	if ut.FailUnder == nil || *ut.FailUnder != 100 {
		t.Errorf("FailUnder = %v, want 100", ut.FailUnder)
	}
	if ut.Timeout != "30m0s" {
		t.Errorf("Timeout = %s, want 30m0s", ut.Timeout)
	}
}

func TestNewWorkflowPanicsOnEmptyName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewWorkflow() did not panic on empty name")
		}
	}()
	NewWorkflow("")
}

func TestNewJobPanicsOnEmptyName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewJob() did not panic on empty name")
		}
	}()
	NewJob("")
}

func TestRuntimePanicsOnEmptyVersion(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Runtime() did not panic on empty version")
		}
	}()
	NewWorkflow("ci").Runtime("")
}

func TestBuildValidates(t *testing.T) {
	// Two enabled runtime versions must be rejected at Build() time.
	_, err := NewWorkflow("ci").
		Runtime("3.8").
		Runtime("3.9").
		Job(NewJob("lint").Lint().Manifest("requirements.txt").RcFile(".pylintrc")).
		Build()
	if err == nil {
		t.Fatal("Build() accepted two enabled runtime versions")
	}
}

func TestMustBuildPanicsOnInvalid(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustBuild() did not panic on invalid workflow")
		}
	}()
	NewWorkflow("ci").MustBuild() // no runtime, no jobs
}

func TestEncodeProducesParseableYAML(t *testing.T) {
	var sb strings.Builder
	if err := validWorkflowBuilder().Encode(&sb); err != nil {
		t.Fatalf("Encode() = %v", err)
	}

	wf, err := workflow.Parse(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Parse(encoded) = %v", err)
	}
	if err := workflow.Validate(wf); err != nil {
		t.Errorf("Validate(parsed) = %v", err)
	}
	if len(wf.Jobs) != 3 {
		t.Errorf("round-tripped Jobs = %d, want 3", len(wf.Jobs))
	}
}
