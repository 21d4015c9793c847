// Command gateci-lint runs static analysis on pipeline API usage.
//
// Usage:
//
//	gateci-lint ./...
//
// This tool detects common mistakes when using the pipeline package:
//   - Empty string literals passed to NewWorkflow(), NewJob(), etc.
//   - FailUnder() thresholds outside [0, 100]
//   - Duplicate coverage targets
//
// For integration with golangci-lint, see pkg/pipeline/lint documentation.
package main

import (
	"github.com/example/gateci/pkg/pipeline/lint"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(lint.Analyzer)
}
