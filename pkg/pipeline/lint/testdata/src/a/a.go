// Package a is a test package for the pipeline linter.
package a

import "pipeline"

// Test cases

func emptyNewWorkflow() {
	pipeline.NewWorkflow("") // want "NewWorkflow called with empty string literal"
}

func emptyNewJob() {
	pipeline.NewJob("") // want "NewJob called with empty string literal"
}

func emptyRuntime() {
	pipeline.NewWorkflow("ci").Runtime("") // want "Runtime called with empty string literal"
}

func badFailUnder() {
	pipeline.NewJob("unit-tests").FailUnder(120) // want "FailUnder called with 120"
}

func negativeFailUnder() {
	pipeline.NewJob("unit-tests").FailUnder(-1) // no literal; unary expr is not checked
}

func emptyTargets() {
	pipeline.NewJob("unit-tests").Targets() // want "Targets called with no arguments"
}

func duplicateTargets() {
	pipeline.NewJob("unit-tests").Targets("src/", "tests/", "src/") // want `duplicate target "src/"`
}

// Valid cases - should NOT produce warnings

func validWorkflow() {
	pipeline.NewWorkflow("ci").Runtime("3.8")
}

func validJob() {
	pipeline.NewJob("unit-tests").FailUnder(100).Targets("src/", "tests/")
}
