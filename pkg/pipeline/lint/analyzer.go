// Package lint provides static analysis checks for the pipeline API.
//
// This analyzer detects common mistakes when using the pipeline package:
//   - Empty string literals passed to NewWorkflow(), NewJob(), etc.
//   - FailUnder() called with a threshold outside [0, 100]
//   - Duplicate coverage targets passed to Targets()
//
// Usage:
//
//	go install github.com/example/gateci/cmd/gateci-lint@latest
//	gateci-lint ./...
//
// Or with golangci-lint (add to .golangci.yml):
//
//	linters:
//	  enable:
//	    - pipelinelint
package lint

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer is the pipeline lint analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "pipelinelint",
	Doc:      "checks for common pipeline API mistakes",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{(*ast.CallExpr)(nil)}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		call := n.(*ast.CallExpr)

		switch fn := call.Fun.(type) {
		case *ast.SelectorExpr:
			checkSelectorCall(pass, call, fn)
		case *ast.Ident:
			checkIdentCall(pass, call, fn)
		}
	})

	return nil, nil
}

// checkSelectorCall checks calls like pipeline.NewWorkflow("...") and
// builder-chain methods like .FailUnder(95).
func checkSelectorCall(pass *analysis.Pass, call *ast.CallExpr, sel *ast.SelectorExpr) {
	methodName := sel.Sel.Name

	if pkg, ok := sel.X.(*ast.Ident); ok && pkg.Name == "pipeline" {
		switch methodName {
		case "NewWorkflow", "NewJob":
			checkEmptyStringArg(pass, call, methodName)
		}
		return
	}

	// Builder-chain methods can hang off arbitrary expressions, so match
	// by method name regardless of receiver.
	switch methodName {
	case "Runtime", "DisabledRuntime", "Manifest", "Tool", "CovConfig", "Config", "RcFile":
		checkEmptyStringArg(pass, call, methodName)
	case "FailUnder":
		checkFailUnderArg(pass, call)
	case "Targets":
		checkTargetArgs(pass, call, methodName)
	}
}

// checkIdentCall checks calls from within the pipeline package itself.
func checkIdentCall(pass *analysis.Pass, call *ast.CallExpr, ident *ast.Ident) {
	if !strings.HasSuffix(pass.Pkg.Path(), "/pipeline") {
		return
	}

	switch ident.Name {
	case "NewWorkflow", "NewJob":
		checkEmptyStringArg(pass, call, ident.Name)
	}
}

// checkEmptyStringArg reports if the first argument is an empty string literal.
func checkEmptyStringArg(pass *analysis.Pass, call *ast.CallExpr, funcName string) {
	if len(call.Args) == 0 {
		return
	}

	firstArg := call.Args[0]
	if lit, ok := firstArg.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		if lit.Value == `""` || lit.Value == "``" {
			pass.Reportf(lit.Pos(), "%s called with empty string literal - will panic at runtime", funcName)
		}
	}
}

// checkFailUnderArg reports coverage thresholds outside [0, 100].
func checkFailUnderArg(pass *analysis.Pass, call *ast.CallExpr) {
	if len(call.Args) != 1 {
		return
	}

	lit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || (lit.Kind != token.INT && lit.Kind != token.FLOAT) {
		return
	}

	v, err := strconv.ParseFloat(lit.Value, 64)
	if err != nil {
		return
	}
	if v < 0 || v > 100 {
		pass.Reportf(lit.Pos(), "FailUnder called with %v - coverage threshold must be between 0 and 100", lit.Value)
	}
}

// checkTargetArgs reports empty and duplicate coverage targets.
func checkTargetArgs(pass *analysis.Pass, call *ast.CallExpr, funcName string) {
	if len(call.Args) == 0 {
		pass.Reportf(call.Pos(), "%s called with no arguments - this is a no-op", funcName)
	}

	seen := make(map[string]token.Pos)
	for _, arg := range call.Args {
		if target := extractStringLit(arg); target != "" {
			if prevPos, exists := seen[target]; exists {
				pass.Reportf(arg.Pos(), "duplicate target %q (first seen at %v)", target, pass.Fset.Position(prevPos))
			}
			seen[target] = arg.Pos()
		}
	}
}

// extractStringLit extracts a string literal value from an expression.
func extractStringLit(expr ast.Expr) string {
	if lit, ok := expr.(*ast.BasicLit); ok && lit.Kind == token.STRING {
		s := lit.Value
		if len(s) >= 2 {
			return s[1 : len(s)-1]
		}
	}
	return ""
}
