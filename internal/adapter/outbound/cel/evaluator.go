// Package cel filters documents with CEL expressions, as used by
// "docdesk documents list --where".
package cel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/docdesk/docdesk/internal/domain/document"
	"github.com/docdesk/docdesk/internal/domain/session"
)

// maxExpressionLength is the maximum allowed length for filter expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per document.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout is the maximum time allowed for a single evaluation.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

// whereField names the flag that carries the expression in validation errors.
const whereField = "where"

// Evaluator compiles and evaluates document filter expressions.
type Evaluator struct {
	env *cel.Env
	now func() time.Time
}

// NewEvaluator creates an Evaluator with the document environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewDocumentEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create document environment: %w", err)
	}
	return &Evaluator{env: env, now: time.Now}, nil
}

// Compile parses and type-checks expression. Invalid expressions are
// returned as *session.ValidationError.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	if err := checkLimits(expression); err != nil {
		return nil, err
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, &session.ValidationError{Field: whereField, Message: "invalid filter: " + issues.Err().Error()}
	}
	if !ast.OutputType().IsExactType(cel.BoolType) && !ast.OutputType().IsExactType(cel.DynType) {
		return nil, &session.ValidationError{
			Field:   whereField,
			Message: fmt.Sprintf("filter must evaluate to a boolean, got %s", ast.OutputType()),
		}
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

// checkLimits enforces the length and nesting limits before compiling.
func checkLimits(expr string) error {
	if expr == "" {
		return &session.ValidationError{Field: whereField, Message: "filter is empty"}
	}
	if len(expr) > maxExpressionLength {
		return &session.ValidationError{
			Field:   whereField,
			Message: fmt.Sprintf("filter too long: %d characters (max %d)", len(expr), maxExpressionLength),
		}
	}
	if err := validateNesting(expr); err != nil {
		return &session.ValidationError{Field: whereField, Message: err.Error()}
	}
	return nil
}

// validateNesting checks that the expression does not exceed the maximum allowed
// nesting depth for parentheses, brackets, and braces.
func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("filter nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Evaluate runs prg against one document.
func (e *Evaluator) Evaluate(prg cel.Program, doc document.Document) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, BuildActivation(doc, e.now()))
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("filter did not return a boolean, got %T", result.Value())
	}
	return matched, nil
}

// Filter returns the documents for which expression is true, in order.
func (e *Evaluator) Filter(expression string, docs []document.Document) ([]document.Document, error) {
	prg, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}

	out := make([]document.Document, 0, len(docs))
	var errs []error
	for _, d := range docs {
		ok, err := e.Evaluate(prg, d)
		if err != nil {
			errs = append(errs, fmt.Errorf("document %s: %w", d.ID, err))
			continue
		}
		if ok {
			out = append(out, d)
		}
	}
	if len(errs) == len(docs) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
