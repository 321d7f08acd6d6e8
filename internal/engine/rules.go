package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"fieldserve-backend/internal/metadata"
)

// CompileExpression compiles a boolean rule or guard expression.
func CompileExpression(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

// CompileRules precompiles every validation rule and transition guard in the
// registry. Run at startup, after the catalog passes Check: compiled
// programs are cached on the metadata entries, which are read-only from then
// on, so request handlers never compile (or race) at evaluation time.
func CompileRules(reg *metadata.Registry) error {
	for _, name := range reg.EntityNames() {
		meta, err := reg.Get(name)
		if err != nil {
			return err
		}
		for i := range meta.Rules {
			prog, err := CompileExpression(meta.Rules[i].Expr)
			if err != nil {
				return fmt.Errorf("%s: rule on %q: %w", name, meta.Rules[i].Field, err)
			}
			meta.Rules[i].Compiled = prog
		}
		if meta.StatusFlow == nil {
			continue
		}
		for i := range meta.StatusFlow.Transitions {
			t := &meta.StatusFlow.Transitions[i]
			if t.Guard == "" {
				continue
			}
			prog, err := CompileExpression(t.Guard)
			if err != nil {
				return fmt.Errorf("%s: guard on transition to %q: %w", name, t.To, err)
			}
			t.CompiledGuard = prog
		}
	}
	return nil
}

// EvaluateRules runs every validation rule of the entity against the
// environment {record, old, action}. Record is the would-be row state (the
// incoming payload merged over the current row on update); old is nil on
// create. A rule evaluating to false is a violation; all rules run, so the
// caller gets the complete batch.
func EvaluateRules(meta *metadata.EntityMetadata, record, old map[string]any, action string) []ErrorDetail {
	if len(meta.Rules) == 0 {
		return nil
	}

	env := map[string]any{
		"record": record,
		"old":    old,
		"action": action,
	}

	var errs []ErrorDetail
	for i := range meta.Rules {
		rule := &meta.Rules[i]
		ok, err := evalBool(rule.Compiled, rule.Expr, env)
		if err != nil {
			errs = append(errs, ErrorDetail{
				Field:   rule.Field,
				Rule:    "expression",
				Message: fmt.Sprintf("rule evaluation error: %v", err),
			})
			continue
		}
		if !ok {
			errs = append(errs, ErrorDetail{
				Field:   rule.Field,
				Rule:    "expression",
				Message: rule.Message,
			})
		}
	}
	return errs
}

// EvaluateGuard runs a transition's guard against {record, old, action}.
// A transition without a guard always passes.
func EvaluateGuard(t *metadata.Transition, record, old map[string]any) (bool, error) {
	if t.Guard == "" {
		return true, nil
	}
	env := map[string]any{
		"record": record,
		"old":    old,
		"action": "status",
	}
	return evalBool(t.CompiledGuard, t.Guard, env)
}

// evalBool runs a compiled program, falling back to compiling on the spot
// when the startup pass was skipped (tests construct metadata directly).
func evalBool(compiled any, expression string, env map[string]any) (bool, error) {
	prog, ok := compiled.(*vm.Program)
	if !ok || prog == nil {
		var err error
		prog, err = CompileExpression(expression)
		if err != nil {
			return false, err
		}
	}
	result, err := expr.Run(prog, env)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to bool")
	}
	return b, nil
}
