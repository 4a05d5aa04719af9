// Package schema provides shape checks that can be bound to deltas with
// (*delta.Delta).WithSchema.
//
// Predicates are written in the expr language and evaluated over the JSON
// projection of a delta:
//
//	name      string   the delta name
//	attrs     map      attribute ops by key, as in the JSON form
//	children  list     child ops, as in the JSON form
//	length    int      the number of units the delta produces
//
// For example, `name == "p" && all(children, {.type != "modify"})`.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/brunokim/delta/delta"
)

// ErrMismatch is returned by the schemas in this package when a delta does not
// have the expected shape.
var ErrMismatch = errors.New("schema mismatch")

// Func adapts a function to the delta.Schema interface.
type Func func(d *delta.Delta) error

// Check calls f(d).
func (f Func) Check(d *delta.Delta) error { return f(d) }

// Program is a compiled boolean predicate over a delta.
type Program struct {
	src     string
	program *vm.Program
}

// sample environment, so references to unknown variables fail at compile time.
var sampleEnv = map[string]any{
	"name":     "",
	"attrs":    map[string]any{},
	"children": []any{},
	"length":   0,
}

// Expr compiles src into a predicate.
func Expr(src string) (*Program, error) {
	program, err := expr.Compile(src, expr.Env(sampleEnv), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compiling schema %q: %w", src, err)
	}
	return &Program{src: src, program: program}, nil
}

// MustExpr is like Expr but panics if src does not compile.
func MustExpr(src string) *Program {
	p, err := Expr(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.src }

// Check evaluates the predicate over d.
func (p *Program) Check(d *delta.Delta) error {
	out, err := vm.Run(p.program, Env(d))
	if err != nil {
		return fmt.Errorf("evaluating schema %q: %w", p.src, err)
	}
	if ok, _ := out.(bool); !ok {
		return fmt.Errorf("%w: %s", ErrMismatch, p.src)
	}
	return nil
}

// Env returns the variables that predicates see for d.
func Env(d *delta.Delta) map[string]any {
	m := d.ToJSON()
	env := map[string]any{
		"name":     d.Name(),
		"attrs":    map[string]any{},
		"children": []any{},
		"length":   d.Len(),
	}
	if attrs, ok := m["attrs"]; ok {
		env["attrs"] = attrs
	}
	if children, ok := m["children"]; ok {
		env["children"] = children
	}
	return env
}

// Names accepts deltas whose name is one of names.
func Names(names ...string) Func {
	return func(d *delta.Delta) error {
		for _, name := range names {
			if d.Name() == name {
				return nil
			}
		}
		return fmt.Errorf("%w: name %q not in [%s]", ErrMismatch, d.Name(), strings.Join(names, ", "))
	}
}

// All accepts deltas accepted by every schema, and returns the first error.
func All(schemas ...delta.Schema) Func {
	return func(d *delta.Delta) error {
		for _, s := range schemas {
			if err := s.Check(d); err != nil {
				return err
			}
		}
		return nil
	}
}
