package session

import (
	"fmt"
	"strings"

	"github.com/sys2dsl/engine/internal/ast"
	"github.com/sys2dsl/engine/internal/proof"
	"github.com/sys2dsl/engine/internal/symbolic"
)

// registerRule lowers a parsed Rule block into a proof.Rule (always) and,
// when its condition/conclusion shape is a conjunction of plain leaves,
// into a symbolic.RuleText rule backing the Datalog fallback strategy
// (spec §4.7 step 14, SPEC_FULL.md DOMAIN STACK).
func (s *Session) registerRule(b ast.Block) error {
	if b.Condition == nil || b.Conclusion == nil {
		return &ValidationError{Line: b.Pos.Line, Column: b.Pos.Column, Message: "rule block requires both a condition and a conclusion"}
	}
	id := fmt.Sprintf("rule_%d", len(s.rules)+1)
	maxPremise := conditionDepth(*b.Condition)
	rule := proof.Rule{
		ID:              id,
		Condition:       *b.Condition,
		Conclusion:      *b.Conclusion,
		ConclusionLevel: maxPremise + 1,
		MaxPremiseLevel: maxPremise,
	}
	s.rules = append(s.rules, rule)

	if ok := s.lowerRuleToDatalog(rule); !ok {
		// Or/Not-shaped conditions and compound conclusions still reason
		// through the proof engine's own rule-index/modus-ponens
		// strategies against rule.Condition directly; they just don't
		// get a Datalog-backed fallback (spec §4.7 steps 9-14 still
		// apply without step 14's Mangle cross-check).
		return nil
	}
	return nil
}

// conditionDepth is a structural (not runtime, constructivist) measure of
// how deeply a rule's condition tree nests And/Or/Not, used only to seed
// ConclusionLevel/MaxPremiseLevel for rule-index pruning at declaration
// time; the runtime constructivist level recorded in a derived fact's
// CanonicalMetadata.Level (spec §3) is computed per application from the
// premises actually matched, not from this static bound.
func conditionDepth(stmt ast.Statement) int {
	switch stmt.Operator {
	case "And", "Or", "Not":
		max := 0
		for _, arg := range stmt.Args {
			inner, ok := innerStatementExpr(arg)
			if !ok {
				continue
			}
			if d := conditionDepth(inner); d > max {
				max = d
			}
		}
		return max + 1
	default:
		return 0
	}
}

func innerStatementExpr(e ast.Expr) (ast.Statement, bool) {
	if e.Kind == ast.ExprStatement && e.Inner != nil {
		return *e.Inner, true
	}
	if e.Kind == ast.ExprCompound {
		return ast.Statement{Operator: e.Operator, Args: e.Args}, true
	}
	return ast.Statement{}, false
}

// conjunctiveLeaves returns stmt's leaf statements when stmt is a plain
// leaf or an And of plain leaves, and false when it contains Or/Not
// (which the Mangle lowering below does not attempt to translate).
func conjunctiveLeaves(stmt ast.Statement) ([]ast.Statement, bool) {
	if stmt.Operator == "Or" || stmt.Operator == "Not" {
		return nil, false
	}
	if stmt.Operator != "And" {
		return []ast.Statement{stmt}, true
	}
	leaves := make([]ast.Statement, 0, len(stmt.Args))
	for _, a := range stmt.Args {
		inner, ok := innerStatementExpr(a)
		if !ok {
			return nil, false
		}
		sub, ok := conjunctiveLeaves(inner)
		if !ok {
			return nil, false
		}
		leaves = append(leaves, sub...)
	}
	return leaves, true
}

// lowerRuleToDatalog renders rule as Mangle surface syntax and registers
// it with the session's Datalog store, when its shape permits. Template
// identifier args are treated as logical variables, consistently renamed
// across every leaf and the conclusion by first-appearance order;
// literal args become quoted Mangle constants.
func (s *Session) lowerRuleToDatalog(rule proof.Rule) bool {
	if rule.Conclusion.Operator == "Not" {
		return false
	}
	leaves, ok := conjunctiveLeaves(rule.Condition)
	if !ok || len(leaves) == 0 {
		return false
	}

	vars := map[string]string{}
	nextVar := 0
	varFor := func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}
		v := fmt.Sprintf("V%d", nextVar)
		nextVar++
		vars[name] = v
		return v
	}

	render := func(stmt ast.Statement) (string, int, error) {
		parts := make([]string, len(stmt.Args))
		for i, a := range stmt.Args {
			switch a.Kind {
			case ast.ExprIdentifier, ast.ExprReference:
				parts[i] = varFor(a.Name)
			case ast.ExprLiteral:
				parts[i] = fmt.Sprintf("%q", fmt.Sprintf("%v", a.Literal))
			default:
				return "", 0, fmt.Errorf("unsupported rule argument kind")
			}
		}
		return fmt.Sprintf("%s(%s)", stmt.Operator, strings.Join(parts, ", ")), len(stmt.Args), nil
	}

	var leafTexts []string
	for _, leaf := range leaves {
		text, arity, err := render(leaf)
		if err != nil {
			return false
		}
		if err := s.datalog.EnsureDeclared(leaf.Operator, arity); err != nil {
			return false
		}
		leafTexts = append(leafTexts, text)
	}
	concText, concArity, err := render(rule.Conclusion)
	if err != nil {
		return false
	}
	if err := s.datalog.EnsureDeclared(rule.Conclusion.Operator, concArity); err != nil {
		return false
	}

	ruleText := fmt.Sprintf("%s :- %s.", concText, strings.Join(leafTexts, ", "))
	if err := s.datalog.AddRule(symbolic.RuleText(ruleText)); err != nil {
		return false
	}
	return true
}
