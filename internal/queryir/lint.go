package queryir

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
)

// MaxRelationDepth is the Exists nesting past which Lint warns.
const MaxRelationDepth = 3

// LintResult contains the performance analysis of a select.
type LintResult struct {
	// Clean is true when no warnings were raised.
	Clean bool

	// Warnings describes each predicate likely to be slow or pointless.
	Warnings []string
}

// Lint reports predicates that are valid but likely to be slow or constant:
//  1. LIKE patterns with a leading wildcard (no index use)
//  2. Empty IN lists (always false) and empty NOT IN lists (always true)
//  3. Empty groups
//  4. Relation chains deeper than MaxRelationDepth
//  5. String values not in NFC, which byte comparison may not match against
//     composed text
//
// Lint is a pure function with no side effects.
func Lint(sel Select) LintResult {
	l := &linter{warnings: []string{}}
	l.lintClauses(sel.From, sel.Where, 0)

	return LintResult{
		Clean:    len(l.warnings) == 0,
		Warnings: l.warnings,
	}
}

// linter accumulates warnings during traversal.
type linter struct {
	warnings []string
}

func (l *linter) addWarning(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

func (l *linter) lintClauses(table string, clauses []Clause, depth int) {
	for _, c := range clauses {
		l.lintPredicate(table, c.Predicate, depth)
	}
}

func (l *linter) lintPredicate(table string, p Predicate, depth int) {
	switch pred := p.(type) {
	case Comparison:
		l.lintText(table, pred.Column, pred.Value)
		if pred.Operator == filter.OpLike {
			if s, ok := pred.Value.(ir.IRString); ok && strings.HasPrefix(string(s), "%") {
				l.addWarning("leading wildcard LIKE on %s.%s cannot use an index", table, pred.Column)
			}
		}
	case Membership:
		for _, v := range pred.Values {
			l.lintText(table, pred.Column, v)
		}
		if len(pred.Values) == 0 {
			if pred.Negated {
				l.addWarning("empty NOT IN list on %s.%s always matches", table, pred.Column)
			} else {
				l.addWarning("empty IN list on %s.%s never matches", table, pred.Column)
			}
		}
	case Group:
		if len(pred.Clauses) == 0 {
			l.addWarning("empty group on %s has no effect", table)
		}
		l.lintClauses(table, pred.Clauses, depth)
	case Exists:
		if depth+1 > MaxRelationDepth {
			l.addWarning("relation %s is nested %d levels deep", pred.Link.Name, depth+1)
		}
		l.lintClauses(pred.Link.Target.Table(), pred.Clauses, depth+1)
	default:
		l.addWarning("unknown predicate type: %T", p)
	}
}

func (l *linter) lintText(table, column string, v ir.IRValue) {
	if s, ok := v.(ir.IRString); ok && !norm.NFC.IsNormalString(string(s)) {
		l.addWarning("value for %s.%s is not NFC normalized", table, column)
	}
}
