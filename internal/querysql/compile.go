package querysql

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/queryir"
)

// Dialect selects placeholder syntax.
type Dialect string

const (
	// SQLite uses ? placeholders.
	SQLite Dialect = "sqlite"

	// Postgres uses $1, $2, ... placeholders.
	Postgres Dialect = "postgres"
)

// ParseDialect validates a configured dialect name.
func ParseDialect(name string) (Dialect, error) {
	switch Dialect(name) {
	case SQLite, Postgres:
		return Dialect(name), nil
	default:
		return "", fmt.Errorf("unknown SQL dialect %q (want sqlite or postgres)", name)
	}
}

// SQLCompiler compiles QueryIR to parameterized SQL.
//
// CRITICAL: Every statement is ordered by primary key for deterministic pages.
// CRITICAL: All values are parameterized, never interpolated. Identifiers
// come from the schema, never from the client.
type SQLCompiler struct {
	dialect Dialect
	builder sq.StatementBuilderType
}

// NewSQLCompiler creates a compiler for dialect.
func NewSQLCompiler(dialect Dialect) *SQLCompiler {
	format := sq.Question
	if dialect == Postgres {
		format = sq.Dollar
	}
	return &SQLCompiler{
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// Dialect returns the compiler's dialect.
func (c *SQLCompiler) Dialect() Dialect {
	return c.dialect
}

// Compile converts a select to SQL and its parameters.
func (c *SQLCompiler) Compile(sel queryir.Select) (string, []any, error) {
	if sel.From == "" {
		return "", nil, fmt.Errorf("cannot compile select without a source")
	}
	pk := sel.PrimaryKey
	if pk == "" {
		pk = "id"
	}

	sc := &scope{alias: sel.From}
	where, args, err := c.compileClauses(sel.Where, sc)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}

	q := c.builder.
		Select(sel.From + ".*").
		From(sel.From).
		OrderBy(sel.From + "." + pk + " ASC")
	if where != "" {
		q = q.Where(where, args...)
	}
	if sel.Limit > 0 {
		q = q.Limit(sel.Limit)
	}
	if sel.Offset > 0 {
		q = q.Offset(sel.Offset)
	}

	return q.ToSql()
}

// CompileWhere renders only the condition of a clause list against table,
// with ? placeholders.
func (c *SQLCompiler) CompileWhere(table string, clauses []queryir.Clause) (string, []any, error) {
	return c.compileClauses(clauses, &scope{alias: table})
}

// scope tracks the alias of the table columns refer to. Relation
// subqueries get fresh aliases t1, t2, ... so self-relations never clash.
type scope struct {
	alias string
	next  *int
}

func (s *scope) child() *scope {
	if s.next == nil {
		s.next = new(int)
	}
	*s.next++
	return &scope{alias: fmt.Sprintf("t%d", *s.next), next: s.next}
}

func (s *scope) column(name string) string {
	return s.alias + "." + name
}

// compileClauses renders a boolean sequence. The first clause's boolean is
// ignored and empty groups are skipped.
func (c *SQLCompiler) compileClauses(clauses []queryir.Clause, sc *scope) (string, []any, error) {
	var b strings.Builder
	var args []any

	for _, cl := range clauses {
		sql, predArgs, err := c.compilePredicate(cl.Predicate, sc)
		if err != nil {
			return "", nil, err
		}
		if sql == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
			b.WriteString(joiner(cl.Boolean))
			b.WriteString(" ")
		}
		b.WriteString(sql)
		args = append(args, predArgs...)
	}
	return b.String(), args, nil
}

func joiner(boolean filter.Boolean) string {
	if boolean == filter.Or {
		return "OR"
	}
	return "AND"
}

// compilePredicate renders one predicate with ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, sc *scope) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Comparison:
		return compileComparison(pred, sc)
	case queryir.Membership:
		return compileMembership(pred, sc)
	case queryir.Group:
		inner, args, err := c.compileClauses(pred.Clauses, sc)
		if err != nil || inner == "" {
			return "", nil, err
		}
		return "(" + inner + ")", args, nil
	case queryir.Exists:
		return c.compileExists(pred, sc)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileComparison(cmp queryir.Comparison, sc *scope) (string, []any, error) {
	param, err := ir.ToNative(cmp.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}
	col := sc.column(cmp.Column)

	var s sq.Sqlizer
	switch cmp.Operator {
	case filter.OpEq:
		s = sq.Eq{col: param}
	case filter.OpNeq:
		s = sq.NotEq{col: param}
	case filter.OpLt:
		s = sq.Lt{col: param}
	case filter.OpLte:
		s = sq.LtOrEq{col: param}
	case filter.OpGt:
		s = sq.Gt{col: param}
	case filter.OpGte:
		s = sq.GtOrEq{col: param}
	case filter.OpLike:
		s = sq.Like{col: param}
	default:
		return "", nil, fmt.Errorf("unsupported comparison operator %q", cmp.Operator)
	}
	return s.ToSql()
}

func compileMembership(m queryir.Membership, sc *scope) (string, []any, error) {
	params := make([]any, len(m.Values))
	for i, v := range m.Values {
		param, err := ir.ToNative(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert value %d: %w", i, err)
		}
		params[i] = param
	}
	col := sc.column(m.Column)
	if m.Negated {
		return sq.NotEq{col: params}.ToSql()
	}
	return sq.Eq{col: params}.ToSql()
}

// compileExists renders a relation quantifier as a correlated subquery.
// The common ">= 1" case becomes EXISTS; "< 1" becomes NOT EXISTS; other
// comparisons count rows.
func (c *SQLCompiler) compileExists(ex queryir.Exists, sc *scope) (string, []any, error) {
	if ex.Link.Target == nil {
		return "", nil, fmt.Errorf("relation %s has no target", ex.Link.Name)
	}
	inner := sc.child()

	innerSQL, innerArgs, err := c.compileClauses(ex.Clauses, inner)
	if err != nil {
		return "", nil, fmt.Errorf("relation %s: %w", ex.Link.Name, err)
	}

	project := "1"
	plainExists := ex.Comparator == filter.OpGte && ex.Count == 1
	negatedExists := ex.Comparator == filter.OpLt && ex.Count == 1
	if !plainExists && !negatedExists {
		project = "COUNT(*)"
	}

	sub := sq.Select(project).
		From(ex.Link.Target.Table() + " AS " + inner.alias).
		Where(inner.column(ex.Link.ForeignKey) + " = " + sc.column(ex.Link.LocalKey))
	if innerSQL != "" {
		sub = sub.Where("("+innerSQL+")", innerArgs...)
	}

	subSQL, subArgs, err := sub.ToSql()
	if err != nil {
		return "", nil, err
	}

	switch {
	case plainExists:
		return "EXISTS (" + subSQL + ")", subArgs, nil
	case negatedExists:
		return "NOT EXISTS (" + subSQL + ")", subArgs, nil
	default:
		return fmt.Sprintf("(%s) %s ?", subSQL, sqlComparator(ex.Comparator)), append(subArgs, ex.Count), nil
	}
}

func sqlComparator(op filter.Operator) string {
	if op == filter.OpNeq {
		return "<>"
	}
	return string(op)
}
