package harness

import (
	"context"
	"fmt"

	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/querysql"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/search"
	"github.com/roach88/sieve/internal/store"
	"github.com/roach88/sieve/internal/testutil"
)

// Harness runs scenarios against one catalog.
//
// Each scenario is compiled twice: once into a recording adapter for the
// trace, once through the search service for the SQL and rows. Guests are
// allowed and the statement cache is off, so scenarios never see each
// other's state.
type Harness struct {
	catalog  *schema.Catalog
	compiler *filter.Compiler
	service  *search.Service
	exec     store.Executor
	maxDepth int
}

// Option configures a Harness.
type Option func(*Harness)

// WithExecutor makes scenarios run their statement. Without one only the
// SQL is rendered and rows assertions fail.
func WithExecutor(exec store.Executor) Option {
	return func(h *Harness) { h.exec = exec }
}

// WithMaxDepth sets the filter nesting limit.
func WithMaxDepth(depth int) Option {
	return func(h *Harness) { h.maxDepth = depth }
}

// New creates a harness rendering SQLite SQL for catalog.
func New(catalog *schema.Catalog, opts ...Option) (*Harness, error) {
	h := &Harness{catalog: catalog, maxDepth: filter.DefaultMaxDepth}
	for _, opt := range opts {
		opt(h)
	}
	h.compiler = filter.NewCompiler(h.maxDepth)

	svcOpts := []search.Option{
		search.WithGuests(true),
		search.WithCacheSize(0),
		search.WithMaxDepth(h.maxDepth),
	}
	if h.exec != nil {
		svcOpts = append(svcOpts, search.WithExecutor(h.exec))
	}
	svc, err := search.NewService(catalog, querysql.SQLite, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("search service: %w", err)
	}
	h.service = svc
	return h, nil
}

// NewDemo creates a harness over catalog backed by an in-memory SQLite
// database holding the demo shop rows. The returned close func releases
// the database.
func NewDemo(ctx context.Context, catalog *schema.Catalog, opts ...Option) (*Harness, func() error, error) {
	db, err := store.OpenSQLite(":memory:")
	if err != nil {
		return nil, nil, err
	}
	if err := db.InstallDemo(ctx, true); err != nil {
		db.Close()
		return nil, nil, err
	}
	h, err := New(catalog, append(opts, WithExecutor(db))...)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return h, db.Close, nil
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
// 1. Convert the scenario filter to IR
// 2. Compile it into a recorder for the trace
// 3. Render (and, with an executor, run) the statement
// 4. Evaluate assertions against the result
//
// A rejected filter is a result, not an error. Errors are reserved for
// scenarios that cannot run at all, such as an unknown entity.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	model, ok := h.catalog.Entity(scenario.Entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", search.ErrUnknownEntity, scenario.Entity)
	}

	result := NewResult()
	filters, err := scenario.Filters(h.maxDepth)
	if err != nil {
		if !reject(result, err) {
			return nil, err
		}
		EvaluateAssertions(result, scenario.Assertions)
		return result, nil
	}

	rec := testutil.NewRecorder(model)
	apply := h.compiler.ApplyOnQuery
	if len(filters) == 0 {
		apply = h.compiler.Apply
	}
	if err := apply(rec, filters); err != nil {
		if !reject(result, err) {
			return nil, err
		}
		EvaluateAssertions(result, scenario.Assertions)
		return result, nil
	}
	result.Trace = rec.Trace()

	if err := h.execute(ctx, scenario, model.PrimaryKey(), filters, result); err != nil {
		return nil, err
	}

	EvaluateAssertions(result, scenario.Assertions)
	return result, nil
}

func (h *Harness) execute(ctx context.Context, scenario *Scenario, pk string, filters ir.IRObject, result *Result) error {
	if h.exec == nil {
		stmt, err := h.service.Compile(ctx, nil, scenario.Entity, filters)
		if err != nil {
			return fmt.Errorf("compile %s: %w", scenario.Name, err)
		}
		result.SQL, result.Args = stmt.SQL, stmt.Args
		return nil
	}

	var page search.Page
	if scenario.Page != nil {
		page = search.Page{Limit: scenario.Page.Limit, Offset: scenario.Page.Offset}
	}
	res, err := h.service.Search(ctx, nil, scenario.Entity, filters, page)
	if err != nil {
		return fmt.Errorf("search %s: %w", scenario.Name, err)
	}
	result.SQL, result.Args = res.Statement.SQL, res.Statement.Args
	result.Executed = true
	result.IDs = make([]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		id, ok := row.Get(pk)
		if !ok {
			result.IDs = append(result.IDs, nil)
			continue
		}
		native, err := ir.ToNative(id)
		if err != nil {
			return fmt.Errorf("row id: %w", err)
		}
		result.IDs = append(result.IDs, native)
	}
	return nil
}

// reject records err on result when it is a validation error.
func reject(result *Result, err error) bool {
	verr, ok := filter.AsValidationError(err)
	if !ok {
		return false
	}
	result.Rejection = verr
	return true
}

// RunFile loads and runs the scenario at path.
func (h *Harness) RunFile(ctx context.Context, path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := h.Run(ctx, scenario)
	if err != nil {
		return scenario, nil, err
	}
	return scenario, result, nil
}
