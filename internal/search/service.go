package search

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/sieve/internal/auth"
	"github.com/roach88/sieve/internal/filter"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/logger"
	"github.com/roach88/sieve/internal/queryir"
	"github.com/roach88/sieve/internal/querysql"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/store"
)

const instrumentationName = "github.com/roach88/sieve/internal/search"

var (
	// ErrUnknownEntity means the catalog has no entity of that name.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrNoExecutor means Search was called on a compile-only service.
	ErrNoExecutor = errors.New("no executor configured")

	// ErrQueryFailed wraps errors from running a compiled statement.
	ErrQueryFailed = errors.New("query failed")
)

// AbilityFor is the ability a caller needs to filter entity.
func AbilityFor(entity string) string {
	return "search:" + entity
}

// Page bounds a search. Zero Limit means the service default.
type Page struct {
	Limit  uint64
	Offset uint64
}

// Statement is a compiled filter.
type Statement struct {
	Entity   string   `json:"entity" msgpack:"entity"`
	Hash     string   `json:"hash" msgpack:"hash"`
	SQL      string   `json:"sql" msgpack:"sql"`
	Args     []any    `json:"args" msgpack:"args"`
	Warnings []string `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
	Cached   bool     `json:"cached" msgpack:"cached"`
}

// Result is an executed search. Page holds the limit actually applied.
type Result struct {
	Statement Statement
	Page      Page
	Rows      []ir.IRObject
}

type compiled struct {
	sel      queryir.Select
	warnings []string
}

// Service compiles and runs filters against a schema catalog.
//
// A Service is safe for concurrent use once constructed.
type Service struct {
	catalog    *schema.Catalog
	compiler   *filter.Compiler
	sql        *querysql.SQLCompiler
	exec       store.Executor
	cache      *lru.Cache[string, compiled]
	log        logger.Logger
	tracer     trace.Tracer
	metrics    *instruments
	allowGuest bool

	defaultLimit uint64
	maxLimit     uint64

	cacheSize int
	meter     metric.Meter
}

// Option configures a Service.
type Option func(*Service)

// WithExecutor enables Search.
func WithExecutor(exec store.Executor) Option {
	return func(s *Service) { s.exec = exec }
}

// WithLogger sets the logger. The default discards.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMaxDepth sets the filter nesting limit.
func WithMaxDepth(depth int) Option {
	return func(s *Service) { s.compiler = filter.NewCompiler(depth) }
}

// WithCacheSize sets the compiled-select cache size. Zero disables caching.
func WithCacheSize(size int) Option {
	return func(s *Service) { s.cacheSize = size }
}

// WithLimits sets the default and maximum page size. A zero max means
// unbounded.
func WithLimits(defaultLimit, maxLimit uint64) Option {
	return func(s *Service) {
		s.defaultLimit = defaultLimit
		s.maxLimit = maxLimit
	}
}

// WithGuests lets callers without a user search.
func WithGuests(allow bool) Option {
	return func(s *Service) { s.allowGuest = allow }
}

// WithMeter sets the meter instruments are registered on. The default is
// the global provider's.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) { s.meter = m }
}

// NewService creates a service over catalog rendering SQL for dialect.
func NewService(catalog *schema.Catalog, dialect querysql.Dialect, opts ...Option) (*Service, error) {
	s := &Service{
		catalog:      catalog,
		compiler:     filter.NewCompiler(filter.DefaultMaxDepth),
		sql:          querysql.NewSQLCompiler(dialect),
		log:          logger.NewTestLogger(),
		tracer:       otel.Tracer(instrumentationName),
		defaultLimit: 100,
		cacheSize:    512,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meter == nil {
		s.meter = otel.Meter(instrumentationName)
	}

	var err error
	if s.metrics, err = newInstruments(s.meter); err != nil {
		return nil, err
	}
	if s.cacheSize > 0 {
		if s.cache, err = lru.New[string, compiled](s.cacheSize); err != nil {
			return nil, fmt.Errorf("statement cache: %w", err)
		}
	}
	return s, nil
}

// Catalog returns the schema catalog.
func (s *Service) Catalog() *schema.Catalog {
	return s.catalog
}

// Compile checks access, validates filters and renders the statement
// without paging.
func (s *Service) Compile(ctx context.Context, user auth.User, entity string, filters ir.IRObject) (Statement, error) {
	ctx, span := s.tracer.Start(ctx, "search.Compile", trace.WithAttributes(attribute.String("entity", entity)))
	defer span.End()

	c, stmt, err := s.compile(ctx, user, entity, filters)
	if err != nil {
		recordError(span, err)
		return Statement{}, err
	}
	return s.render(ctx, c, stmt)
}

// Search compiles filters and runs the paged statement.
func (s *Service) Search(ctx context.Context, user auth.User, entity string, filters ir.IRObject, page Page) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "search.Search", trace.WithAttributes(attribute.String("entity", entity)))
	defer span.End()

	if s.exec == nil {
		return Result{}, ErrNoExecutor
	}

	c, stmt, err := s.compile(ctx, user, entity, filters)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}
	c.sel.Limit, c.sel.Offset = s.clamp(page)

	stmt, err = s.render(ctx, c, stmt)
	if err != nil {
		recordError(span, err)
		return Result{}, err
	}

	log := s.log.WithContext(ctx)
	rows, err := s.exec.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		log.Error().Err(err).Str("entity", entity).Str("hash", stmt.Hash).Msg("search failed")
		recordError(span, err)
		return Result{}, fmt.Errorf("%w: %s: %w", ErrQueryFailed, entity, err)
	}

	attrs := metric.WithAttributes(attribute.String("entity", entity))
	s.metrics.executed.Add(ctx, 1, attrs)
	s.metrics.rows.Record(ctx, int64(len(rows)), attrs)
	log.Debug().Str("entity", entity).Int("rows", len(rows)).Msg("search executed")

	return Result{Statement: stmt, Page: Page{Limit: c.sel.Limit, Offset: c.sel.Offset}, Rows: rows}, nil
}

// Validate checks access and the filter without emitting anything.
func (s *Service) Validate(ctx context.Context, user auth.User, entity string, filters ir.IRObject) error {
	model, err := s.authorize(user, entity)
	if err != nil {
		return err
	}
	if _, err := s.compiler.Prepare(model, filters); err != nil {
		s.rejected(ctx, entity, err)
		return err
	}
	return nil
}

func (s *Service) authorize(user auth.User, entity string) (*schema.Model, error) {
	model, ok := s.catalog.Entity(entity)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntity, entity)
	}
	if err := auth.NewGuard(user).RequireAbility(AbilityFor(entity), s.allowGuest); err != nil {
		return nil, err
	}
	return model, nil
}

// compile returns the unpaged select for filters, from cache when possible.
func (s *Service) compile(ctx context.Context, user auth.User, entity string, filters ir.IRObject) (compiled, Statement, error) {
	model, err := s.authorize(user, entity)
	if err != nil {
		return compiled{}, Statement{}, err
	}

	hash, err := ir.FilterHash(entity, filters)
	if err != nil {
		return compiled{}, Statement{}, fmt.Errorf("hash filter: %w", err)
	}
	stmt := Statement{Entity: entity, Hash: hash}

	if s.cache != nil {
		if c, ok := s.cache.Get(hash); ok {
			s.metrics.cacheHit.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
			stmt.Cached = true
			return c, stmt, nil
		}
	}

	// Non-empty filters go in one and-joined group.
	apply := s.compiler.ApplyOnQuery
	if len(filters) == 0 {
		apply = s.compiler.Apply
	}
	b := queryir.NewBuilder(model)
	if err := apply(b, filters); err != nil {
		s.rejected(ctx, entity, err)
		return compiled{}, Statement{}, err
	}

	sel := b.Select()
	c := compiled{sel: sel, warnings: queryir.Lint(sel).Warnings}
	if s.cache != nil {
		s.cache.Add(hash, c)
	}
	s.metrics.compiled.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
	return c, stmt, nil
}

func (s *Service) render(ctx context.Context, c compiled, stmt Statement) (Statement, error) {
	sql, args, err := s.sql.Compile(c.sel)
	if err != nil {
		return Statement{}, fmt.Errorf("render %s: %w", stmt.Entity, err)
	}
	stmt.SQL = sql
	stmt.Args = args
	stmt.Warnings = c.warnings

	s.log.WithContext(ctx).Debug().
		Str("entity", stmt.Entity).
		Str("hash", stmt.Hash).
		Bool("cached", stmt.Cached).
		Str("sql", sql).
		Msg("filter compiled")
	return stmt, nil
}

func (s *Service) rejected(ctx context.Context, entity string, err error) {
	verr, ok := filter.AsValidationError(err)
	if !ok {
		return
	}
	s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("code", verr.Code),
	))
	s.log.WithContext(ctx).Warn().
		Str("entity", entity).
		Str("field", verr.Field).
		Str("code", verr.Code).
		Msg(verr.Message)
}

func (s *Service) clamp(page Page) (limit, offset uint64) {
	limit = page.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if s.maxLimit > 0 && limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit, page.Offset
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
