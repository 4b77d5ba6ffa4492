package search

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Descriptor defines metadata used when registering instruments.
type Descriptor struct {
	Description string
	Unit        string
}

var descriptors = map[string]Descriptor{
	"sieve.filter.compiled":  {Description: "Filters compiled to a statement", Unit: "{filter}"},
	"sieve.filter.rejected":  {Description: "Filters rejected by validation", Unit: "{filter}"},
	"sieve.filter.cache_hit": {Description: "Compilations served from the statement cache", Unit: "{filter}"},
	"sieve.search.executed":  {Description: "Statements executed against the store", Unit: "{query}"},
	"sieve.search.rows":      {Description: "Rows returned by searches", Unit: "{row}"},
}

type instruments struct {
	compiled metric.Int64Counter
	rejected metric.Int64Counter
	cacheHit metric.Int64Counter
	executed metric.Int64Counter
	rows     metric.Int64Histogram
}

func registerInt64Counter(m metric.Meter, name string) (metric.Int64Counter, error) {
	d := descriptors[name]
	counter, err := m.Int64Counter(name, metric.WithDescription(d.Description), metric.WithUnit(d.Unit))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s counter: %w", name, err)
	}
	return counter, nil
}

func newInstruments(m metric.Meter) (*instruments, error) {
	var (
		in  instruments
		err error
	)
	if in.compiled, err = registerInt64Counter(m, "sieve.filter.compiled"); err != nil {
		return nil, err
	}
	if in.rejected, err = registerInt64Counter(m, "sieve.filter.rejected"); err != nil {
		return nil, err
	}
	if in.cacheHit, err = registerInt64Counter(m, "sieve.filter.cache_hit"); err != nil {
		return nil, err
	}
	if in.executed, err = registerInt64Counter(m, "sieve.search.executed"); err != nil {
		return nil, err
	}
	d := descriptors["sieve.search.rows"]
	if in.rows, err = m.Int64Histogram("sieve.search.rows", metric.WithDescription(d.Description), metric.WithUnit(d.Unit)); err != nil {
		return nil, fmt.Errorf("failed to create sieve.search.rows histogram: %w", err)
	}
	return &in, nil
}
