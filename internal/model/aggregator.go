package model

import "context"

// Correlator defines the interface of a correlation engine, allowing the query
// service to run correlations without depending on the concrete manager.
type Correlator interface {
	// Run performs one full correlation pass and returns its report.
	Run(ctx context.Context) (*Report, error)
}
