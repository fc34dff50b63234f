// Package qualify runs single and batch company qualification: retrieval,
// criteria interpretation, evaluation and delivery.
package qualify

import "time"

// Options holds the batch limits and timing constants.
type Options struct {
	// BatchSize is the chunk width used when a request does not set one.
	BatchSize int
	// MaxBatch is the largest accepted org-number list.
	MaxBatch int

	RetrievalTimeout  time.Duration
	EvaluationTimeout time.Duration
	// ChunkPause separates consecutive chunks.
	ChunkPause time.Duration

	// PerCompany, MinDeadline and MaxDeadline define the overall batch
	// deadline: clamp(n*PerCompany, MinDeadline, MaxDeadline).
	PerCompany  time.Duration
	MinDeadline time.Duration
	MaxDeadline time.Duration

	// CallbackURL receives batch results when the request names none.
	CallbackURL string
}

// DefaultOptions returns the production limits.
func DefaultOptions() Options {
	return Options{
		BatchSize:         5,
		MaxBatch:          100,
		RetrievalTimeout:  120 * time.Second,
		EvaluationTimeout: 60 * time.Second,
		ChunkPause:        500 * time.Millisecond,
		PerCompany:        300 * time.Second,
		MinDeadline:       600 * time.Second,
		MaxDeadline:       7200 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultOptions. ChunkPause is kept
// as given so tests can disable pacing.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxBatch <= 0 {
		o.MaxBatch = d.MaxBatch
	}
	if o.RetrievalTimeout <= 0 {
		o.RetrievalTimeout = d.RetrievalTimeout
	}
	if o.EvaluationTimeout <= 0 {
		o.EvaluationTimeout = d.EvaluationTimeout
	}
	if o.ChunkPause < 0 {
		o.ChunkPause = 0
	}
	if o.PerCompany <= 0 {
		o.PerCompany = d.PerCompany
	}
	if o.MinDeadline <= 0 {
		o.MinDeadline = d.MinDeadline
	}
	if o.MaxDeadline <= 0 {
		o.MaxDeadline = d.MaxDeadline
	}
	return o
}
