package matching

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sells-group/company-qualifier/internal/model"
)

// DefaultMaxConcurrent is the semaphore capacity when none is configured.
const DefaultMaxConcurrent = 10

// Service holds the matching dependencies shared by every request: the
// interpreter cache, the evaluator and the semaphore bounding in-flight
// evaluations across all batches. Construct one per process.
type Service struct {
	interpreter *Interpreter
	evaluator   *Evaluator
	sem         *semaphore.Weighted
	capacity    int
}

// NewService creates a Service. A non-positive maxConcurrent selects
// DefaultMaxConcurrent.
func NewService(caller Completer, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Service{
		interpreter: NewInterpreter(caller),
		evaluator:   NewEvaluator(caller),
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		capacity:    maxConcurrent,
	}
}

// Interpreter returns the shared criteria interpreter.
func (s *Service) Interpreter() *Interpreter { return s.interpreter }

// Semaphore returns the process-wide concurrency limiter.
func (s *Service) Semaphore() *semaphore.Weighted { return s.sem }

// Capacity reports the semaphore capacity.
func (s *Service) Capacity() int { return s.capacity }

// ResolveCriteria interprets criteria, falling back to evaluating against
// all company data when interpretation fails. It returns nil only for
// blank criteria.
func (s *Service) ResolveCriteria(ctx context.Context, criteria string) *model.CriteriaInfo {
	info, err := s.interpreter.Interpret(ctx, criteria)
	switch {
	case err == nil:
		return info
	case errors.Is(err, ErrEmptyCriteria):
		return nil
	default:
		zap.L().Warn("matching: criteria interpretation failed, using all fields", zap.Error(err))
		return model.AllFieldsCriteria(criteria)
	}
}

// Evaluate scores data against info.
func (s *Service) Evaluate(ctx context.Context, info *model.CriteriaInfo, data map[string]any) model.MatchResult {
	return s.evaluator.Evaluate(ctx, info, data)
}
