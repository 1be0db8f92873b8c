package topk

import (
	"context"

	"github.com/pkg/errors"

	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/tensor"
)

// Problem is one independent candidate set for ForwardBatch.
type Problem struct {
	Plan   Plan
	Input  *tensor.RawTensor
	Scores *tensor.RawTensor
}

// ForwardBatch runs Forward on independent problems concurrently, bounded by
// the Selector's parallel configuration. Results are returned in problem
// order. The first failure cancels problems that have not started yet.
func (s *Selector) ForwardBatch(ctx context.Context, problems []Problem) ([]*Result, error) {
	results := make([]*Result, len(problems))

	err := parallel.Do(ctx, len(problems), s.cfg.parallel, func(_ context.Context, i int) error {
		p := problems[i]
		res, err := s.Forward(p.Plan, p.Input, p.Scores)
		if err != nil {
			return errors.WithMessagef(err, "problem %d", i)
		}
		results[i] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
