package topk

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/topk/internal/tensor"
)

// Plan holds the shapes resolved before any buffer is allocated.
type Plan struct {
	Candidates int          // N0: leading dimension of the input
	K          int          // Number of candidates to select
	Input      tensor.Shape // (N0, C, H, W)
	Selected   tensor.Shape // (K, C, H, W)
	Indices    tensor.Shape // (K, 1, 1, 1), nil unless requested
}

// SliceSize returns the number of elements in one candidate, C*H*W.
func (p Plan) SliceSize() int {
	return p.Input.RowSize()
}

// WantIndices reports whether the caller asked for the index output.
func (p Plan) WantIndices() bool {
	return p.Indices != nil
}

// IndexShape returns the (K, 1, 1, 1) index shape regardless of whether the
// index output was requested.
func (p Plan) IndexShape() tensor.Shape {
	return tensor.Shape{p.K, 1, 1, 1}
}

// Reshape resolves output shapes from the input, score and K-source shapes.
//
// K is the leading dimension of kSource. The input must be 4-D; the score
// tensor must provide exactly one score per candidate.
//
// Example:
//
//	plan, err := topk.Reshape(Shape{3, 2, 1, 1}, Shape{3}, Shape{2}, true)
//	// plan.Selected = [2 2 1 1], plan.Indices = [2 1 1 1]
func Reshape(input, scores, kSource tensor.Shape, wantIndices bool) (Plan, error) {
	const op = "reshape"

	if err := checkDims(op, "input", input); err != nil {
		return Plan{}, err
	}
	if input.Rank() != 4 {
		return Plan{}, newShapeError(op, "input", input, "want rank 4 (N, C, H, W), got rank %d", input.Rank())
	}
	n0 := input[0]

	if err := checkDims(op, "scores", scores); err != nil {
		return Plan{}, err
	}
	if scores.Rank() < 1 {
		return Plan{}, newShapeError(op, "scores", scores, "want rank >= 1")
	}
	if scores[0] != n0 {
		return Plan{}, newShapeError(op, "scores", scores, "leading dimension %d does not match %d candidates", scores[0], n0)
	}
	if scores.NumElements() != n0 {
		return Plan{}, newShapeError(op, "scores", scores, "want one score per candidate, got %d scores for %d candidates",
			scores.NumElements(), n0)
	}

	if err := checkDims(op, "k_source", kSource); err != nil {
		return Plan{}, err
	}
	if kSource.Rank() < 1 {
		return Plan{}, newShapeError(op, "k_source", kSource, "want rank >= 1 to carry K in its leading dimension")
	}
	k := kSource[0]
	if k > n0 {
		return Plan{}, newShapeError(op, "k_source", kSource, "cannot select K=%d from %d candidates", k, n0)
	}

	plan := Plan{
		Candidates: n0,
		K:          k,
		Input:      input.Clone(),
		Selected:   tensor.Shape{k, input[1], input[2], input[3]},
	}
	if wantIndices {
		plan.Indices = plan.IndexShape()
	}

	klog.V(2).Infof("topk reshape: input=%v k=%d selected=%v indices=%v", input, k, plan.Selected, plan.Indices)
	return plan, nil
}

func checkDims(op, arg string, s tensor.Shape) error {
	if err := s.Validate(); err != nil {
		return newShapeError(op, arg, s, "%v", err)
	}
	return nil
}
