package topk

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/topk/internal/tensor"
)

// Selector runs top-K forward selection and backward scatter.
//
// A Selector holds configuration only; it keeps no state between calls and
// is safe for concurrent use. Forward and Backward are paired by the index
// tensor the caller threads from one to the other.
type Selector struct {
	cfg config
}

// Result is the output of one forward call. Ownership of both tensors passes
// to the caller.
type Result struct {
	Selected *tensor.RawTensor // (K, C, H, W), same dtype as the input
	Indices  *tensor.RawTensor // (K, 1, 1, 1), original candidate positions
}

// New creates a Selector.
//
// Example:
//
//	sel, err := topk.New(topk.WithAlgorithm(topk.SortSelection))
func New(opts ...Option) (*Selector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.WithMessage(err, "topk: invalid option")
		}
	}
	return &Selector{cfg: cfg}, nil
}

// Backend returns the backend running the kernels.
func (s *Selector) Backend() tensor.Backend {
	return s.cfg.backend
}

// Forward selects the plan.K best candidates of input ranked by scores and
// allocates the selected and index tensors.
//
// Indices are always produced, even when the plan did not request them, so
// that Backward can be paired with this call.
func (s *Selector) Forward(plan Plan, input, scores *tensor.RawTensor) (*Result, error) {
	if err := s.checkForwardInputs(plan, input, scores); err != nil {
		return nil, err
	}

	device := s.cfg.backend.Device()
	selected, err := tensor.NewRaw(plan.Selected, input.DType(), device)
	if err != nil {
		return nil, errors.WithMessage(err, "topk forward: allocate selected")
	}
	indices, err := tensor.NewRaw(plan.IndexShape(), s.cfg.indexDType, device)
	if err != nil {
		return nil, errors.WithMessage(err, "topk forward: allocate indices")
	}

	if err := s.ForwardInto(plan, input, scores, selected, indices); err != nil {
		return nil, err
	}
	return &Result{Selected: selected, Indices: indices}, nil
}

// ForwardInto writes the selection into engine-provided buffers.
//
// selected must have shape plan.Selected and the input's dtype. indices may
// be nil; otherwise it must hold plan.K elements of a numeric dtype.
// Inputs are never mutated.
func (s *Selector) ForwardInto(plan Plan, input, scores, selected, indices *tensor.RawTensor) error {
	const op = "forward"

	if err := s.checkForwardInputs(plan, input, scores); err != nil {
		return err
	}
	if selected == nil {
		return newShapeError(op, "selected", nil, "output buffer is nil")
	}
	if !selected.Shape().Equal(plan.Selected) {
		return newShapeError(op, "selected", selected.Shape(), "want %v", plan.Selected)
	}
	if selected.DType() != input.DType() {
		return newShapeError(op, "selected", selected.Shape(), "dtype %s does not match input dtype %s",
			selected.DType(), input.DType())
	}
	if indices != nil {
		if indices.NumElements() != plan.K {
			return newShapeError(op, "indices", indices.Shape(), "want %d elements", plan.K)
		}
		if err := checkIndexCapacity(op, indices, plan.Candidates); err != nil {
			return err
		}
	}

	values, ok := decodeScores(scores)
	if !ok {
		return dtypeError(op, "scores", scores.Shape(), scores.DType())
	}
	if nan := countNaN(values); nan > 0 {
		klog.Warningf("topk forward: %d of %d scores are NaN, ranking them last", nan, len(values))
	}

	rows := selectTopK(values, plan.K, s.cfg.algorithm)
	klog.V(3).Infof("topk forward: algorithm=%s selected rows %v", s.cfg.algorithm, rows)

	s.cfg.backend.GatherRows(selected, input, rows)
	if indices != nil {
		writeIndices(indices, rows)
	}

	klog.V(2).Infof("topk forward: selected %d of %d candidates", plan.K, plan.Candidates)
	return nil
}

func (s *Selector) checkForwardInputs(plan Plan, input, scores *tensor.RawTensor) error {
	const op = "forward"

	if input == nil {
		return newShapeError(op, "input", nil, "tensor is nil")
	}
	if scores == nil {
		return newShapeError(op, "scores", nil, "tensor is nil")
	}
	if plan.Input == nil {
		return newShapeError(op, "input", input.Shape(), "plan was not produced by Reshape")
	}
	if err := checkPlan(plan); err != nil {
		return err
	}
	if !input.Shape().Equal(plan.Input) {
		return newShapeError(op, "input", input.Shape(), "does not match planned shape %v", plan.Input)
	}
	if scores.Shape().Rank() < 1 || scores.Shape()[0] != plan.Candidates || scores.NumElements() != plan.Candidates {
		return newShapeError(op, "scores", scores.Shape(), "want one score for each of %d candidates", plan.Candidates)
	}
	return nil
}

// checkPlan rejects a Plan whose fields disagree with each other.
func checkPlan(plan Plan) error {
	const op = "forward"

	in := plan.Input
	if in.Rank() != 4 {
		return newShapeError(op, "plan", in, "planned input must be rank 4, got rank %d", in.Rank())
	}
	if plan.Candidates != in[0] {
		return newShapeError(op, "plan", in, "candidate count %d does not match input", plan.Candidates)
	}
	if plan.K < 0 || plan.K > plan.Candidates {
		return newShapeError(op, "plan", in, "cannot select K=%d from %d candidates", plan.K, plan.Candidates)
	}
	if want := (tensor.Shape{plan.K, in[1], in[2], in[3]}); !plan.Selected.Equal(want) {
		return newShapeError(op, "plan", plan.Selected, "planned selected shape must be %v", want)
	}
	if plan.Indices != nil && !plan.Indices.Equal(plan.IndexShape()) {
		return newShapeError(op, "plan", plan.Indices, "planned index shape must be %v", plan.IndexShape())
	}
	return nil
}

// maxIndexCandidates returns the largest candidate count whose positions dt
// stores exactly, or 0 if dt cannot hold indices.
func maxIndexCandidates(dt tensor.DataType) int {
	switch dt {
	case tensor.Int64, tensor.Float64:
		return math.MaxInt
	case tensor.Int32:
		return math.MaxInt32
	case tensor.Float32:
		return 1 << 24
	default:
		return 0
	}
}

// isIndexDType reports whether dt can hold candidate positions at all.
func isIndexDType(dt tensor.DataType) bool {
	return maxIndexCandidates(dt) > 0
}

// checkIndexCapacity rejects index dtypes that would round or truncate a
// position in [0, candidates).
func checkIndexCapacity(op string, indices *tensor.RawTensor, candidates int) error {
	dt := indices.DType()
	if !isIndexDType(dt) {
		return dtypeError(op, "indices", indices.Shape(), dt)
	}
	if limit := maxIndexCandidates(dt); candidates > limit {
		return newDTypeError(op, "indices", indices.Shape(),
			"%s cannot address %d candidates exactly (limit %d)", dt, candidates, limit)
	}
	return nil
}

// writeIndices stores rows into an index tensor.
func writeIndices(dst *tensor.RawTensor, rows []int) {
	switch dst.DType() {
	case tensor.Int64:
		data := dst.AsInt64()
		for r, row := range rows {
			data[r] = int64(row)
		}
	case tensor.Int32:
		data := dst.AsInt32()
		for r, row := range rows {
			data[r] = int32(row) //nolint:gosec // bounded by checkIndexCapacity
		}
	case tensor.Float32:
		data := dst.AsFloat32()
		for r, row := range rows {
			data[r] = float32(row)
		}
	case tensor.Float64:
		data := dst.AsFloat64()
		for r, row := range rows {
			data[r] = float64(row)
		}
	default:
		panic("writeIndices: unsupported dtype " + dst.DType().String())
	}
}
