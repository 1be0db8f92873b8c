package topk

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/topk/internal/tensor"
)

// Backward routes upstream gradients on the K selected slots back to their
// original positions in a zero-initialized (originalCount, C, H, W) tensor.
//
// indices must be the tensor produced by the paired Forward call; top-K is
// never recomputed here.
//
// Example:
//
//	// indices = [1, 2], upstream = [1, 1], originalCount = 3
//	grad, err := sel.Backward(upstream, res.Indices, 3)
//	// grad = [0, 1, 1]
func (s *Selector) Backward(upstream, indices *tensor.RawTensor, originalCount int) (*tensor.RawTensor, error) {
	const op = "backward"

	if upstream == nil {
		return nil, newShapeError(op, "upstream", nil, "tensor is nil")
	}
	if originalCount < 0 {
		return nil, newShapeError(op, "upstream", upstream.Shape(), "negative candidate count %d", originalCount)
	}
	us := upstream.Shape()
	if us.Rank() != 4 {
		return nil, newShapeError(op, "upstream", us, "want rank 4 (K, C, H, W), got rank %d", us.Rank())
	}

	gradShape := tensor.Shape{originalCount, us[1], us[2], us[3]}
	grad, err := tensor.NewRaw(gradShape, upstream.DType(), s.cfg.backend.Device())
	if err != nil {
		return nil, errors.WithMessage(err, "topk backward: allocate gradient")
	}

	if err := s.BackwardInto(upstream, indices, grad); err != nil {
		return nil, err
	}
	return grad, nil
}

// BackwardInto scatters upstream into an engine-provided gradient buffer of
// shape (N0, C, H, W). With the Accumulate mode upstream rows are added to
// what grad already holds; with Overwrite the selected rows are replaced.
// Rows that were not selected are left untouched.
//
// Every index is validated before the first write, so an IndexError leaves
// grad unchanged.
func (s *Selector) BackwardInto(upstream, indices, grad *tensor.RawTensor) error {
	const op = "backward"

	if upstream == nil {
		return newShapeError(op, "upstream", nil, "tensor is nil")
	}
	if indices == nil {
		return newShapeError(op, "indices", nil, "tensor is nil; forward indices are required")
	}
	if grad == nil {
		return newShapeError(op, "grad", nil, "tensor is nil")
	}

	us, gs := upstream.Shape(), grad.Shape()
	if us.Rank() != 4 {
		return newShapeError(op, "upstream", us, "want rank 4 (K, C, H, W), got rank %d", us.Rank())
	}
	if gs.Rank() != 4 {
		return newShapeError(op, "grad", gs, "want rank 4 (N0, C, H, W), got rank %d", gs.Rank())
	}
	if !tensor.Shape(us[1:]).Equal(gs[1:]) {
		return newShapeError(op, "upstream", us, "candidate shape %v does not match gradient %v", us[1:], gs[1:])
	}
	k := us[0]
	if indices.NumElements() != k {
		return newShapeError(op, "indices", indices.Shape(), "want %d elements for %d upstream slots", k, k)
	}
	if !upstream.DType().IsFloat() {
		return dtypeError(op, "upstream", us, upstream.DType())
	}
	if grad.DType() != upstream.DType() {
		return newShapeError(op, "grad", gs, "dtype %s does not match upstream dtype %s", grad.DType(), upstream.DType())
	}

	rows, err := readIndices(indices, gs[0])
	if err != nil {
		return err
	}

	switch s.cfg.mode {
	case Overwrite:
		s.cfg.backend.ScatterRows(grad, upstream, rows)
	default:
		s.cfg.backend.ScatterAddRows(grad, upstream, rows)
	}

	klog.V(2).Infof("topk backward: scattered %d slots into %d candidates (%s)", k, gs[0], s.cfg.mode)
	return nil
}

// readIndices converts an index tensor to row positions, checking each one
// against [0, bound). Float indices must be integral.
func readIndices(indices *tensor.RawTensor, bound int) ([]int, error) {
	if err := checkIndexCapacity("backward", indices, bound); err != nil {
		return nil, err
	}
	rows := make([]int, indices.NumElements())

	check := func(r int, v float64) error {
		if v < 0 || v >= float64(bound) || v != math.Trunc(v) {
			return errors.WithStack(&IndexError{Rank: r, Value: v, Bound: bound})
		}
		rows[r] = int(v)
		return nil
	}

	var err error
	switch indices.DType() {
	case tensor.Int64:
		for r, v := range indices.AsInt64() {
			if err = check(r, float64(v)); err != nil {
				return nil, err
			}
		}
	case tensor.Int32:
		for r, v := range indices.AsInt32() {
			if err = check(r, float64(v)); err != nil {
				return nil, err
			}
		}
	case tensor.Float32:
		for r, v := range indices.AsFloat32() {
			if err = check(r, float64(v)); err != nil {
				return nil, err
			}
		}
	case tensor.Float64:
		for r, v := range indices.AsFloat64() {
			if err = check(r, v); err != nil {
				return nil, err
			}
		}
	default:
		return nil, dtypeError("backward", "indices", indices.Shape(), indices.DType())
	}
	return rows, nil
}
