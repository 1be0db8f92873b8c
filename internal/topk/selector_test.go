package topk

import (
	"bytes"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/topk/internal/backend/cpu"
	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/tensor"
)

var algorithms = []Algorithm{HeapSelection, SortSelection}

func TestForward_ConcreteScenario(t *testing.T) {
	for _, algo := range algorithms {
		t.Run(algo.String(), func(t *testing.T) {
			input := candidates(3, 2, 1, 1)
			scores := scores32(0.1, 0.9, 0.5)
			plan := planFor(input, scores, 2)

			res, err := newSelector(WithAlgorithm(algo)).Forward(plan, input, scores)
			require.NoError(t, err)

			assert.Equal(t, tensor.Shape{2, 2, 1, 1}, res.Selected.Shape())
			assert.Equal(t, tensor.Shape{2, 1, 1, 1}, res.Indices.Shape())
			assert.Equal(t, []int64{1, 2}, res.Indices.AsInt64())
			assert.Equal(t, []float32{100, 101, 200, 201}, res.Selected.AsFloat32())
		})
	}
}

func TestForward_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 50; trial++ {
		n0 := 1 + rng.IntN(40)
		k := rng.IntN(n0 + 1)

		// Few distinct values so ties are common.
		values := make([]float32, n0)
		for i := range values {
			values[i] = float32(rng.IntN(5))
		}
		input := candidates(n0, 2, 2, 1)
		scores := scores32(values...)
		plan := planFor(input, scores, k)

		for _, algo := range algorithms {
			res, err := newSelector(WithAlgorithm(algo)).Forward(plan, input, scores)
			require.NoError(t, err)

			idx := res.Indices.AsInt64()
			require.Len(t, idx, k)

			seen := make(map[int64]bool, k)
			size := plan.SliceSize()
			for r, i := range idx {
				require.GreaterOrEqual(t, i, int64(0))
				require.Less(t, i, int64(n0))
				require.False(t, seen[i], "duplicate index %d", i)
				seen[i] = true

				assert.Equal(t, input.AsFloat32()[int(i)*size:(int(i)+1)*size],
					res.Selected.AsFloat32()[r*size:(r+1)*size], "rank %d", r)

				if r > 0 {
					prev := idx[r-1]
					require.GreaterOrEqual(t, values[prev], values[i], "scores must not increase")
					if values[prev] == values[i] {
						require.Less(t, prev, i, "ties must prefer the smaller index")
					}
				}
			}
		}
	}
}

func TestForward_HeapMatchesSort(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	values := make([]float64, 200)
	for i := range values {
		switch rng.IntN(10) {
		case 0:
			values[i] = math.NaN()
		case 1:
			values[i] = math.Inf(-1)
		default:
			values[i] = float64(rng.IntN(20)) / 4
		}
	}

	for _, k := range []int{0, 1, 7, 100, 199, 200} {
		h := selectTopK(values, k, HeapSelection)
		s := selectTopK(values, k, SortSelection)
		assert.Equal(t, s, h, "k=%d", k)
	}
}

func TestForward_Deterministic(t *testing.T) {
	input := candidates(6, 1, 2, 2)
	scores := scores32(1, 3, 3, 0, 3, 1)
	plan := planFor(input, scores, 4)
	sel := newSelector()

	first, err := sel.Forward(plan, input, scores)
	require.NoError(t, err)
	second, err := sel.Forward(plan, input, scores)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 4, 0}, first.Indices.AsInt64())
	assert.Equal(t, first.Indices.AsInt64(), second.Indices.AsInt64())
	assert.Equal(t, first.Selected.AsFloat32(), second.Selected.AsFloat32())
}

func TestForward_NaNRanksLast(t *testing.T) {
	nan := float32(math.NaN())
	negInf := float32(math.Inf(-1))

	tests := []struct {
		name   string
		scores []float32
		k      int
		want   []int64
	}{
		{"nan below negative infinity", []float32{nan, 1, negInf, nan}, 3, []int64{1, 2, 0}},
		{"nan ties by index", []float32{nan, 1, negInf, nan}, 4, []int64{1, 2, 0, 3}},
		{"all nan", []float32{nan, nan, nan}, 2, []int64{0, 1}},
		{"nan never beats a real number", []float32{nan, -1e30, nan}, 1, []int64{1}},
	}

	for _, tt := range tests {
		for _, algo := range algorithms {
			t.Run(tt.name+"/"+algo.String(), func(t *testing.T) {
				input := candidates(len(tt.scores), 1, 1, 1)
				scores := scores32(tt.scores...)

				res, err := newSelector(WithAlgorithm(algo)).Forward(planFor(input, scores, tt.k), input, scores)
				require.NoError(t, err)
				assert.Equal(t, tt.want, res.Indices.AsInt64())
			})
		}
	}
}

func TestForward_KZero(t *testing.T) {
	input := candidates(3, 2, 1, 1)
	scores := scores32(0.1, 0.9, 0.5)

	res, err := newSelector().Forward(planFor(input, scores, 0), input, scores)
	require.NoError(t, err)

	assert.Equal(t, tensor.Shape{0, 2, 1, 1}, res.Selected.Shape())
	assert.Equal(t, 0, res.Selected.NumElements())
	assert.Empty(t, res.Indices.AsInt64())
}

func TestForward_KEqualsCandidates(t *testing.T) {
	input := candidates(4, 1, 1, 2)
	scores := scores64(0.5, -2, 7, 0.5)

	res, err := newSelector().Forward(planFor(input, scores, 4), input, scores)
	require.NoError(t, err)

	assert.Equal(t, []int64{2, 0, 3, 1}, res.Indices.AsInt64())
	assert.Equal(t, []float32{200, 201, 0, 1, 300, 301, 100, 101}, res.Selected.AsFloat32())
}

func TestForward_DoesNotMutateInputs(t *testing.T) {
	input := candidates(5, 2, 1, 1)
	scores := scores32(5, 4, 3, 2, 1)
	inputBefore := bytes.Clone(input.Data())
	scoresBefore := bytes.Clone(scores.Data())

	_, err := newSelector().Forward(planFor(input, scores, 3), input, scores)
	require.NoError(t, err)

	assert.Equal(t, inputBefore, input.Data())
	assert.Equal(t, scoresBefore, scores.Data())
}

func TestForward_IndicesAlwaysProduced(t *testing.T) {
	input := candidates(3, 1, 1, 1)
	scores := scores32(1, 2, 3)
	plan := must.M1(Reshape(input.Shape(), scores.Shape(), tensor.Shape{2}, false))

	res, err := newSelector().Forward(plan, input, scores)
	require.NoError(t, err)
	assert.Nil(t, plan.Indices)
	assert.Equal(t, []int64{2, 1}, res.Indices.AsInt64())
}

func TestForward_IndexDType(t *testing.T) {
	input := candidates(3, 1, 1, 1)
	scores := scores32(0.1, 0.9, 0.5)

	res, err := newSelector(WithIndexDType(tensor.Float32)).Forward(planFor(input, scores, 2), input, scores)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, res.Indices.DType())
	assert.Equal(t, []float32{1, 2}, res.Indices.AsFloat32())
}

func TestForwardInto(t *testing.T) {
	input := candidates(3, 2, 1, 1)
	scores := scores32(0.1, 0.9, 0.5)
	plan := planFor(input, scores, 2)
	sel := newSelector()

	t.Run("engine buffers", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Float32, tensor.CPU))
		indices := must.M1(tensor.NewRaw(plan.Indices, tensor.Int32, tensor.CPU))

		require.NoError(t, sel.ForwardInto(plan, input, scores, selected, indices))
		assert.Equal(t, []int32{1, 2}, indices.AsInt32())
		assert.Equal(t, []float32{100, 101, 200, 201}, selected.AsFloat32())
	})

	t.Run("no index output", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Float32, tensor.CPU))

		require.NoError(t, sel.ForwardInto(plan, input, scores, selected, nil))
		assert.Equal(t, []float32{100, 101, 200, 201}, selected.AsFloat32())
	})

	t.Run("wrong selected shape", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(tensor.Shape{3, 2, 1, 1}, tensor.Float32, tensor.CPU))

		err := sel.ForwardInto(plan, input, scores, selected, nil)
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("wrong selected dtype", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Float64, tensor.CPU))

		err := sel.ForwardInto(plan, input, scores, selected, nil)
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("wrong index size", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Float32, tensor.CPU))
		indices := must.M1(tensor.NewRaw(tensor.Shape{3, 1, 1, 1}, tensor.Int64, tensor.CPU))

		err := sel.ForwardInto(plan, input, scores, selected, indices)
		require.ErrorIs(t, err, ErrShape)
	})

	t.Run("bool index buffer", func(t *testing.T) {
		selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Float32, tensor.CPU))
		indices := must.M1(tensor.NewRaw(plan.Indices, tensor.Bool, tensor.CPU))

		err := sel.ForwardInto(plan, input, scores, selected, indices)
		require.ErrorIs(t, err, ErrDType)
		require.ErrorIs(t, err, ErrShape)
	})
}

func TestForward_ShapeErrors(t *testing.T) {
	input := candidates(3, 1, 1, 1)
	scores := scores32(1, 2, 3)
	plan := planFor(input, scores, 2)
	sel := newSelector()

	_, err := sel.Forward(plan, candidates(4, 1, 1, 1), scores32(1, 2, 3, 4))
	require.ErrorIs(t, err, ErrShape)

	_, err = sel.Forward(plan, input, scores32(1, 2))
	require.ErrorIs(t, err, ErrShape)

	_, err = sel.Forward(Plan{}, input, scores)
	require.ErrorIs(t, err, ErrShape)

	_, err = sel.Forward(plan, nil, scores)
	require.ErrorIs(t, err, ErrShape)
}

func TestForward_BoolScores(t *testing.T) {
	input := candidates(2, 1, 1, 1)
	scores := must.M1(tensor.NewRaw(tensor.Shape{2}, tensor.Bool, tensor.CPU))

	_, err := newSelector().Forward(planFor(input, scores, 1), input, scores)
	require.ErrorIs(t, err, ErrDType)

	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "scores", shapeErr.Arg)
}

func TestForward_IntegerScores(t *testing.T) {
	input := candidates(4, 1, 1, 1)
	scores := must.M1(tensor.NewRaw(tensor.Shape{4, 1}, tensor.Int32, tensor.CPU))
	copy(scores.AsInt32(), []int32{-3, 8, 8, 2})

	res, err := newSelector().Forward(planFor(input, scores, 3), input, scores)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.Indices.AsInt64())
}

func TestForward_Float16(t *testing.T) {
	input := must.M1(tensor.NewRaw(tensor.Shape{3, 1, 1, 2}, tensor.Float16, tensor.CPU))
	for i, v := range []float32{1, 2, 3, 4, 5, 6} {
		input.AsFloat16()[i] = float16.Fromfloat32(v)
	}
	scores := must.M1(tensor.NewRaw(tensor.Shape{3}, tensor.Float16, tensor.CPU))
	for i, v := range []float32{0.25, 0.75, 0.5} {
		scores.AsFloat16()[i] = float16.Fromfloat32(v)
	}

	res, err := newSelector().Forward(planFor(input, scores, 2), input, scores)
	require.NoError(t, err)

	assert.Equal(t, tensor.Float16, res.Selected.DType())
	assert.Equal(t, []int64{1, 2}, res.Indices.AsInt64())
	got := make([]float32, 0, 4)
	for _, v := range res.Selected.AsFloat16() {
		got = append(got, v.Float32())
	}
	assert.Equal(t, []float32{3, 4, 5, 6}, got)
}

func TestForward_ParallelGather(t *testing.T) {
	backend := cpu.NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})
	n0 := 300
	values := make([]float32, n0)
	for i := range values {
		values[i] = float32((i * 37) % n0)
	}
	input := candidates(n0, 3, 1, 1)
	scores := scores32(values...)

	par, err := newSelector(WithBackend(backend)).Forward(planFor(input, scores, 250), input, scores)
	require.NoError(t, err)
	seq, err := newSelector(WithBackend(cpu.NewWithConfig(parallel.Sequential()))).Forward(planFor(input, scores, 250), input, scores)
	require.NoError(t, err)

	assert.Equal(t, seq.Indices.AsInt64(), par.Indices.AsInt64())
	assert.Equal(t, seq.Selected.AsFloat32(), par.Selected.AsFloat32())
}

func TestForward_InconsistentPlan(t *testing.T) {
	input := candidates(3, 2, 1, 1)
	scores := scores32(0.1, 0.9, 0.5)

	tests := []struct {
		name string
		plan Plan
	}{
		{"k above candidates", Plan{Candidates: 3, K: 5, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{5, 2, 1, 1}}},
		{"negative k", Plan{Candidates: 3, K: -1, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{-1, 2, 1, 1}}},
		{"selected row shape", Plan{Candidates: 3, K: 2, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{2, 1, 1, 1}}},
		{"selected count", Plan{Candidates: 3, K: 2, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{3, 2, 1, 1}}},
		{"candidate count", Plan{Candidates: 2, K: 2, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{2, 2, 1, 1}}},
		{"index shape", Plan{Candidates: 3, K: 2, Input: tensor.Shape{3, 2, 1, 1}, Selected: tensor.Shape{2, 2, 1, 1}, Indices: tensor.Shape{3, 1, 1, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := newSelector()

			require.NotPanics(t, func() {
				_, err := sel.Forward(tt.plan, input, scores)
				assert.ErrorIs(t, err, ErrShape)
			})

			selected := must.M1(tensor.NewRaw(tensor.Shape{2, 1, 1, 1}, tensor.Float32, tensor.CPU))
			require.NotPanics(t, func() {
				err := sel.ForwardInto(tt.plan, input, scores, selected, nil)
				assert.ErrorIs(t, err, ErrShape)
			})
		})
	}
}

func TestCheckIndexCapacity(t *testing.T) {
	tests := []struct {
		dtype      tensor.DataType
		candidates int
		wantErr    bool
	}{
		{tensor.Float32, 1 << 24, false},
		{tensor.Float32, 1<<24 + 1, true},
		{tensor.Int32, maxIndexCandidates(tensor.Int32), false},
		{tensor.Int32, maxIndexCandidates(tensor.Int32) + 1, true},
		{tensor.Int64, 1<<24 + 1, false},
		{tensor.Float64, 1<<24 + 1, false},
		{tensor.Uint8, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.dtype.String(), func(t *testing.T) {
			indices := must.M1(tensor.NewRaw(tensor.Shape{1, 1, 1, 1}, tt.dtype, tensor.CPU))

			err := checkIndexCapacity("forward", indices, tt.candidates)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrDType)
			require.ErrorIs(t, err, ErrShape)
		})
	}
}

func TestForward_Float32IndicesTooManyCandidates(t *testing.T) {
	n0 := 1<<24 + 1
	// Zero-width candidates keep the input empty; only the scores occupy memory.
	input := must.M1(tensor.NewRaw(tensor.Shape{n0, 0, 1, 1}, tensor.Uint8, tensor.CPU))
	scores := must.M1(tensor.NewRaw(tensor.Shape{n0}, tensor.Uint8, tensor.CPU))
	plan := planFor(input, scores, 1)

	_, err := newSelector(WithIndexDType(tensor.Float32)).Forward(plan, input, scores)
	require.ErrorIs(t, err, ErrDType)

	selected := must.M1(tensor.NewRaw(plan.Selected, tensor.Uint8, tensor.CPU))
	indices := must.M1(tensor.NewRaw(plan.IndexShape(), tensor.Float32, tensor.CPU))
	err = newSelector().ForwardInto(plan, input, scores, selected, indices)
	require.ErrorIs(t, err, ErrDType)
}
