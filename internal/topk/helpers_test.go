package topk

import (
	"github.com/janpfeifer/must"

	"github.com/born-ml/topk/internal/tensor"
)

// candidates builds an (n, c, h, w) float32 input where every element of
// candidate i equals i*100 + its offset inside the candidate.
func candidates(n, c, h, w int) *tensor.RawTensor {
	raw := must.M1(tensor.NewRaw(tensor.Shape{n, c, h, w}, tensor.Float32, tensor.CPU))
	data := raw.AsFloat32()
	size := c * h * w
	for i := range data {
		data[i] = float32((i/size)*100 + i%size)
	}
	return raw
}

func scores32(values ...float32) *tensor.RawTensor {
	raw := must.M1(tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU))
	copy(raw.AsFloat32(), values)
	return raw
}

func scores64(values ...float64) *tensor.RawTensor {
	raw := must.M1(tensor.NewRaw(tensor.Shape{len(values)}, tensor.Float64, tensor.CPU))
	copy(raw.AsFloat64(), values)
	return raw
}

func grad32(shape tensor.Shape, values ...float32) *tensor.RawTensor {
	raw := must.M1(tensor.NewRaw(shape, tensor.Float32, tensor.CPU))
	copy(raw.AsFloat32(), values)
	return raw
}

func indices64(values ...int64) *tensor.RawTensor {
	raw := must.M1(tensor.NewRaw(tensor.Shape{len(values), 1, 1, 1}, tensor.Int64, tensor.CPU))
	copy(raw.AsInt64(), values)
	return raw
}

func newSelector(opts ...Option) *Selector {
	return must.M1(New(opts...))
}

func planFor(input, scores *tensor.RawTensor, k int) Plan {
	return must.M1(Reshape(input.Shape(), scores.Shape(), tensor.Shape{k}, true))
}
