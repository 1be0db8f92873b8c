package cpu

import (
	"fmt"

	"github.com/x448/float16"
	"golang.org/x/exp/constraints"

	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/tensor"
)

// GatherRows copies src row rows[r] into dst row r.
//
// Rows are copied as raw bytes, so any dtype works as long as dst and src
// agree. Distinct destination rows allow the copy to fan out.
//
// Example:
//
//	src:  [[1, 2], [3, 4], [5, 6]]
//	rows: [2, 0]
//	dst:  [[5, 6], [1, 2]]
func (cpu *CPUBackend) GatherRows(dst, src *tensor.RawTensor, rows []int) {
	checkRows("gather", dst, src, rows, len(rows), src.Shape()[0])

	cpu.forRows(len(rows), src.Shape().RowSize(), func(r int) {
		copy(dst.Row(r), src.Row(rows[r]))
	})
}

// ScatterRows copies src row r into dst row rows[r].
func (cpu *CPUBackend) ScatterRows(dst, src *tensor.RawTensor, rows []int) {
	checkRows("scatter", src, dst, rows, len(rows), dst.Shape()[0])

	// Sequential: repeated rows must resolve to the last write.
	for r, row := range rows {
		copy(dst.Row(row), src.Row(r))
	}
}

// ScatterAddRows adds src row r into dst row rows[r].
// Repeated rows accumulate in rank order.
func (cpu *CPUBackend) ScatterAddRows(dst, src *tensor.RawTensor, rows []int) {
	checkRows("scatter-add", src, dst, rows, len(rows), dst.Shape()[0])

	rowSize := dst.Shape().RowSize()
	switch dst.DType() {
	case tensor.Float32:
		scatterAdd(dst.AsFloat32(), src.AsFloat32(), rows, rowSize)
	case tensor.Float64:
		scatterAdd(dst.AsFloat64(), src.AsFloat64(), rows, rowSize)
	case tensor.Float16:
		scatterAddFloat16(dst.AsFloat16(), src.AsFloat16(), rows, rowSize)
	case tensor.Int32:
		scatterAdd(dst.AsInt32(), src.AsInt32(), rows, rowSize)
	case tensor.Int64:
		scatterAdd(dst.AsInt64(), src.AsInt64(), rows, rowSize)
	case tensor.Uint8:
		scatterAdd(dst.AsUint8(), src.AsUint8(), rows, rowSize)
	default:
		panic(fmt.Sprintf("scatter-add: unsupported dtype %s", dst.DType()))
	}
}

// forRows fans out over rows only when the copied volume is worth it.
func (cpu *CPUBackend) forRows(n, rowSize int, f func(r int)) {
	cfg := cpu.parallel
	if rowSize > 0 && cfg.MinChunkSize > 1 {
		// MinChunkSize is in elements; convert to rows.
		cfg.MinChunkSize = max(cfg.MinChunkSize/rowSize, 1)
	}
	parallel.For(n, f, cfg)
}

// checkRows validates that the "small" tensor has one row per entry in rows,
// that both tensors share dtype and trailing dimensions, and that every row
// index fits in [0, bound).
func checkRows(op string, small, large *tensor.RawTensor, rows []int, n, bound int) {
	if small.DType() != large.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, small.DType(), large.DType()))
	}
	ss, ls := small.Shape(), large.Shape()
	if len(ss) == 0 || len(ls) == 0 {
		panic(fmt.Sprintf("%s: scalar tensors have no rows", op))
	}
	if ss[0] != n {
		panic(fmt.Sprintf("%s: %d rows requested but tensor %v has %d", op, n, ss, ss[0]))
	}
	if !tensor.Shape(ss[1:]).Equal(ls[1:]) {
		panic(fmt.Sprintf("%s: row shape mismatch %v vs %v", op, ss[1:], ls[1:]))
	}
	for r, row := range rows {
		if row < 0 || row >= bound {
			panic(fmt.Sprintf("%s: row %d at position %d out of bounds [0, %d)", op, row, r, bound))
		}
	}
}

func scatterAdd[T constraints.Integer | constraints.Float](dst, src []T, rows []int, rowSize int) {
	for r, row := range rows {
		d := dst[row*rowSize : (row+1)*rowSize]
		s := src[r*rowSize : (r+1)*rowSize]
		for i, v := range s {
			d[i] += v
		}
	}
}

// scatterAddFloat16 accumulates in float32 and rounds back per element.
func scatterAddFloat16(dst, src []float16.Float16, rows []int, rowSize int) {
	for r, row := range rows {
		d := dst[row*rowSize : (row+1)*rowSize]
		s := src[r*rowSize : (r+1)*rowSize]
		for i, v := range s {
			d[i] = float16.Fromfloat32(d[i].Float32() + v.Float32())
		}
	}
}
