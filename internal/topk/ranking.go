package topk

import (
	"container/heap"
	"math"
	"slices"

	"golang.org/x/exp/constraints"

	"github.com/born-ml/topk/internal/tensor"
)

// ranksBefore reports whether candidate i (score si) ranks ahead of
// candidate j (score sj).
//
// Larger scores come first. NaN ranks below every number, -Inf included.
// Ties, NaN against NaN included, go to the smaller index.
func ranksBefore(si float64, i int, sj float64, j int) bool {
	iNaN, jNaN := math.IsNaN(si), math.IsNaN(sj)
	switch {
	case iNaN && jNaN:
		return i < j
	case iNaN:
		return false
	case jNaN:
		return true
	case si != sj:
		return si > sj
	default:
		return i < j
	}
}

func compareRank(scores []float64) func(i, j int) int {
	return func(i, j int) int {
		switch {
		case i == j:
			return 0
		case ranksBefore(scores[i], i, scores[j], j):
			return -1
		default:
			return 1
		}
	}
}

// selectTopK returns the indices of the k best candidates, best first.
func selectTopK(scores []float64, k int, algo Algorithm) []int {
	if k <= 0 {
		return []int{}
	}
	if algo == SortSelection {
		return sortSelect(scores, k)
	}
	return heapSelect(scores, k)
}

// sortSelect ranks every candidate and keeps the first k.
func sortSelect(scores []float64, k int) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, compareRank(scores))
	return order[:k:k]
}

// worstFirst is a heap whose root is the weakest kept candidate.
type worstFirst struct {
	scores []float64
	items  []int
}

func (h *worstFirst) Len() int { return len(h.items) }

func (h *worstFirst) Less(a, b int) bool {
	i, j := h.items[a], h.items[b]
	return ranksBefore(h.scores[j], j, h.scores[i], i)
}

func (h *worstFirst) Swap(a, b int) { h.items[a], h.items[b] = h.items[b], h.items[a] }

func (h *worstFirst) Push(x any) { h.items = append(h.items, x.(int)) }

func (h *worstFirst) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

// heapSelect keeps the k best candidates in a bounded heap, then orders them.
func heapSelect(scores []float64, k int) []int {
	h := &worstFirst{scores: scores, items: make([]int, 0, k)}
	for i := range scores {
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		root := h.items[0]
		if ranksBefore(scores[i], i, scores[root], root) {
			h.items[0] = i
			heap.Fix(h, 0)
		}
	}
	slices.SortFunc(h.items, compareRank(scores))
	return h.items
}

// decodeScores reads one score per candidate as float64.
func decodeScores(raw *tensor.RawTensor) ([]float64, bool) {
	switch raw.DType() {
	case tensor.Float32:
		return widen(raw.AsFloat32()), true
	case tensor.Float64:
		return slices.Clone(raw.AsFloat64()), true
	case tensor.Float16:
		f16 := raw.AsFloat16()
		out := make([]float64, len(f16))
		for i, v := range f16 {
			out[i] = float64(v.Float32())
		}
		return out, true
	case tensor.Int32:
		return widen(raw.AsInt32()), true
	case tensor.Int64:
		return widen(raw.AsInt64()), true
	case tensor.Uint8:
		return widen(raw.AsUint8()), true
	default:
		return nil, false
	}
}

func widen[T constraints.Integer | constraints.Float](src []T) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

func countNaN(scores []float64) int {
	n := 0
	for _, s := range scores {
		if math.IsNaN(s) {
			n++
		}
	}
	return n
}
