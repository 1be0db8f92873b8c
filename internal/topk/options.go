package topk

import (
	"github.com/pkg/errors"

	"github.com/born-ml/topk/internal/backend/cpu"
	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/tensor"
)

// Algorithm selects how the K best candidates are found.
// Every algorithm yields the same ranking.
type Algorithm int

const (
	// HeapSelection keeps a bounded heap of size K: O(N0 log K).
	HeapSelection Algorithm = iota
	// SortSelection sorts all candidates then truncates: O(N0 log N0).
	SortSelection
)

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case HeapSelection:
		return "heap"
	case SortSelection:
		return "sort"
	default:
		return "unknown"
	}
}

// GradientMode selects how BackwardInto combines upstream gradients with
// the destination buffer.
type GradientMode int

const (
	// Accumulate adds upstream gradients into the destination.
	Accumulate GradientMode = iota
	// Overwrite replaces the destination rows at the selected indices.
	Overwrite
)

// String returns the gradient mode name.
func (m GradientMode) String() string {
	switch m {
	case Accumulate:
		return "accumulate"
	case Overwrite:
		return "overwrite"
	default:
		return "unknown"
	}
}

type config struct {
	backend    tensor.Backend
	algorithm  Algorithm
	mode       GradientMode
	indexDType tensor.DataType
	parallel   parallel.Config
}

func defaultConfig() config {
	cfg := parallel.DefaultConfig()
	return config{
		backend:    cpu.NewWithConfig(cfg),
		algorithm:  HeapSelection,
		mode:       Accumulate,
		indexDType: tensor.Int64,
		parallel:   cfg,
	}
}

// Option configures a Selector.
type Option func(cfg *config) error

// WithBackend sets the backend running the gather/scatter kernels.
func WithBackend(b tensor.Backend) Option {
	return func(cfg *config) error {
		if b == nil {
			return errors.New("backend must not be nil")
		}
		cfg.backend = b
		return nil
	}
}

// WithAlgorithm sets the selection algorithm.
func WithAlgorithm(a Algorithm) Option {
	return func(cfg *config) error {
		if a != HeapSelection && a != SortSelection {
			return errors.Errorf("unknown selection algorithm %d", a)
		}
		cfg.algorithm = a
		return nil
	}
}

// WithGradientMode sets how BackwardInto writes into the gradient buffer.
func WithGradientMode(m GradientMode) Option {
	return func(cfg *config) error {
		if m != Accumulate && m != Overwrite {
			return errors.Errorf("unknown gradient mode %d", m)
		}
		cfg.mode = m
		return nil
	}
}

// WithIndexDType sets the dtype of index tensors allocated by Forward.
// Engines that keep every blob in the model's float type can ask for
// Float32 or Float64 here. Float32 addresses at most 1<<24 candidates and
// Int32 at most math.MaxInt32; larger plans fail in Forward.
func WithIndexDType(dt tensor.DataType) Option {
	return func(cfg *config) error {
		if !isIndexDType(dt) {
			return errors.Errorf("index dtype must be int32, int64, float32 or float64, got %s", dt)
		}
		cfg.indexDType = dt
		return nil
	}
}

// WithParallel sets the worker configuration used by ForwardBatch.
func WithParallel(p parallel.Config) Option {
	return func(cfg *config) error {
		if p.Enabled && p.NumWorkers <= 0 {
			return errors.Errorf("parallel workers must be > 0 when enabled, got %d", p.NumWorkers)
		}
		cfg.parallel = p
		return nil
	}
}
