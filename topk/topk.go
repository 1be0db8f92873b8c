// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package topk provides the public API of the top-K selection operator.
//
// A host engine calls Reshape once shapes are known, Forward during the
// forward step and Backward with the indices that Forward returned:
//
//	plan, err := topk.Reshape(input.Shape(), scores.Shape(), kSource.Shape(), true)
//	if err != nil {
//	    return err
//	}
//	sel, err := topk.New()
//	if err != nil {
//	    return err
//	}
//	res, err := sel.Forward(plan, input, scores)
//	if err != nil {
//	    return err
//	}
//	grad, err := sel.Backward(upstream, res.Indices, plan.Candidates)
//
// Candidates are ranked by score, larger first; ties go to the smaller
// original index and NaN scores rank below every number.
package topk

import (
	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/topk"
	"github.com/born-ml/topk/tensor"
)

// Selector runs forward selection and backward scatter.
// It holds configuration only and is safe for concurrent use.
type Selector = topk.Selector

// Plan holds the output shapes resolved by Reshape.
type Plan = topk.Plan

// Result holds the selected and index tensors of one forward call.
type Result = topk.Result

// Problem is one independent candidate set for Selector.ForwardBatch.
type Problem = topk.Problem

// Option configures a Selector.
type Option = topk.Option

// Algorithm selects how the K best candidates are found.
type Algorithm = topk.Algorithm

// Selection algorithms.
const (
	HeapSelection = topk.HeapSelection
	SortSelection = topk.SortSelection
)

// GradientMode selects how BackwardInto writes into the gradient buffer.
type GradientMode = topk.GradientMode

// Gradient modes.
const (
	Accumulate = topk.Accumulate
	Overwrite  = topk.Overwrite
)

// ParallelConfig controls worker fan-out for batched forward calls.
type ParallelConfig = parallel.Config

// ShapeError reports malformed or inconsistent shapes.
type ShapeError = topk.ShapeError

// IndexError reports an index outside the candidate range during backward.
type IndexError = topk.IndexError

// Sentinel errors for errors.Is.
var (
	ErrShape = topk.ErrShape
	ErrIndex = topk.ErrIndex
	ErrDType = topk.ErrDType
)

// Reshape resolves output shapes before any buffer is allocated.
// K is the leading dimension of kSource.
func Reshape(input, scores, kSource tensor.Shape, wantIndices bool) (Plan, error) {
	return topk.Reshape(input, scores, kSource, wantIndices)
}

// New creates a Selector.
func New(opts ...Option) (*Selector, error) {
	return topk.New(opts...)
}

// WithBackend sets the backend running the gather/scatter kernels.
func WithBackend(b tensor.Backend) Option {
	return topk.WithBackend(b)
}

// WithAlgorithm sets the selection algorithm.
func WithAlgorithm(a Algorithm) Option {
	return topk.WithAlgorithm(a)
}

// WithGradientMode sets how BackwardInto combines gradients.
func WithGradientMode(m GradientMode) Option {
	return topk.WithGradientMode(m)
}

// WithIndexDType sets the dtype of index tensors allocated by Forward.
func WithIndexDType(dt tensor.DataType) Option {
	return topk.WithIndexDType(dt)
}

// WithParallel sets the worker configuration used by ForwardBatch.
func WithParallel(cfg ParallelConfig) Option {
	return topk.WithParallel(cfg)
}

// DefaultParallelConfig returns a configuration sized to the machine.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}
