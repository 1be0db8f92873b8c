// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensor types consumed by the top-K operator.
//
// # Overview
//
// This package provides:
//   - Generic type-safe tensors (Tensor[T, B])
//   - Low-level dense buffers (RawTensor) with zero-copy typed views
//   - Zero-sized dimensions, so an empty selection is a regular tensor
//   - Half precision storage via github.com/x448/float16
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/topk/backend/cpu"
//	    "github.com/born-ml/topk/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1, 1, 1}, backend)
//	    if err != nil {
//	        panic(err)
//	    }
//	    raw := x.Raw() // hand the buffer to the operator
//	}
package tensor
