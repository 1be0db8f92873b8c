// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/topk/internal/tensor"

// Backend defines the row kernels a compute device provides to the
// top-K operator: GatherRows, ScatterRows and ScatterAddRows, plus
// Name and Device metadata.
//
// Implementations:
//   - backend/cpu: Pure Go
//
// Example:
//
//	import (
//	    "github.com/born-ml/topk/backend/cpu"
//	    "github.com/born-ml/topk/tensor"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
type Backend = tensor.Backend
