// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the top-K operator kernels.
//
// # Overview
//
// This package implements:
//   - Pure Go implementation (no CGO)
//   - Row gather along axis 0 as raw byte copies, for any dtype
//   - Row scatter and scatter-add for float32, float64, float16 and integer types
//   - Parallel gathers for large selections
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/topk/backend/cpu"
//	    "github.com/born-ml/topk/topk"
//	)
//
//	func main() {
//	    sel, err := topk.New(topk.WithBackend(cpu.New()))
//	    if err != nil {
//	        panic(err)
//	    }
//	    _ = sel
//	}
package cpu
