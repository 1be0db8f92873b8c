// Package cpu implements the CPU backend for the top-K operator kernels.
package cpu

import (
	"github.com/born-ml/topk/internal/parallel"
	"github.com/born-ml/topk/internal/tensor"
)

// CPUBackend implements the row gather/scatter kernels in pure Go.
type CPUBackend struct {
	device   tensor.Device
	parallel parallel.Config
}

// New creates a new CPU backend with default parallelism.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend using the given parallel configuration
// for row gathers.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device:   tensor.CPU,
		parallel: cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}
