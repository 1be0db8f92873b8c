package tensor

// Backend defines the data-movement kernels the top-K operator needs from
// a compute device. Rows are slices along axis 0.
//
// Kernels assume their arguments were validated by the caller and panic on
// a broken invariant (mismatched row sizes, out of range rows).
type Backend interface {
	// GatherRows copies src row rows[r] into dst row r for every r.
	GatherRows(dst, src *RawTensor, rows []int)

	// ScatterAddRows adds src row r into dst row rows[r] for every r.
	// Repeated rows accumulate.
	ScatterAddRows(dst, src *RawTensor, rows []int)

	// ScatterRows copies src row r into dst row rows[r] for every r.
	// With repeated rows the last write wins.
	ScatterRows(dst, src *RawTensor, rows []int)

	// Metadata
	Name() string
	Device() Device
}
