package tensor

// mockBackend is a minimal Backend for testing the tensor package without
// importing a real backend.
type mockBackend struct{}

func newMockBackend() *mockBackend {
	return &mockBackend{}
}

func (m *mockBackend) GatherRows(dst, src *RawTensor, rows []int) {
	for r, row := range rows {
		copy(dst.Row(r), src.Row(row))
	}
}

func (m *mockBackend) ScatterRows(dst, src *RawTensor, rows []int) {
	for r, row := range rows {
		copy(dst.Row(row), src.Row(r))
	}
}

func (m *mockBackend) ScatterAddRows(dst, src *RawTensor, rows []int) {
	size := dst.Shape().RowSize()
	d, s := dst.AsFloat32(), src.AsFloat32()
	for r, row := range rows {
		for i := 0; i < size; i++ {
			d[row*size+i] += s[r*size+i]
		}
	}
}

func (m *mockBackend) Name() string   { return "Mock" }
func (m *mockBackend) Device() Device { return CPU }
