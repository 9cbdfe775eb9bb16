package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := []Tensor{
		{Name: "decoder.fc.bias", Shape: []int64{3}, Data: []float32{0.5, -1, 2}},
		{Name: "encoder.embedding.weight", Shape: []int64{2, 2}, Data: []float32{1, 2, 3, 4}},
	}

	data, err := EncodeTensors(in, map[string]string{"epoch": "3"})
	if err != nil {
		t.Fatalf("EncodeTensors: %v", err)
	}

	st, err := OpenStoreFromBytes(data)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}
	defer st.Close()

	if diff := cmp.Diff([]string{"decoder.fc.bias", "encoder.embedding.weight"}, st.Names()); diff != "" {
		t.Fatalf("Names() mismatch (-want +got):\n%s", diff)
	}

	for _, want := range in {
		got, err := st.TensorWithShape(want.Name, want.Shape)
		if err != nil {
			t.Fatalf("TensorWithShape(%q): %v", want.Name, err)
		}

		if diff := cmp.Diff(want, *got); diff != "" {
			t.Fatalf("tensor %q mismatch (-want +got):\n%s", want.Name, diff)
		}
	}

	if v, ok := st.Metadata("epoch"); !ok || v != "3" {
		t.Fatalf("Metadata(epoch) = %q, %v; want 3, true", v, ok)
	}

	if st.Has(metadataKey) {
		t.Fatal("metadata must not be exposed as a tensor")
	}
}

func TestEncodeTensorsValidation(t *testing.T) {
	tests := []struct {
		name    string
		tensors []Tensor
		want    string
	}{
		{name: "empty", tensors: nil, want: "no tensors"},
		{name: "blank name", tensors: []Tensor{{Name: " ", Shape: []int64{1}, Data: []float32{1}}}, want: "invalid tensor name"},
		{name: "reserved name", tensors: []Tensor{{Name: metadataKey, Shape: []int64{1}, Data: []float32{1}}}, want: "invalid tensor name"},
		{name: "size mismatch", tensors: []Tensor{{Name: "w", Shape: []int64{2, 2}, Data: []float32{1}}}, want: "expects 4 elements"},
		{
			name: "duplicate",
			tensors: []Tensor{
				{Name: "w", Shape: []int64{1}, Data: []float32{1}},
				{Name: "w", Shape: []int64{1}, Data: []float32{2}},
			},
			want: "duplicate",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := EncodeTensors(tc.tensors, nil)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("EncodeTensors error = %v; want containing %q", err, tc.want)
			}
		})
	}
}

func TestTensorWithShapeMismatch(t *testing.T) {
	data, err := EncodeTensors([]Tensor{{Name: "w", Shape: []int64{2, 3}, Data: make([]float32, 6)}}, nil)
	if err != nil {
		t.Fatalf("EncodeTensors: %v", err)
	}

	st, err := OpenStoreFromBytes(data)
	if err != nil {
		t.Fatalf("OpenStoreFromBytes: %v", err)
	}

	if _, err := st.TensorWithShape("w", []int64{3, 2}); err == nil {
		t.Fatal("expected shape mismatch error")
	}

	_, err = st.Tensor("missing")
	if err == nil || !strings.Contains(err.Error(), "available: w") {
		t.Fatalf("Tensor(missing) error = %v; want available names listed", err)
	}
}

func TestOpenStoreRejectsCorruptPayloads(t *testing.T) {
	valid, err := EncodeTensors([]Tensor{{Name: "w", Shape: []int64{2}, Data: []float32{1, 2}}}, nil)
	if err != nil {
		t.Fatalf("EncodeTensors: %v", err)
	}

	tests := map[string][]byte{
		"too short":        {1, 2, 3},
		"truncated data":   valid[:len(valid)-2],
		"bad header":       headerOnly(t, []byte("{not json")),
		"unsupported type": buildRaw(t, map[string]any{"w": map[string]any{"dtype": "BF16", "shape": []int64{1}, "data_offsets": []int{0, 2}}}, 2),
		"no tensors":       buildRaw(t, map[string]any{metadataKey: map[string]string{"a": "b"}}, 0),
	}

	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := OpenStoreFromBytes(data); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestWriteFileReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.safetensors")

	for i, v := range []float32{1, 2} {
		if err := WriteFile(path, []Tensor{{Name: "w", Shape: []int64{1}, Data: []float32{v}}}, nil); err != nil {
			t.Fatalf("WriteFile #%d: %v", i, err)
		}
	}

	st, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}

	got, err := st.Tensor("w")
	if err != nil {
		t.Fatalf("Tensor: %v", err)
	}

	if got.Data[0] != 2 {
		t.Fatalf("w = %v; want the second write", got.Data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("dir has %d entries; want only the checkpoint (temp files leaked)", len(entries))
	}
}

func headerOnly(t *testing.T, header []byte) []byte {
	t.Helper()

	out := make([]byte, 8, 8+len(header))
	binary.LittleEndian.PutUint64(out, uint64(len(header)))

	return append(out, header...)
}

func buildRaw(t *testing.T, header map[string]any, dataLen int) []byte {
	t.Helper()

	h, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}

	return append(headerOnly(t, h), make([]byte, dataLen)...)
}
