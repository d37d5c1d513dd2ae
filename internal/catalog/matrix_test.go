package catalog

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "similarity.bin")
	rows := [][]float64{
		{1, 0.25, 0.5},
		{0.25, 1, 0.75},
		{0.5, 0.75, 1},
	}
	if err := WriteMatrix(path, rows); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 12+8*9 {
		t.Errorf("file size: got %d, want %d", info.Size(), 12+8*9)
	}
	m, err := ReadMatrix(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Dim() != 3 {
		t.Fatalf("Dim: got %d, want 3", m.Dim())
	}
	for i := range rows {
		for j := range rows[i] {
			if m.Row(i)[j] != rows[i][j] {
				t.Errorf("Row(%d)[%d]: got %v, want %v", i, j, m.Row(i)[j], rows[i][j])
			}
		}
	}
	if got := m.Row(1); got[2] != 0.75 {
		t.Errorf("Row(1)[2]: got %v", got[2])
	}
}

func TestReadMatrix_Errors(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.bin")
	if err := WriteMatrix(good, [][]float64{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}

	write := func(name string, b []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, b, 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	badMagic := append([]byte("NOPE"), data[4:]...)
	badVersion := append([]byte(nil), data...)
	binary.LittleEndian.PutUint32(badVersion[4:8], 9)
	nan := append([]byte(nil), data...)
	binary.LittleEndian.PutUint64(nan[12:20], math.Float64bits(math.NaN()))

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", filepath.Join(dir, "nope.bin"), ErrMissingFile},
		{"short header", write("short.bin", data[:6]), ErrSchema},
		{"bad magic", write("magic.bin", badMagic), ErrSchema},
		{"bad version", write("version.bin", badVersion), ErrSchema},
		{"truncated", write("trunc.bin", data[:len(data)-2]), ErrSchema},
		{"trailing bytes", write("trailing.bin", append(append([]byte(nil), data...), 0, 0, 0, 0)), ErrSchema},
		{"nan", write("nan.bin", nan), ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMatrix(tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadMatrix: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadMatrix_Float32File(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("OSIM")
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{1, 2})
	_ = binary.Write(&buf, binary.LittleEndian, []float32{1, 0.25, 0.25, 1})
	path := filepath.Join(t.TempDir(), "v1.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	m, err := ReadMatrix(path)
	if err != nil {
		t.Fatalf("ReadMatrix(v1): %v", err)
	}
	if m.Dim() != 2 || m.Row(0)[1] != 0.25 || m.Row(1)[1] != 1 {
		t.Errorf("v1 matrix: dim %d, row 0 %v", m.Dim(), m.Row(0))
	}

	// A version 1 header with version 2 sized data is rejected.
	binary.LittleEndian.PutUint32(buf.Bytes()[4:8], MatrixVersion)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadMatrix(path); !errors.Is(err, ErrSchema) {
		t.Errorf("size mismatch for version: got %v, want ErrSchema", err)
	}
}

func TestMatrix_KeepsNearEqualScoresDistinct(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "similarity.txt")
	content := "1 0.300000001 0.300000002\n0.300000001 1 0.5\n0.300000002 0.5 1\n"
	if err := os.WriteFile(text, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadMatrixText(text)
	if err != nil {
		t.Fatal(err)
	}
	if !(rows[0][2] > rows[0][1]) {
		t.Fatalf("text parse collapsed scores: %v", rows[0])
	}
	bin := filepath.Join(dir, "similarity.bin")
	if err := WriteMatrix(bin, rows); err != nil {
		t.Fatal(err)
	}
	m, err := ReadMatrix(bin)
	if err != nil {
		t.Fatal(err)
	}
	if m.Row(0)[1] != 0.300000001 || m.Row(0)[2] != 0.300000002 {
		t.Errorf("round trip lost precision: %v", m.Row(0))
	}
}

func TestNewMatrix_NotSquare(t *testing.T) {
	_, err := NewMatrix([][]float64{{1, 0}, {0}})
	if !errors.Is(err, ErrSchema) {
		t.Errorf("got %v, want ErrSchema", err)
	}
	if err := WriteMatrix(filepath.Join(t.TempDir(), "x.bin"), [][]float64{{1, 2, 3}}); !errors.Is(err, ErrSchema) {
		t.Errorf("WriteMatrix non-square: got %v, want ErrSchema", err)
	}
}

func TestReadMatrixText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "similarity.txt")
	content := "# similarity\n1.0, 0.5\n\n0.5 1.0\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadMatrixText(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || len(rows[0]) != 2 || rows[1][0] != 0.5 {
		t.Errorf("got %v", rows)
	}

	bad := filepath.Join(t.TempDir(), "bad.txt")
	_ = os.WriteFile(bad, []byte("1.0 abc\n"), 0644)
	if _, err := ReadMatrixText(bad); !errors.Is(err, ErrSchema) {
		t.Errorf("bad text matrix: got %v, want ErrSchema", err)
	}
	if _, err := ReadMatrixText(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, ErrMissingFile) {
		t.Errorf("missing text matrix: got %v, want ErrMissingFile", err)
	}
}
