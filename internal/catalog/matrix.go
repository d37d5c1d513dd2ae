package catalog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MatrixVersion is the matrix file version this build writes: float64 elements.
// Version 1 files (float32 elements) are still read and widened.
const MatrixVersion = 2

const matrixVersionFloat32 = 1

const matrixHeaderSize = 12

var matrixMagic = [4]byte{'O', 'S', 'I', 'M'}

// Matrix is a dense, row-major N×N similarity matrix.
type Matrix struct {
	n    int
	data []float64
}

// NewMatrix builds a matrix from rows. Every row must have len(rows) finite values.
func NewMatrix(rows [][]float64) (*Matrix, error) {
	n := len(rows)
	data := make([]float64, 0, n*n)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: matrix row %d has %d columns, want %d", ErrSchema, i, len(row), n)
		}
		data = append(data, row...)
	}
	m := &Matrix{n: n, data: data}
	if err := m.checkFinite(); err != nil {
		return nil, err
	}
	return m, nil
}

// Dim returns N.
func (m *Matrix) Dim() int {
	return m.n
}

// Row returns row i. The slice aliases the matrix.
func (m *Matrix) Row(i int) []float64 {
	return m.data[i*m.n : (i+1)*m.n]
}

func (m *Matrix) checkFinite() error {
	for k, v := range m.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: matrix entry (%d,%d) is not a finite number", ErrSchema, k/m.n, k%m.n)
		}
	}
	return nil
}

// ReadMatrix reads a matrix file. Format (little-endian): magic "OSIM", version (4),
// n (4), then n*n values row-major: float64 for version 2, float32 for version 1.
// The file size must match n exactly.
func ReadMatrix(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: similarity matrix %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat matrix file: %w", err)
	}
	if info.Size() < matrixHeaderSize {
		return nil, fmt.Errorf("%w: matrix file %s is too short for a header (%d bytes)", ErrSchema, path, info.Size())
	}
	r := bufio.NewReader(f)
	var header struct {
		Magic   [4]byte
		Version uint32
		N       uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: read matrix header: %v", ErrSchema, err)
	}
	if header.Magic != matrixMagic {
		return nil, fmt.Errorf("%w: %s is not a similarity matrix file", ErrSchema, path)
	}
	var elemSize uint64
	switch header.Version {
	case MatrixVersion:
		elemSize = 8
	case matrixVersionFloat32:
		elemSize = 4
	default:
		return nil, fmt.Errorf("%w: unsupported matrix version %d", ErrSchema, header.Version)
	}
	n := uint64(header.N)
	want := uint64(matrixHeaderSize) + elemSize*n*n
	if uint64(info.Size()) != want {
		return nil, fmt.Errorf("%w: matrix file is %d bytes, want %d for a %dx%d matrix",
			ErrSchema, info.Size(), want, n, n)
	}
	data := make([]float64, n*n)
	if elemSize == 8 {
		err = binary.Read(r, binary.LittleEndian, data)
	} else {
		narrow := make([]float32, n*n)
		err = binary.Read(r, binary.LittleEndian, narrow)
		for i, v := range narrow {
			data[i] = float64(v)
		}
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: matrix file truncated", ErrSchema)
		}
		return nil, fmt.Errorf("read matrix data: %w", err)
	}
	m := &Matrix{n: int(n), data: data}
	if err := m.checkFinite(); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteMatrix writes rows in the matrix file format. Parent directories are created.
func WriteMatrix(path string, rows [][]float64) error {
	m, err := NewMatrix(rows)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create matrix dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}
	w := bufio.NewWriter(f)
	if _, err := w.Write(matrixMagic[:]); err != nil {
		_ = f.Close()
		return fmt.Errorf("write magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, [2]uint32{MatrixVersion, uint32(m.n)}); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, m.data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write matrix data: %w", err)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush matrix file: %w", err)
	}
	return f.Close()
}

// ReadMatrixText parses a text matrix: one row per line, values separated by commas
// or whitespace. Blank lines and lines starting with '#' are skipped.
func ReadMatrixText(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: text matrix %s", ErrMissingFile, path)
		}
		return nil, fmt.Errorf("open text matrix: %w", err)
	}
	defer f.Close()

	var rows [][]float64
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		row := make([]float64, len(fields))
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %d: %q is not a number", ErrSchema, line, i+1, field)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read text matrix: %w", err)
	}
	return rows, nil
}
