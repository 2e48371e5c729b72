package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	ErrInvalidDimension   = errors.New("dimension must be positive")
	ErrDimensionMismatch  = errors.New("vector dimension does not match index dimension")
	ErrInvalidK           = errors.New("k must be positive")
	ErrBadIndexFile       = errors.New("not a flat index file")
	ErrUnsupportedVersion = errors.New("unsupported index file version")
)

const (
	fileMagic   = "FLIP"
	fileVersion = 1
)

// Flat is a brute-force inner-product index over unit-norm vectors. With
// normalized inputs the inner product equals cosine similarity, so higher
// scores mean closer matches.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}
	return &Flat{dim: dim}, nil
}

// Dimension returns the fixed vector dimension of this index.
func (f *Flat) Dimension() int {
	return f.dim
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Add appends vectors to the index. Every vector must match the index
// dimension; on mismatch nothing is added.
func (f *Flat) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("%w: got %d, index has %d", ErrDimensionMismatch, len(v), f.dim)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range vectors {
		stored := make([]float32, len(v))
		copy(stored, v)
		f.vectors = append(f.vectors, stored)
	}
	return nil
}

// Search returns the ids and inner-product scores of the k nearest vectors,
// best first. Ties keep insertion order. Fewer than k results are returned
// when the index holds fewer vectors.
func (f *Flat) Search(query []float32, k int) ([]int, []float32, error) {
	if k <= 0 {
		return nil, nil, ErrInvalidK
	}
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: query=%d, index=%d", ErrDimensionMismatch, len(query), f.dim)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]int, len(f.vectors))
	scores := make([]float32, len(f.vectors))
	for i, v := range f.vectors {
		ids[i] = i
		scores[i] = dot(v, query)
	}

	sort.SliceStable(ids, func(a, b int) bool {
		return scores[ids[a]] > scores[ids[b]]
	})

	if k > len(ids) {
		k = len(ids)
	}

	outIDs := make([]int, k)
	outScores := make([]float32, k)
	for i := 0; i < k; i++ {
		outIDs[i] = ids[i]
		outScores[i] = scores[ids[i]]
	}
	return outIDs, outScores, nil
}

// WriteFile persists the index with a temp-file-then-rename so a crash never
// leaves a torn artifact behind.
func (f *Flat) WriteFile(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if _, err := w.WriteString(fileMagic); err != nil {
		tmp.Close()
		return err
	}
	header := []uint32{fileVersion, uint32(f.dim), uint32(len(f.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			tmp.Close()
			return err
		}
	}
	for _, v := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// ReadFile loads an index previously written with WriteFile.
func ReadFile(path string) (*Flat, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := bufio.NewReader(file)
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != fileMagic {
		return nil, ErrBadIndexFile
	}

	var version, dim, count uint32
	for _, dst := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, dst); err != nil {
			return nil, err
		}
	}
	if version != fileVersion {
		return nil, ErrUnsupportedVersion
	}

	index, err := NewFlat(int(dim))
	if err != nil {
		return nil, err
	}
	index.vectors = make([][]float32, count)
	for i := range index.vectors {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		index.vectors[i] = v
	}
	return index, nil
}

// ReadHeader returns the dimension and vector count of a persisted index
// without loading its vectors.
func ReadHeader(path string) (dim, count int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(file, magic); err != nil {
		return 0, 0, err
	}
	if string(magic) != fileMagic {
		return 0, 0, ErrBadIndexFile
	}

	var version, d, c uint32
	for _, dst := range []*uint32{&version, &d, &c} {
		if err := binary.Read(file, binary.LittleEndian, dst); err != nil {
			return 0, 0, err
		}
	}
	if version != fileVersion {
		return 0, 0, ErrUnsupportedVersion
	}
	return int(d), int(c), nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
