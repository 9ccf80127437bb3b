// Package matrix is a small row-major dense matrix type backed by gonum for
// factorizations.
package matrix

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a system cannot be solved directly.
var ErrSingular = errors.New("matrix is singular")

type Matrix struct {
	Rows   int
	Cols   int
	Values [][]float64
}

type Vector struct {
	Length int
	Values []float64
}

func NewMatrix(rows, cols int) *Matrix {
	v := make([][]float64, rows)
	for i := range v {
		v[i] = make([]float64, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Values: v}
}

// Identity returns the n x n identity matrix.
func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.Values[i][i] = 1
	}
	return m
}

func NewVector(n int) *Vector {
	return &Vector{Length: n, Values: make([]float64, n)}
}

func NewVectorWithValue(n int, value float64) *Vector {
	v := NewVector(n)
	for i := range v.Values {
		v.Values[i] = value
	}
	return v
}

// VectorOf copies vals into a new Vector.
func VectorOf(vals []float64) *Vector {
	v := NewVector(len(vals))
	copy(v.Values, vals)
	return v
}

func (m *Matrix) SetRow(i int, v *Vector) {
	copy(m.Values[i], v.Values)
}

func (m *Matrix) GetRow(i int) *Vector {
	return VectorOf(m.Values[i])
}

func (m *Matrix) SetCol(j int, v *Vector) {
	for i := 0; i < m.Rows; i++ {
		m.Values[i][j] = v.Values[i]
	}
}

func (m *Matrix) Sub(o *Matrix) *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Values[i][j] = m.Values[i][j] - o.Values[i][j]
		}
	}
	return out
}

func (m *Matrix) Transpose() *Matrix {
	out := NewMatrix(m.Cols, m.Rows)
	for i := 0; i < m.Rows; i++ {
		for j := 0; j < m.Cols; j++ {
			out.Values[j][i] = m.Values[i][j]
		}
	}
	return out
}

// Mul returns m*o, or nil if the shapes do not agree.
func (m *Matrix) Mul(o *Matrix) *Matrix {
	if m.Cols != o.Rows {
		return nil
	}
	var p mat.Dense
	p.Mul(m.dense(), o.dense())
	return fromDense(&p)
}

// MulVector returns m*v, or nil if the shapes do not agree.
func (m *Matrix) MulVector(v *Vector) *Vector {
	if m.Cols != v.Length {
		return nil
	}
	out := NewVector(m.Rows)
	for i := 0; i < m.Rows; i++ {
		sum := 0.0
		for j := 0; j < m.Cols; j++ {
			sum += m.Values[i][j] * v.Values[j]
		}
		out.Values[i] = sum
	}
	return out
}

// Diagonal returns a copy of the main diagonal.
func (m *Matrix) Diagonal() *Vector {
	n := m.Rows
	if m.Cols < n {
		n = m.Cols
	}
	d := NewVector(n)
	for i := 0; i < n; i++ {
		d.Values[i] = m.Values[i][i]
	}
	return d
}

func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	for i := range m.Values {
		copy(out.Values[i], m.Values[i])
	}
	return out
}

// InverseSVD returns the Moore-Penrose pseudoinverse, or nil if the SVD fails.
func (m *Matrix) InverseSVD() *Matrix {
	var svd mat.SVD
	if ok := svd.Factorize(m.dense(), mat.SVDThin); !ok {
		return nil
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	tol := 1e-12
	if len(s) > 0 {
		tol *= s[0] * float64(max(m.Rows, m.Cols))
	}
	sinv := mat.NewDense(len(s), len(s), nil)
	for i, sv := range s {
		if sv > tol {
			sinv.Set(i, i, 1/sv)
		}
	}
	var tmp, pinv mat.Dense
	tmp.Mul(&v, sinv)
	pinv.Mul(&tmp, u.T())
	return fromDense(&pinv)
}

// Solve solves m*x = b for square m. When LU reports a singular system it falls back
// to the pseudoinverse solution and returns ErrSingular alongside it.
func (m *Matrix) Solve(b *Vector) (*Vector, error) {
	if m.Rows != m.Cols || m.Rows != b.Length {
		return nil, fmt.Errorf("solve: shape %dx%d with rhs %d", m.Rows, m.Cols, b.Length)
	}
	var x mat.VecDense
	err := x.SolveVec(m.dense(), mat.NewVecDense(b.Length, append([]float64(nil), b.Values...)))
	if err == nil {
		return VectorOf(x.RawVector().Data), nil
	}
	pinv := m.InverseSVD()
	if pinv == nil {
		return nil, fmt.Errorf("solve: %w", ErrSingular)
	}
	return pinv.MulVector(b), fmt.Errorf("solve: %w", ErrSingular)
}

func (m *Matrix) dense() *mat.Dense {
	data := make([]float64, 0, m.Rows*m.Cols)
	for _, row := range m.Values {
		data = append(data, row...)
	}
	return mat.NewDense(m.Rows, m.Cols, data)
}

func fromDense(d *mat.Dense) *Matrix {
	r, c := d.Dims()
	out := NewMatrix(r, c)
	for i := 0; i < r; i++ {
		mat.Row(out.Values[i], i, d)
	}
	return out
}
