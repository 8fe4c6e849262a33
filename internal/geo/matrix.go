package geo

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Matrix is a dense n×n table of travel costs. It is write-once: Build fills
// it and callers only read from it afterwards.
type Matrix struct {
	n     int
	cells []int
}

// Size returns n.
func (m *Matrix) Size() int { return m.n }

// At returns the cost of travelling from i to j.
func (m *Matrix) At(i, j int) int { return m.cells[i*m.n+j] }

// Rows copies the matrix into a slice of rows.
func (m *Matrix) Rows() [][]int {
	out := make([][]int, m.n)
	for i := range out {
		out[i] = append([]int(nil), m.cells[i*m.n:(i+1)*m.n]...)
	}
	return out
}

// NewMatrix builds a Matrix from explicit rows, e.g. road-network distances
// fetched elsewhere. Rows must be square, non-negative, with a zero diagonal.
func NewMatrix(rows [][]int) (*Matrix, error) {
	n := len(rows)
	m := &Matrix{n: n, cells: make([]int, n*n)}
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("matrix: row %d has %d columns, want %d", i, len(row), n)
		}
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("matrix: negative cost %d at (%d,%d)", v, i, j)
			}
			if i == j && v != 0 {
				return nil, fmt.Errorf("matrix: non-zero diagonal %d at %d", v, i)
			}
			m.cells[i*n+j] = v
		}
	}
	return m, nil
}

// Build computes the full cost matrix for points under metric. Rows are
// independent, so they are spread over up to workers goroutines
// (workers <= 0 means GOMAXPROCS). Each goroutine writes only its own row.
func Build(ctx context.Context, metric Metric, points []Point, workers int) (*Matrix, error) {
	if metric == nil {
		return nil, errors.New("matrix: metric is nil")
	}
	n := len(points)
	m := &Matrix{n: n, cells: make([]int, n*n)}
	if n == 0 {
		return m, nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			row := m.cells[i*n : (i+1)*n]
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				d := metric.Distance(points[i], points[j])
				if d < 0 {
					return fmt.Errorf("matrix: metric returned negative cost %d for (%d,%d)", d, i, j)
				}
				row[j] = d
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("matrix: build: %w", err)
	}
	return m, nil
}
