package result

import (
	"bufio"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// readTable 读取空白分隔的数值表，每行列数必须一致
func readTable(name, path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &NotFoundError{Name: name, Path: path, Err: err}
	}
	defer file.Close()
	var (
		data []float64
		cols = -1
		rows int
	)
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if cols == -1 {
			cols = len(fields)
		} else if len(fields) != cols {
			return nil, notFound(name, path, "第%d行有%d列，应为%d列", line, len(fields), cols)
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, notFound(name, path, "第%d行: %v", line, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, &NotFoundError{Name: name, Path: path, Err: err}
	}
	if rows == 0 {
		return nil, notFound(name, path, "文件为空")
	}
	return mat.NewDense(rows, cols, data), nil
}

// Interp 线性插值，超出 xs 范围时按两端线段外推，xs 必须递增
func Interp(xs, ys []float64, x float64) float64 {
	n := len(xs)
	switch {
	case n == 0:
		return 0
	case n == 1:
		return ys[0]
	}
	// 第一个不小于 x 的位置
	k := sort.SearchFloat64s(xs, x)
	if k < n && xs[k] == x {
		return ys[k]
	}
	switch {
	case k == 0:
		k = 1
	case k >= n:
		k = n - 1
	}
	x0, x1 := xs[k-1], xs[k]
	if x1 == x0 {
		return ys[k]
	}
	return ys[k-1] + (ys[k]-ys[k-1])*(x-x0)/(x1-x0)
}

// resample 将按记录时间 t 排列的各列插值到网格 grid 上
func resample(m *mat.Dense, t, grid []float64) *mat.Dense {
	rows, cols := m.Dims()
	if rows == len(grid) && sameGrid(t, grid) {
		return m
	}
	out := mat.NewDense(len(grid), cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		for i, x := range grid {
			out.Set(i, j, Interp(t, col, x))
		}
	}
	return out
}

// sameGrid 记录时间与网格一致
func sameGrid(t, grid []float64) bool {
	if len(t) != len(grid) {
		return false
	}
	if len(grid) < 2 {
		return true
	}
	tol := 1e-6 * (grid[1] - grid[0])
	for i := range t {
		if d := t[i] - grid[i]; d > tol || d < -tol {
			return false
		}
	}
	return true
}

// checkTimes 记录时间必须非降且覆盖整个网格
func checkTimes(name, path string, t, grid []float64) error {
	for i := 1; i < len(t); i++ {
		if t[i] < t[i-1] {
			return notFound(name, path, "时间不是递增的: 第%d行", i+1)
		}
	}
	if len(grid) == 0 {
		return nil
	}
	end := grid[len(grid)-1]
	tol := 1e-6
	if len(grid) > 1 {
		tol *= grid[1] - grid[0]
	}
	if t[len(t)-1] < end-tol {
		return notFound(name, path, "记录只到 %g，应到 %g", t[len(t)-1], end)
	}
	return nil
}

// columnsOf 检查列数
func columnsOf(name, path string, m *mat.Dense, want int) error {
	if _, c := m.Dims(); c != want {
		return notFound(name, path, "有%d列，应为%d列", c, want)
	}
	return nil
}

func errRows(name, path string, got, want int) error {
	return notFound(name, path, "有%d行，应与反力记录的%d行一致", got, want)
}
