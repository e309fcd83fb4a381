package result

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"nlmdof/types"
)

// writeRows 写入空白分隔的数值表
func writeRows(t *testing.T, path string, rows [][]float64) {
	t.Helper()
	var sb strings.Builder
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteByte('\n')
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

// writeChannels 按给定时间写入两层、三根弹簧的全部通道，数值为时间的线性函数
func writeChannels(t *testing.T, dir, name string, times []float64) {
	t.Helper()
	col := func(k float64) [][]float64 {
		rows := make([][]float64, len(times))
		for i, x := range times {
			rows[i] = []float64{k * x}
		}
		return rows
	}
	cols := func(n int, k float64) [][]float64 {
		rows := make([][]float64, len(times))
		for i, x := range times {
			rows[i] = make([]float64, n)
			for j := range rows[i] {
				rows[i][j] = k * float64(j+1) * x
			}
		}
		return rows
	}
	reaction := make([][]float64, len(times))
	for i, x := range times {
		reaction[i] = []float64{x, -3 * x}
	}
	writeRows(t, BaseReaction.File(dir, name), reaction)
	writeRows(t, BaseAcc.File(dir, name), col(1))
	writeRows(t, BaseVel.File(dir, name), col(2))
	writeRows(t, BaseDisp.File(dir, name), col(3))
	writeRows(t, FloorAcc.File(dir, name), cols(2, 10))
	writeRows(t, FloorVel.File(dir, name), cols(2, 20))
	writeRows(t, FloorDisp.File(dir, name), cols(2, 30))
	writeRows(t, Material.File(dir, name), cols(6, 1))
}

var layout2 = types.Layout{{1}, {2, 1}}

// TestAssemble 记录时间与网格一致时直接使用
func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	grid := Grid{Dt: 0.01, NPTS: 3}
	writeChannels(t, dir, "gm", grid.Times())
	r, err := Assemble(dir, "gm", grid, layout2)
	require.NoError(t, err)
	assert.Equal(t, 2, r.N())
	assert.Equal(t, 3, r.NPTS())
	assert.Equal(t, []float64{0, 0.01, 0.02, 0.03}, r.T)
	assert.InDelta(t, -0.09, r.BaseReaction[3], 1e-15)
	assert.InDelta(t, 0.06, r.BaseVel[3], 1e-15)
	assert.InDelta(t, 30*2*0.02, r.FloorDisp.At(2, 1), 1e-15)
	rows, cols := r.Springs.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 6, cols)
}

// TestAssembleResample 自适应子步的记录插值到网格
func TestAssembleResample(t *testing.T) {
	dir := t.TempDir()
	writeChannels(t, dir, "gm", []float64{0, 0.005, 0.01, 0.0125, 0.02, 0.03})
	r, err := Assemble(dir, "gm", Grid{Dt: 0.01, NPTS: 3}, layout2)
	require.NoError(t, err)
	rows, _ := r.FloorAcc.Dims()
	require.Equal(t, 4, rows)
	for i, x := range r.T {
		assert.InDelta(t, x, r.BaseAcc[i], 1e-12)
		assert.InDelta(t, 20*x, r.FloorAcc.At(i, 1), 1e-12)
		assert.InDelta(t, 6*x, r.Springs.At(i, 5), 1e-12)
	}
}

// TestAssembleNotFound 缺失或格式错误的通道不以 0 代替
func TestAssembleNotFound(t *testing.T) {
	grid := Grid{Dt: 0.01, NPTS: 3}
	check := func(err error) {
		t.Helper()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "gm", nf.Name)
	}

	dir := t.TempDir()
	writeChannels(t, dir, "gm", grid.Times())
	require.NoError(t, os.Remove(Material.File(dir, "gm")))
	_, err := Assemble(dir, "gm", grid, layout2)
	check(err)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// 弹簧列数与楼层布置不符
	dir = t.TempDir()
	writeChannels(t, dir, "gm", grid.Times())
	_, err = Assemble(dir, "gm", grid, types.Layout{{1}, {2}})
	check(err)

	// 行数不一致
	writeRows(t, BaseAcc.File(dir, "gm"), [][]float64{{0}, {1}})
	_, err = Assemble(dir, "gm", grid, layout2)
	check(err)

	// 未收敛时记录不完整
	dir = t.TempDir()
	writeChannels(t, dir, "gm", []float64{0, 0.01})
	_, err = Assemble(dir, "gm", grid, layout2)
	check(err)

	// 非数值
	dir = t.TempDir()
	writeChannels(t, dir, "gm", grid.Times())
	require.NoError(t, os.WriteFile(BaseVel.File(dir, "gm"), []byte("0\nx\n0\n0\n"), 0o644))
	_, err = Assemble(dir, "gm", grid, layout2)
	check(err)
}

// sample 两层结果，第二层两根弹簧并联
func sample() *Results {
	disp := mat.NewDense(4, 2, []float64{
		0, 0,
		1, 3,
		-2, 5,
		4, -1,
	})
	acc := mat.NewDense(4, 2, []float64{
		0, 0,
		2, -8,
		1, 1,
		0, 3,
	})
	springs := mat.NewDense(4, 6, []float64{
		0, 0, 0, 0, 0, 0,
		10, 1, 4, 2, 6, 2,
		-20, -2, 8, 7, 1, 7,
		40, 4, -2, -5, -3, -5,
	})
	return &Results{
		Name:         "gm",
		T:            []float64{0, 0.01, 0.02, 0.03},
		BaseAcc:      []float64{0, 1, -5, 0},
		BaseVel:      []float64{0, 0, 0, 0},
		BaseDisp:     []float64{0, 0, 0, 0},
		BaseReaction: []float64{0, -10, 20, -40},
		FloorAcc:     acc,
		FloorVel:     mat.NewDense(4, 2, nil),
		FloorDisp:    disp,
		Springs:      springs,
		Layout:       types.Layout{{1}, {1, 2}},
	}
}

// TestDerivedPure 重复计算结果相同，输入不变
func TestDerivedPure(t *testing.T) {
	r := sample()
	require.NoError(t, r.Validate())
	before := mat.DenseCopyOf(r.FloorDisp)
	d1, d2 := r.Drift(), r.Drift()
	assert.True(t, mat.Equal(d1, d2))
	assert.Equal(t, r.DriftEnvelope(), r.DriftEnvelope())
	assert.True(t, mat.Equal(r.StoryShear(), r.StoryShear()))
	assert.Equal(t, r.AccelEnvelope(), r.AccelEnvelope())
	assert.True(t, mat.Equal(before, r.FloorDisp))
}

// TestDriftRoundTrip 层间位移累加恢复相对位移
func TestDriftRoundTrip(t *testing.T) {
	r := sample()
	drift := r.Drift()
	rows, cols := drift.Dims()
	for i := 0; i < rows; i++ {
		sum := 0.0
		for j := 0; j < cols; j++ {
			sum += drift.At(i, j)
			assert.Equal(t, r.FloorDisp.At(i, j), sum)
		}
	}
	assert.Equal(t, []float64{4, -1}, r.ResidualDisp())
	assert.Equal(t, []float64{4, -5}, r.ResidualDrift())
	assert.Equal(t, []float64{4, 7}, r.DriftEnvelope())
}

// TestStoryShear 并联弹簧的力相加
func TestStoryShear(t *testing.T) {
	r := sample()
	shear := r.StoryShear()
	for i := 0; i < 4; i++ {
		assert.Equal(t, r.Springs.At(i, 0), shear.At(i, 0))
		assert.Equal(t, r.Springs.At(i, 2)+r.Springs.At(i, 4), shear.At(i, 1))
	}
	assert.Equal(t, []float64{40, 10}, r.ShearEnvelope())

	def, force, err := r.Hysteresis(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 7, -5}, def)
	assert.Equal(t, []float64{0, 6, 1, -3}, force)
	_, _, err = r.Hysteresis(3)
	assert.Error(t, err)

	// 单根弹簧即为该弹簧的曲线
	def, force, err = r.StoryHysteresis(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, -2, 4}, def)
	assert.Equal(t, []float64{0, 10, -20, 40}, force)
	// 并联时取第一根弹簧的变形，力求和
	def, force, err = r.StoryHysteresis(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 7, -5}, def)
	assert.Equal(t, []float64{0, 10, 9, -5}, force)
	_, _, err = r.StoryHysteresis(3)
	assert.Error(t, err)

	i, err := r.SpringIndex(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, i)
}

// TestEnvelopeSpike 单个尖峰只出现在对应楼层
func TestEnvelopeSpike(t *testing.T) {
	n, rows := 4, 6
	disp := mat.NewDense(rows, n, nil)
	disp.Set(3, n-1, 2.5)
	acc := mat.NewDense(rows, n, nil)
	acc.Set(2, 1, -7)
	r := &Results{
		T:            make([]float64, rows),
		BaseAcc:      make([]float64, rows),
		BaseVel:      make([]float64, rows),
		BaseDisp:     make([]float64, rows),
		BaseReaction: make([]float64, rows),
		FloorAcc:     acc,
		FloorVel:     mat.NewDense(rows, n, nil),
		FloorDisp:    disp,
		Springs:      mat.NewDense(rows, 2*n, nil),
		Layout:       types.Layout{{1}, {1}, {1}, {1}},
	}
	require.NoError(t, r.Validate())
	assert.Equal(t, []float64{0, 0, 0, 2.5}, r.DriftEnvelope())
	assert.Equal(t, []float64{0, 7, 0, 0}, r.AccelEnvelope())

	// 中间楼层的尖峰同时影响上一层的层间位移
	disp.Set(3, n-1, 0)
	disp.Set(1, 1, 1.5)
	assert.Equal(t, []float64{0, 1.5, 1.5, 0}, r.DriftEnvelope())

	p := r.Peak()
	assert.Equal(t, 1.5, p.Drift)
	assert.Equal(t, 2, p.DriftStory)
	assert.Equal(t, 7.0, p.Accel)
	assert.Equal(t, 2, p.AccelStory)
}

// TestAbsolute 绝对响应为基底加相对
func TestAbsolute(t *testing.T) {
	r := sample()
	abs := r.Absolute(Acc)
	assert.Equal(t, 3.0, abs.At(1, 0))
	assert.Equal(t, -4.0, abs.At(2, 1))
	assert.Equal(t, []float64{4, 7}, r.AccelEnvelope())
	assert.True(t, mat.Equal(r.FloorDisp, r.Absolute(Disp)))

	// 返回副本，修改不影响共享的结果
	rel := r.Relative(Acc)
	rel.Set(1, 0, 99)
	base := r.Base(Acc)
	base[1] = 99
	assert.NotEqual(t, 99.0, r.FloorAcc.At(1, 0))
	assert.NotEqual(t, 99.0, r.BaseAcc[1])
	assert.True(t, mat.Equal(abs, r.Absolute(Acc)))
}

// TestInterp 线性插值与两端外推
func TestInterp(t *testing.T) {
	xs, ys := []float64{0, 1}, []float64{0, 2}
	assert.Equal(t, 4.0, Interp(xs, ys, 2))
	assert.Equal(t, -2.0, Interp(xs, ys, -1))
	assert.Equal(t, 1.0, Interp(xs, ys, 0.5))
	assert.Equal(t, 7.0, Interp([]float64{1}, []float64{7}, 3))
}

// TestModes 周期与振型
func TestModes(t *testing.T) {
	dir := t.TempDir()
	writeRows(t, PeriodsFile(dir), [][]float64{{0.5}, {0.2}, {0.1}})
	writeRows(t, ModeFile(dir, 1), [][]float64{{0.2, 0.4}})
	writeRows(t, ModeFile(dir, 2), [][]float64{{-0.5, 0.25}})

	m, err := AssembleModes(dir, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.2}, m.Periods)
	phi, err := m.Shape(2, false)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, 0.25}, phi)
	phi, err = m.Shape(1, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1}, phi)
	_, err = m.Shape(3, false)
	assert.Error(t, err)

	_, err = AssembleModes(dir, 3, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = AssembleModes(dir, 4, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = AssembleModes(filepath.Join(dir, "none"), 1, 2)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// TestLoader 缓存与失效
func TestLoader(t *testing.T) {
	dir := t.TempDir()
	grid := Grid{Dt: 0.01, NPTS: 3}
	writeChannels(t, dir, "gm", grid.Times())
	l, err := NewLoader(2)
	require.NoError(t, err)
	r1, err := l.Load(dir, "gm", grid, layout2)
	require.NoError(t, err)
	r2, err := l.Load(dir, "gm", grid, types.Layout{{1}, {2, 1}})
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	l.Forget(dir, "gm")
	r3, err := l.Load(dir, "gm", grid, layout2)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)

	// 材料指派不同时重新读取
	swapped := types.Layout{{2}, {1, 1}}
	r4, err := l.Load(dir, "gm", grid, swapped)
	require.NoError(t, err)
	assert.NotSame(t, r3, r4)
	assert.Equal(t, swapped, r4.Layout)
	_, err = l.Load(dir, "gm", grid, types.Layout{{1}, {2}})
	assert.True(t, errors.Is(err, ErrNotFound))

	// 时间网格不同时重新读取
	_, err = l.Load(dir, "gm", Grid{Dt: 0.01, NPTS: 5}, layout2)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = l.Load(dir, "other", grid, layout2)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = l.Load(t.TempDir(), "gm", grid, layout2)
	assert.True(t, errors.Is(err, ErrNotFound))
}
