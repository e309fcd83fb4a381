package builder

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlmdof/ops"
	"nlmdof/result"
	"nlmdof/types"
)

// element 假求解器中记录的单元
type element struct {
	i, j, mat int
	rayleigh  bool
}

// fake 记录调用的假求解器
type fake struct {
	wipes     int
	nodes     map[int][]float64
	fixes     map[int][]int
	materials map[int]types.Material
	elements  map[int]element
	lambda    []float64
	solver    ops.EigenSolver
	eigenN    int
	factor    float64
	patterns  map[int]float64
	loads     map[int]int
	selection ops.Selection
	damping   ops.Rayleigh
	recorders []ops.RecorderSpec
	settings  *types.SolverSettings
}

func newFake(lambda ...float64) *fake {
	return &fake{lambda: lambda}
}

func (f *fake) Wipe() error {
	f.wipes++
	f.nodes = map[int][]float64{}
	f.fixes = map[int][]int{}
	f.materials = map[int]types.Material{}
	f.elements = map[int]element{}
	f.patterns = map[int]float64{}
	f.loads = map[int]int{}
	f.recorders = nil
	return nil
}
func (f *fake) Model(ndm, ndf int) error { return nil }
func (f *fake) Node(tag int, coords []float64, mass []float64) error {
	f.nodes[tag] = mass
	return nil
}
func (f *fake) Fix(tag int, mask ...int) error { f.fixes[tag] = mask; return nil }
func (f *fake) Mass(tag int, mass ...float64) error {
	f.nodes[tag] = mass
	return nil
}
func (f *fake) UniaxialMaterial(tag int, m types.Material) error {
	f.materials[tag] = m
	return nil
}
func (f *fake) ZeroLength(tag, iNode, jNode, matTag, dir int, rayleigh bool) error {
	f.elements[tag] = element{iNode, jNode, matTag, rayleigh}
	return nil
}
func (f *fake) Eigen(solver ops.EigenSolver, n int) ([]float64, error) {
	f.solver, f.eigenN = solver, n
	return f.lambda[:n], nil
}
func (f *fake) TimeSeriesPath(tag int, dt float64, values []float64, factor float64) error {
	f.factor = factor
	return nil
}
func (f *fake) Pattern(tag, seriesTag int, fact float64) error {
	f.patterns[tag] = fact
	return nil
}
func (f *fake) Load(pattern, node int, values ...float64) error {
	f.loads[pattern] = node
	return nil
}
func (f *fake) Region(tag int, sel ops.Selection, r ops.Rayleigh) error {
	f.selection, f.damping = sel, r
	return nil
}
func (f *fake) Recorder(spec ops.RecorderSpec) error {
	f.recorders = append(f.recorders, spec)
	return nil
}
func (f *fake) Analysis(s types.SolverSettings) error { f.settings = &s; return nil }
func (f *fake) Analyze(n int, dt float64) int         { return 0 }
func (f *fake) WipeAnalysis()                         {}

// threeStory 三层算例，第三层两根弹簧并联
func threeStory(t *testing.T) *types.Model {
	t.Helper()
	m := types.NewModel(2, 1, 1)
	m.AddMaterial("s1", types.Bilinear{Fy: 3000, E: 1500, Alpha: 0.02})
	m.AddMaterial("s2", types.Bilinear{Fy: 2000, E: 1000, Alpha: 0.02})
	require.NoError(t, m.AssignTags(1, 1))
	require.NoError(t, m.AssignTags(2, 2))
	require.NoError(t, m.AssignTags(3, 2, 1))
	return m
}

// TestBuild 节点、约束与弹簧编号
func TestBuild(t *testing.T) {
	c := newFake()
	f, err := Build(c, threeStory(t))
	require.NoError(t, err)
	assert.Equal(t, 1, c.wipes)
	assert.Equal(t, []int{1, 2, 3, 4}, f.Nodes)
	assert.Equal(t, []int{2, 3, 4}, f.Floors)
	assert.Equal(t, [][]int{{1}, {2}, {3, 4}}, f.Elements)
	assert.Equal(t, []int{1, 2, 3, 4}, f.AllElements())

	assert.Equal(t, []int{1, 1, 1}, c.fixes[1])
	assert.Equal(t, []int{0, 1, 1}, c.fixes[3])
	assert.Equal(t, []float64{2, 0, 0}, c.nodes[2])
	assert.Equal(t, element{3, 4, 2, true}, c.elements[3])
	assert.Equal(t, element{3, 4, 1, true}, c.elements[4])
	assert.Len(t, c.materials, 2)

	// 未指定材料的楼层不能建模
	bad := types.NewModel(1, 1)
	bad.AddMaterial("", types.Elastic{E: 1})
	require.NoError(t, bad.AssignTags(1, 1))
	_, err = Build(newFake(), bad)
	assert.True(t, types.IsConfigError(err))
}

// TestBuildAfterDelete 删除材料后编号前移
func TestBuildAfterDelete(t *testing.T) {
	m := types.NewModel(1, 1)
	a := m.AddMaterial("a", types.Elastic{E: 1})
	b := m.AddMaterial("b", types.Elastic{E: 2})
	m.AddMaterial("c", types.Elastic{E: 3})
	require.NoError(t, m.AssignTags(1, 1, 3))
	require.NoError(t, m.Assign(2, b))
	require.NoError(t, m.Assign(2, a))
	require.True(t, m.DeleteMaterial(b))

	c := newFake()
	f, err := Build(c, m)
	require.NoError(t, err)
	assert.Equal(t, types.Elastic{E: 3}, c.materials[2])
	assert.Equal(t, [][]int{{1, 2}, {3}}, f.Elements)
	assert.Equal(t, 2, c.elements[2].mat)
	assert.Equal(t, 1, c.elements[3].mat)
}

// TestExcite 楼层荷载与辅助单自由度
func TestExcite(t *testing.T) {
	c := newFake()
	f, err := Build(c, threeStory(t))
	require.NoError(t, err)
	gm, err := types.NewGroundMotion("gm", []float64{0, 1, 0}, 0.01, types.UnitG)
	require.NoError(t, err)
	require.NoError(t, Excite(c, f, gm, 2, 9800))

	assert.Equal(t, 2*9800.0, c.factor)
	assert.Equal(t, -2.0, c.patterns[1])
	assert.Equal(t, -1.0, c.patterns[3])
	assert.Equal(t, 4, c.loads[3])
	// 辅助单自由度: 节点 5 固定，节点 6 为质量节点
	assert.Equal(t, 6, f.Static)
	assert.Equal(t, []float64{2e6, 0, 0}, c.nodes[6])
	assert.Equal(t, []int{0, 1, 1}, c.fixes[6])
	assert.Equal(t, 2e6, c.patterns[4])
	assert.Equal(t, 6, c.loads[4])
	assert.Equal(t, element{5, 6, 3, false}, c.elements[5])
	assert.Equal(t, types.Elastic{E: 0}, c.materials[3])
	// 不能重复加载
	assert.Error(t, Excite(c, f, gm, 1, 9800))

	// 单位换算
	c2 := newFake()
	f2, err := Build(c2, threeStory(t))
	require.NoError(t, err)
	gal, err := types.NewGroundMotion("gm", []float64{0, 100}, 0.01, types.UnitCMS2)
	require.NoError(t, err)
	require.NoError(t, Excite(c2, f2, gal, 1, 9800))
	assert.InDelta(t, 10.0, c2.factor, 1e-12)
}

// TestModal 求解器选择与振型数上限
func TestModal(t *testing.T) {
	c := newFake(1, 4, 9, 16, 25, 36, 49)
	ms, err := Modal(c, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, ops.GenBandArpack, c.solver)
	assert.Equal(t, 5, c.eigenN)
	assert.InDelta(t, 2*math.Pi, ms.Periods[0], 1e-12)
	assert.InDelta(t, 3.0, ms.Omega[2], 1e-12)

	_, err = Modal(c, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, ops.FullGenLapack, c.solver)
	assert.Equal(t, 3, c.eigenN)

	assert.Equal(t, 1, ModeNum(4, 0))
	assert.Equal(t, 2, ModeNum(2, 5))

	_, err = Modal(newFake(-1), 1, 1)
	assert.Error(t, err)
}

// TestRayleigh 所选两阶振型处的阻尼比等于目标值
func TestRayleigh(t *testing.T) {
	omega := []float64{2, 5, 9}
	d := types.Damping{Enabled: true, Modes: [2]int{1, 3}, Ratios: [2]float64{0.05, 0.03}}
	co, err := Rayleigh(omega, d)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, co.Ratio(2), 1e-12)
	assert.InDelta(t, 0.03, co.Ratio(9), 1e-12)

	d.Modes = [2]int{2, 1}
	co, err = Rayleigh(omega, d)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, co.Ratio(5), 1e-12)
	assert.InDelta(t, 0.03, co.Ratio(2), 1e-12)

	// 单自由度 a = 0, b = 2ζ/ω
	co, err = Rayleigh([]float64{4}, types.DefaultDamping())
	require.NoError(t, err)
	assert.Equal(t, 0.0, co.A)
	assert.InDelta(t, 0.025, co.B, 1e-15)
	assert.InDelta(t, 0.05, co.Ratio(4), 1e-15)

	d.Modes = [2]int{2, 2}
	_, err = Rayleigh(omega, d)
	assert.True(t, types.IsConfigError(err))

	co, err = Rayleigh(omega, types.Damping{})
	require.NoError(t, err)
	assert.True(t, co.IsZero())
}

// TestApplyDamping 阻尼只施加在结构单元与结构节点
func TestApplyDamping(t *testing.T) {
	c := newFake()
	f, err := Build(c, threeStory(t))
	require.NoError(t, err)
	gm, _ := types.NewGroundMotion("gm", []float64{0, 1}, 0.01, types.UnitG)
	require.NoError(t, Excite(c, f, gm, 1, 9800))
	require.NoError(t, ApplyDamping(c, f, Coefficients{A: 0.3, B: 0.002}))
	assert.Equal(t, []int{1, 2, 3, 4}, c.selection.Nodes)
	assert.Equal(t, []int{1, 2, 3, 4}, c.selection.Elements)
	assert.Equal(t, ops.Rayleigh{AlphaM: 0.3, BetaKInit: 0.002}, c.damping)
}

// TestRecord 记录器文件名与节点
func TestRecord(t *testing.T) {
	c := newFake()
	f, err := Build(c, threeStory(t))
	require.NoError(t, err)
	assert.Error(t, Record(c, f, "out", "gm", 2))

	gm, _ := types.NewGroundMotion("gm", []float64{0, 1}, 0.01, types.UnitG)
	require.NoError(t, Excite(c, f, gm, 1, 9800))
	require.NoError(t, Record(c, f, "out", "gm", 2))
	require.Len(t, c.recorders, 10)
	assert.Equal(t, filepath.Join("out", "gm_base_reaction.txt"), c.recorders[0].File)
	assert.True(t, c.recorders[0].Time)
	assert.Equal(t, []int{6}, c.recorders[1].Nodes)
	assert.Equal(t, ops.RespAccel, c.recorders[4].Response)
	assert.Equal(t, []int{2, 3, 4}, c.recorders[6].Nodes)
	assert.Equal(t, []int{1, 2, 3, 4}, c.recorders[7].Elements)
	assert.Equal(t, filepath.Join("out", "mode_2.txt"), c.recorders[9].File)
	assert.Equal(t, 2, c.recorders[9].Mode)
}

// TestPrepare 在内置求解器上完成建模
func TestPrepare(t *testing.T) {
	dir := filepath.Join(t.TempDir(), result.DirName)
	gm, err := types.NewGroundMotion("gm", []float64{0, 0.1, -0.1, 0}, 0.01, types.UnitG)
	require.NoError(t, err)
	s := ops.NewSession(nil)
	p, err := Prepare(s, Plan{
		Model:    threeStory(t),
		Motion:   gm,
		SF:       1,
		G:        types.DefaultG,
		ModeNum:  3,
		Damping:  types.DefaultDamping(),
		Settings: types.DefaultSettings(),
		Dir:      dir,
	})
	require.NoError(t, err)
	defer s.Wipe()

	require.Equal(t, 3, p.ModeNum())
	T := p.Modes.Periods
	assert.Greater(t, T[0], T[1])
	assert.Greater(t, T[1], T[2])
	assert.Greater(t, T[2], 0.0)
	assert.InDelta(t, 0.05, p.Rayleigh.Ratio(p.Modes.Omega[0]), 1e-12)
	assert.InDelta(t, 0.05, p.Rayleigh.Ratio(p.Modes.Omega[1]), 1e-12)

	file, err := os.Open(result.PeriodsFile(dir))
	require.NoError(t, err)
	defer file.Close()
	var periods []float64
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		v, err := strconv.ParseFloat(sc.Text(), 64)
		require.NoError(t, err)
		periods = append(periods, v)
	}
	assert.Equal(t, T, periods)
	for _, ch := range result.Channels {
		assert.FileExists(t, ch.File(dir, "gm"))
	}

	// 阻尼振型超出求解范围
	_, err = Prepare(s, Plan{
		Model:    threeStory(t),
		Motion:   gm,
		G:        types.DefaultG,
		ModeNum:  3,
		Damping:  types.Damping{Enabled: true, Modes: [2]int{1, 4}},
		Settings: types.DefaultSettings(),
		Dir:      dir,
	})
	assert.True(t, types.IsConfigError(err))
}
