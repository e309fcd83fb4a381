package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlmdof/result"
	"nlmdof/types"
)

const project = `
[model]
mass = [2, 1, 1]
stories = [[1], [2], [2, 3]]

[[material]]
name = "s1"
kind = "Bilinear"
params = [3000, 1500, 0.02]

[[material]]
kind = "bilinear"
params = [2000, 1000, 0.02]

[[material]]
name = "steel01"
kind = "Raw"
type = "Steel01"
params = [100, 50, 0.1]

[[ground_motion]]
file = "a.txt"
dt = 0.02
unit = "cm/s^2"
scale = "pga"
value = 0.3

[[ground_motion]]
file = "b.txt"
name = "b2"
time_acc = true
skip_rows = 1

[analysis]
sf = 2
mode_num = 2
free_vibration = 1.5
continue_on_failure = false

[damping]
modes = [1, 2]
ratios = [0.02, 0.03]

[solver]
algorithm = "NewtonLineSearch"
test = "EnergyIncr"
tolerance = 1e-8
max_iter = 100
min_factor = 1e-4
`

// writeMotions 写入两条地震动
func writeMotions(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("0\n10\n-20\n5\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("t a\n0 0\n0.01 0.1\n0.02 -0.2\n"), 0o644))
}

// TestProject 工程文件得到完整的分析输入
func TestProject(t *testing.T) {
	dir := t.TempDir()
	writeMotions(t, dir)
	path := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(project), 0o644))

	p, err := LoadProject(path)
	require.NoError(t, err)
	s, err := p.Setup(types.DefaultG, filepath.Join(dir, result.DirName))
	require.NoError(t, err)

	a := s.Analysis
	assert.Equal(t, 3, a.Model.N())
	assert.Equal(t, types.Layout{{1}, {2}, {2, 3}}, a.Model.Layout())
	assert.Equal(t, 2.0, a.SF)
	assert.Equal(t, types.DefaultG, a.G)
	assert.Equal(t, 2, a.ModeNum)
	assert.Equal(t, 1.5, a.FreeVibration)
	assert.Equal(t, [2]float64{0.02, 0.03}, a.Damping.Ratios)
	assert.True(t, a.Damping.Enabled)
	assert.Equal(t, types.AlgorithmNewtonLineSearch, a.Settings.Algorithm)
	assert.Equal(t, types.TestEnergyIncr, a.Settings.Test)
	assert.Equal(t, 1e-8, a.Settings.Tolerance)
	assert.Equal(t, 100, a.Settings.MaxIter)
	assert.Equal(t, 1e-4, a.Settings.MinFactor)
	assert.Equal(t, types.DefaultMaxFactor, a.Settings.MaxFactor)
	assert.False(t, s.ContinueOnFailure)

	entries := a.Model.Library.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "s1", entries[0].Name)
	assert.Equal(t, types.KindRaw, entries[2].Material.Kind())

	require.Len(t, s.Motions, 2)
	gm := s.Motions[0]
	assert.Equal(t, "a", gm.Name)
	assert.Equal(t, 0.02, gm.Dt)
	assert.Equal(t, types.UnitCMS2, gm.Unit)
	assert.InDelta(t, -0.3, gm.Accel[2], 1e-15)
	assert.InDelta(t, 0.15, gm.Accel[1], 1e-15)

	gm = s.Motions[1]
	assert.Equal(t, "b2", gm.Name)
	assert.Equal(t, 0.01, gm.Dt)
	assert.Equal(t, []float64{0, 0.1, -0.2}, gm.Accel)
}

// TestProjectDefaults 未给出的项取默认值
func TestProjectDefaults(t *testing.T) {
	dir := t.TempDir()
	writeMotions(t, dir)
	p, err := DecodeProject(`
[model]
mass = [1]
stories = [[1]]

[[material]]
kind = "Elastic"
params = [100]

[[ground_motion]]
file = "a.txt"
dt = 0.01
`, dir)
	require.NoError(t, err)
	s, err := p.Setup(9810, "out")
	require.NoError(t, err)
	assert.Equal(t, 9810.0, s.Analysis.G)
	assert.Equal(t, "out", s.Analysis.Dir)
	assert.Equal(t, 1.0, s.Analysis.SF)
	assert.Equal(t, 3, s.Analysis.ModeNum)
	assert.Equal(t, types.DefaultDamping(), s.Analysis.Damping)
	assert.Equal(t, types.DefaultSettings(), s.Analysis.Settings)
	assert.True(t, s.ContinueOnFailure)
	assert.Equal(t, []float64{0, 10, -20, 5}, s.Motions[0].Accel)
}

// TestProjectErrors 配置错误在计算前报告
func TestProjectErrors(t *testing.T) {
	dir := t.TempDir()
	writeMotions(t, dir)
	base := `
[model]
mass = [1, 1]
stories = [[1], [1]]

[[material]]
kind = "Elastic"
params = [100]
`
	cases := map[string]string{
		"未知配置项":  base + "\n[analysis]\nbogus = 1\n",
		"未知材料":   "[[material]]\nkind = \"Foo\"\nparams = [1]\n",
		"参数个数":   "[model]\nmass = [1]\nstories = [[1]]\n[[material]]\nkind = \"Bilinear\"\nparams = [1, 2]\n",
		"楼层数不符":  "[model]\nmass = [1, 1]\nstories = [[1]]\n[[material]]\nkind = \"Elastic\"\nparams = [1]\n",
		"缺少 dt":  base + "\n[[ground_motion]]\nfile = \"a.txt\"\n",
		"文件不存在":  base + "\n[[ground_motion]]\nfile = \"none.txt\"\ndt = 0.01\n",
		"未知算法":   base + "\n[[ground_motion]]\nfile = \"a.txt\"\ndt = 0.01\n[solver]\nalgorithm = \"Foo\"\n",
		"阻尼振型相同": base + "\n[[ground_motion]]\nfile = \"a.txt\"\ndt = 0.01\n[damping]\nmodes = [2, 2]\n",
		"放大系数为0": base + "\n[[ground_motion]]\nfile = \"a.txt\"\ndt = 0.01\n[analysis]\nsf = 0\n",
		"没有地震动":  base,
	}
	for name, text := range cases {
		p, err := DecodeProject(text, dir)
		if err == nil {
			_, err = p.Setup(types.DefaultG, "out")
		}
		assert.True(t, types.IsConfigError(err), "%s: %v", name, err)
	}
}

// TestEnv 环境变量覆盖默认值
func TestEnv(t *testing.T) {
	t.Setenv(EnvTemp, "/tmp/nlmdof-test")
	assert.Equal(t, filepath.Join("/tmp/nlmdof-test", result.DirName), ResultsDir())

	t.Setenv(EnvG, "9810")
	g, err := G()
	require.NoError(t, err)
	assert.Equal(t, 9810.0, g)
	t.Setenv(EnvG, "-1")
	_, err = G()
	assert.True(t, types.IsConfigError(err))
	t.Setenv(EnvG, "")
	g, err = G()
	require.NoError(t, err)
	assert.Equal(t, types.DefaultG, g)

	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv(EnvDB, "")
	assert.Equal(t, filepath.Join("/data", "nlmdof", "history.db"), DefaultDBPath())

	// .env 不覆盖已设置的变量
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("NLMDOF_DB=/from/env.db\nNLMDOF_TEMP=/ignored\n"), 0o644))
	t.Setenv(EnvDB, "")
	require.NoError(t, os.Unsetenv(EnvDB))
	LoadEnv(env)
	assert.Equal(t, "/from/env.db", DefaultDBPath())
	assert.Equal(t, "/tmp/nlmdof-test", TempRoot())
}
