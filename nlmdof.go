package nlmdof

import (
	"errors"
	"fmt"
	"log"

	"nlmdof/builder"
	"nlmdof/driver"
	"nlmdof/ops"
	"nlmdof/result"
	"nlmdof/types"
)

// Analysis 剪切层模型的非线性时程分析设置，对每条地震动相同
type Analysis struct {
	Model         *types.Model
	SF            float64 // 地震动放大系数
	G             float64 // 重力加速度(模型单位)
	ModeNum       int     // 请求的振型数
	Damping       types.Damping
	Settings      types.SolverSettings
	FreeVibration float64        // 自由振动时长，地震动末尾补 0
	Dir           string         // 结果目录
	Logger        *log.Logger    // 日志，nil 时不输出
	Trace         bool           // 记录每次步长尝试
	Cache         *result.Loader // 时程结果缓存，nil 时每次读取文件
}

// NewAnalysis 默认设置: 放大系数 1、g=9800、3 阶振型、1/2 阶 5% 阻尼
func NewAnalysis(m *types.Model, dir string) *Analysis {
	a := &Analysis{
		Model:    m,
		SF:       1,
		G:        types.DefaultG,
		ModeNum:  3,
		Damping:  types.DefaultDamping(),
		Settings: types.DefaultSettings(),
		Dir:      dir,
	}
	if cache, err := result.NewLoader(result.DefaultCacheSize); err == nil {
		a.Cache = cache
	}
	return a
}

// Report 一条地震动的分析结果
type Report struct {
	Motion   *types.GroundMotion // 实际计算的地震动(含自由振动段)
	Outcome  driver.Outcome
	Periods  []float64
	Rayleigh builder.Coefficients
	Trace    *driver.Trace
}

// Name 地震动名称
func (r *Report) Name() string { return r.Motion.Name }

// Grid 结果时间网格
func (r *Report) Grid() result.Grid { return result.GridOf(r.Motion) }

func (a *Analysis) logf(format string, args ...any) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}

// plan 地震动 gm 的建模输入
func (a *Analysis) plan(gm *types.GroundMotion) builder.Plan {
	return builder.Plan{
		Model:    a.Model,
		Motion:   gm,
		SF:       a.SF,
		G:        a.G,
		ModeNum:  a.ModeNum,
		Damping:  a.Damping,
		Settings: a.Settings,
		Dir:      a.Dir,
		Logger:   a.Logger,
	}
}

// Validate 检查全部地震动的输入，任何一条不合法都不开始计算
func (a *Analysis) Validate(motions ...*types.GroundMotion) error {
	if len(motions) == 0 {
		return &types.ConfigError{Field: "ground_motion", Msg: "未选择地震动"}
	}
	seen := make(map[string]bool, len(motions))
	for _, gm := range motions {
		if gm == nil {
			return &types.ConfigError{Field: "ground_motion", Msg: "地震动为空"}
		}
		if seen[gm.Name] {
			return &types.ConfigError{Field: "ground_motion.name", Msg: fmt.Sprintf("地震动名称重复: %s", gm.Name)}
		}
		seen[gm.Name] = true
		p := a.plan(gm)
		if err := p.Validate(); err != nil {
			return err
		}
		if err := driver.NewParams(gm, a.Settings).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Run 对一条地震动完成建模、模态分析、时程分析与清理
// 未收敛不是错误，由 Report.Outcome 给出；返回后记录文件已全部写出。
func (a *Analysis) Run(c ops.Capability, gm *types.GroundMotion) (*Report, error) {
	if gm == nil {
		return nil, &types.ConfigError{Field: "ground_motion", Msg: "地震动为空"}
	}
	gm = gm.WithFreeVibration(a.FreeVibration)
	if a.Cache != nil {
		a.Cache.Forget(a.Dir, gm.Name)
	}
	prep, err := builder.Prepare(c, a.plan(gm))
	if err != nil {
		return nil, errors.Join(err, c.Wipe())
	}
	d := driver.Driver{Logger: a.Logger}
	if a.Trace {
		d.Trace = &driver.Trace{}
	}
	out, err := d.Run(c, driver.NewParams(gm, a.Settings))
	c.WipeAnalysis()
	if werr := c.Wipe(); err == nil && werr != nil {
		err = fmt.Errorf("%s: 关闭记录文件: %w", gm.Name, werr)
	}
	if err != nil {
		return nil, err
	}
	if out.Converged() {
		a.logf("========== 分析完成 ==========")
	} else {
		a.logf("========== 分析未收敛 ==========")
	}
	return &Report{
		Motion:   gm,
		Outcome:  out,
		Periods:  prep.Modes.Periods,
		Rayleigh: prep.Rayleigh,
		Trace:    d.Trace,
	}, nil
}

// Load 读取报告对应的时程结果
// 可以在其他 goroutine 计算下一条地震动时调用，不能读取正在计算的地震动。
func (a *Analysis) Load(r *Report) (*result.Results, error) {
	return a.load(r.Name(), r.Grid())
}

// LoadMotion 读取地震动 gm 上次计算的时程结果
func (a *Analysis) LoadMotion(gm *types.GroundMotion) (*result.Results, error) {
	return a.load(gm.Name, result.GridOf(gm.WithFreeVibration(a.FreeVibration)))
}

func (a *Analysis) load(name string, grid result.Grid) (*result.Results, error) {
	layout := a.Model.Layout()
	if a.Cache == nil {
		return result.Assemble(a.Dir, name, grid, layout)
	}
	return a.Cache.Load(a.Dir, name, grid, layout)
}

// Modes 读取模态结果
func (a *Analysis) Modes() (*result.ModeResults, error) {
	return result.AssembleModes(a.Dir, builder.ModeNum(a.Model.N(), a.ModeNum), a.Model.N())
}
