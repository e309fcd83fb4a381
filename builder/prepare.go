package builder

import (
	"fmt"
	"log"
	"math"

	"nlmdof/ops"
	"nlmdof/types"
)

// Plan 一条地震动的建模输入
type Plan struct {
	Model    *types.Model
	Motion   *types.GroundMotion
	SF       float64 // 地震动放大系数
	G        float64 // 重力加速度(模型单位)
	ModeNum  int     // 请求的振型数
	Damping  types.Damping
	Settings types.SolverSettings
	Dir      string      // 结果目录
	Logger   *log.Logger // 日志，nil 时不输出
}

// Validate 求解前检查全部输入
func (p *Plan) Validate() error {
	if p.Model == nil {
		return &types.ConfigError{Field: "model", Msg: "未定义模型"}
	}
	if err := p.Model.Validate(); err != nil {
		return err
	}
	if p.Motion == nil {
		return &types.ConfigError{Field: "ground_motion", Msg: "未选择地震动"}
	}
	if err := p.Motion.Validate(); err != nil {
		return err
	}
	if p.SF == 0 || math.IsNaN(p.SF) || math.IsInf(p.SF, 0) {
		return &types.ConfigError{Field: "sf", Msg: fmt.Sprintf("地震动放大系数无效: %g", p.SF)}
	}
	if !(p.G > 0) {
		return &types.ConfigError{Field: "g", Msg: "重力加速度必须大于0"}
	}
	if p.ModeNum < 1 {
		return &types.ConfigError{Field: "mode_num", Msg: "振型数必须大于0"}
	}
	if err := p.Damping.Validate(p.Model.N(), p.ModeNum); err != nil {
		return err
	}
	if p.Dir == "" {
		return &types.ConfigError{Field: "dir", Msg: "未指定结果目录"}
	}
	return p.Settings.Validate()
}

// Prepared 建模完成、可以开始时程分析的状态
type Prepared struct {
	Frame    *Frame
	Modes    *Modes
	Rayleigh Coefficients
}

// ModeNum 已求解的振型数
func (p *Prepared) ModeNum() int { return len(p.Modes.Periods) }

func (p *Plan) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// Prepare 按顺序完成建模、模态分析、阻尼、加载、记录器与分析设置
// 特征值分析在加入辅助单自由度之前进行，周期写入 Periods.txt。
func Prepare(c ops.Capability, p Plan) (*Prepared, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.logf("========== 分析开始 ==========")
	p.logf("层数: %d", p.Model.N())
	p.logf("质量: %v", p.Model.Mass)
	for _, e := range p.Model.Library.Entries() {
		p.logf("材料 %d: %s", e.Tag, e.Material.Label())
	}
	p.logf("材料指派: %v", p.Model.Layout())
	p.logf("地震动: %s, 步长 %g, 步数 %d", p.Motion.Name, p.Motion.Dt, p.Motion.NPTS())

	f, err := Build(c, p.Model)
	if err != nil {
		return nil, err
	}
	ms, err := Modal(c, f.N, p.ModeNum)
	if err != nil {
		return nil, err
	}
	for i, t := range ms.Periods {
		p.logf("T%d = %g", i+1, t)
	}
	if err := WritePeriods(p.Dir, ms.Periods); err != nil {
		return nil, err
	}
	if err := Excite(c, f, p.Motion, p.SF, p.G); err != nil {
		return nil, err
	}
	co, err := Rayleigh(ms.Omega, p.Damping)
	if err != nil {
		return nil, err
	}
	if p.Damping.Enabled {
		p.logf("阻尼: a = %g, b = %g", co.A, co.B)
		if err := ApplyDamping(c, f, co); err != nil {
			return nil, err
		}
	} else {
		p.logf("无阻尼")
	}
	if err := Record(c, f, p.Dir, p.Motion.Name, len(ms.Periods)); err != nil {
		return nil, err
	}
	if err := c.Analysis(p.Settings); err != nil {
		return nil, err
	}
	return &Prepared{Frame: f, Modes: ms, Rayleigh: co}, nil
}
