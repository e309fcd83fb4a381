package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"nlmdof"
	"nlmdof/types"
)

// Project TOML 工程文件
// 可选项使用指针，未给出时取默认值。
type Project struct {
	Model         ModelConfig          `toml:"model"`
	Materials     []MaterialConfig     `toml:"material"`
	GroundMotions []GroundMotionConfig `toml:"ground_motion"`
	Analysis      AnalysisConfig       `toml:"analysis"`
	Damping       DampingConfig        `toml:"damping"`
	Solver        SolverConfig         `toml:"solver"`

	dir string // 工程文件所在目录，地震动相对路径以此为基准
}

// ModelConfig 楼层质量与材料指派
type ModelConfig struct {
	Mass    []float64 `toml:"mass"`
	Stories [][]int   `toml:"stories"` // 每层的材料编号(从 1 开始)
}

// MaterialConfig 材料定义
type MaterialConfig struct {
	Name   string    `toml:"name"`
	Kind   string    `toml:"kind"`   // Elastic, Bilinear, Wen, ElastoPlastic, Viscous 或 Raw
	Type   string    `toml:"type"`   // Raw 时的求解器材料名
	Params []float64 `toml:"params"` // 参数，顺序同材料类型
}

// GroundMotionConfig 地震动文件
type GroundMotionConfig struct {
	File     string   `toml:"file"`
	Name     string   `toml:"name"`
	Dt       *float64 `toml:"dt"`
	Unit     string   `toml:"unit"`
	TimeAcc  bool     `toml:"time_acc"` // 两列: 时间 加速度
	SkipRows int      `toml:"skip_rows"`
	Scale    string   `toml:"scale"` // none, normalize, pga, factor
	Value    *float64 `toml:"value"` // 目标 PGA 或缩放系数
}

// AnalysisConfig 分析设置
type AnalysisConfig struct {
	SF                *float64 `toml:"sf"`
	G                 *float64 `toml:"g"`
	ModeNum           *int     `toml:"mode_num"`
	FreeVibration     *float64 `toml:"free_vibration"`
	ContinueOnFailure *bool    `toml:"continue_on_failure"`
	Dir               string   `toml:"dir"`
	Trace             bool     `toml:"trace"`
}

// DampingConfig Rayleigh 阻尼
type DampingConfig struct {
	Enabled *bool       `toml:"enabled"`
	Modes   *[2]int     `toml:"modes"`
	Ratios  *[2]float64 `toml:"ratios"`
}

// SolverConfig 求解设置
type SolverConfig struct {
	Constraints   string   `toml:"constraints"`
	Numberer      string   `toml:"numberer"`
	System        string   `toml:"system"`
	Test          string   `toml:"test"`
	Algorithm     string   `toml:"algorithm"`
	Integrator    string   `toml:"integrator"`
	PenaltyAlphaS *float64 `toml:"penalty_alpha_s"`
	PenaltyAlphaM *float64 `toml:"penalty_alpha_m"`
	Tolerance     *float64 `toml:"tolerance"`
	MaxIter       *int     `toml:"max_iter"`
	IntParam1     *float64 `toml:"int_param1"`
	IntParam2     *float64 `toml:"int_param2"`
	MaxFactor     *float64 `toml:"max_factor"`
	MinFactor     *float64 `toml:"min_factor"`
	DtRatio       *float64 `toml:"dt_ratio"`
}

// LoadProject 读取工程文件
func LoadProject(path string) (*Project, error) {
	if path == "" {
		return nil, fmt.Errorf("工程文件路径为空")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取工程文件失败: %w", err)
	}
	return DecodeProject(string(data), filepath.Dir(path))
}

// DecodeProject 解析工程文本，地震动相对路径以 dir 为基准；未知配置项视为错误
func DecodeProject(data, dir string) (*Project, error) {
	var p Project
	md, err := toml.Decode(data, &p)
	if err != nil {
		return nil, fmt.Errorf("解析工程文件失败: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, &types.ConfigError{Field: undecoded[0].String(), Msg: "未知配置项"}
	}
	p.dir = dir
	return &p, nil
}

// Setup 由工程文件得到的全部输入
type Setup struct {
	Analysis          *nlmdof.Analysis
	Motions           []*types.GroundMotion
	ContinueOnFailure bool
}

// BuildModel 建立模型
func (p *Project) BuildModel() (*types.Model, error) {
	m := types.NewModel(p.Model.Mass...)
	for i, mc := range p.Materials {
		mat, err := mc.Material()
		if err != nil {
			return nil, fmt.Errorf("material[%d]: %w", i+1, err)
		}
		m.AddMaterial(mc.Name, mat)
	}
	if len(p.Model.Stories) != m.N() {
		return nil, &types.ConfigError{Field: "model.stories", Msg: fmt.Sprintf("给出 %d 层材料指派，模型有 %d 层", len(p.Model.Stories), m.N())}
	}
	for i, tags := range p.Model.Stories {
		if err := m.AssignTags(i+1, tags...); err != nil {
			return nil, err
		}
	}
	return m, m.Validate()
}

// Material 创建材料
func (mc MaterialConfig) Material() (types.Material, error) {
	kind := types.ParseMaterialKind(mc.Kind)
	switch kind {
	case types.KindUnknown:
		return nil, &types.ConfigError{Field: "material.kind", Msg: "未知材料类型: " + mc.Kind}
	case types.KindRaw:
		return types.NewRawMaterial(mc.Type, mc.Params)
	}
	return types.NewMaterial(kind, mc.Params)
}

// Motion 读取并缩放地震动
func (gc GroundMotionConfig) Motion(dir string) (*types.GroundMotion, error) {
	if gc.File == "" {
		return nil, &types.ConfigError{Field: "ground_motion.file", Msg: "未指定地震动文件"}
	}
	path := gc.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	unit, err := types.ParseUnit(gc.Unit)
	if err != nil {
		return nil, err
	}
	mode, err := types.ParseScaleMode(gc.Scale)
	if err != nil {
		return nil, err
	}
	opt := types.ImportOptions{
		Name:     gc.Name,
		SkipRows: gc.SkipRows,
		TimeAcc:  gc.TimeAcc,
		Unit:     unit,
	}
	if opt.Name == "" {
		opt.Name = types.NameFromPath(path)
	}
	if gc.Dt != nil {
		opt.Dt = *gc.Dt
	} else if !gc.TimeAcc {
		return nil, &types.ConfigError{Field: "ground_motion.dt", Msg: opt.Name + ": 单列数据需要指定 dt"}
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, &types.ConfigError{Field: "ground_motion.file", Msg: err.Error()}
	}
	defer file.Close()
	gm, err := types.ReadGroundMotion(file, opt)
	if err != nil {
		return nil, err
	}
	value := 1.0
	if gc.Value != nil {
		value = *gc.Value
	}
	return gm.Scaled(mode, value)
}

// Settings 求解设置，未给出的项取默认值
func (sc SolverConfig) Settings() (types.SolverSettings, error) {
	s := types.DefaultSettings()
	var err error
	parse := func(v string, f func(string) error) {
		if err == nil && v != "" {
			err = f(v)
		}
	}
	parse(sc.Constraints, func(v string) (e error) { s.Constraints, e = types.ParseConstraints(v); return })
	parse(sc.Numberer, func(v string) (e error) { s.Numberer, e = types.ParseNumberer(v); return })
	parse(sc.System, func(v string) (e error) { s.System, e = types.ParseSystem(v); return })
	parse(sc.Test, func(v string) (e error) { s.Test, e = types.ParseTest(v); return })
	parse(sc.Algorithm, func(v string) (e error) { s.Algorithm, e = types.ParseAlgorithm(v); return })
	parse(sc.Integrator, func(v string) (e error) { s.Integrator, e = types.ParseIntegrator(v); return })
	if err != nil {
		return s, err
	}
	setFloat(&s.PenaltyAlphaS, sc.PenaltyAlphaS)
	setFloat(&s.PenaltyAlphaM, sc.PenaltyAlphaM)
	setFloat(&s.Tolerance, sc.Tolerance)
	setFloat(&s.IntParam1, sc.IntParam1)
	setFloat(&s.IntParam2, sc.IntParam2)
	setFloat(&s.MaxFactor, sc.MaxFactor)
	setFloat(&s.MinFactor, sc.MinFactor)
	setFloat(&s.DtRatio, sc.DtRatio)
	if sc.MaxIter != nil {
		s.MaxIter = *sc.MaxIter
	}
	return s, s.Validate()
}

// Damping 阻尼设置，未给出的项取默认值
func (dc DampingConfig) Damping() types.Damping {
	d := types.DefaultDamping()
	if dc.Enabled != nil {
		d.Enabled = *dc.Enabled
	}
	if dc.Modes != nil {
		d.Modes = *dc.Modes
	}
	if dc.Ratios != nil {
		d.Ratios = *dc.Ratios
	}
	return d
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Setup 建立模型、读取地震动并得到分析设置
// g 为环境变量给出的重力加速度，工程文件中的 g 优先。
func (p *Project) Setup(g float64, dir string) (*Setup, error) {
	m, err := p.BuildModel()
	if err != nil {
		return nil, err
	}
	if p.Analysis.Dir != "" {
		dir = p.Analysis.Dir
	}
	a := nlmdof.NewAnalysis(m, dir)
	if g > 0 {
		a.G = g
	}
	setFloat(&a.G, p.Analysis.G)
	setFloat(&a.SF, p.Analysis.SF)
	setFloat(&a.FreeVibration, p.Analysis.FreeVibration)
	if p.Analysis.ModeNum != nil {
		a.ModeNum = *p.Analysis.ModeNum
	}
	a.Trace = p.Analysis.Trace
	a.Damping = p.Damping.Damping()
	if a.Settings, err = p.Solver.Settings(); err != nil {
		return nil, err
	}
	s := &Setup{Analysis: a, ContinueOnFailure: true}
	if p.Analysis.ContinueOnFailure != nil {
		s.ContinueOnFailure = *p.Analysis.ContinueOnFailure
	}
	for i, gc := range p.GroundMotions {
		gm, err := gc.Motion(p.dir)
		if err != nil {
			return nil, fmt.Errorf("ground_motion[%d]: %w", i+1, err)
		}
		s.Motions = append(s.Motions, gm)
	}
	return s, a.Validate(s.Motions...)
}
