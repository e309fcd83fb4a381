package builder

import (
	"fmt"
	"math"

	"nlmdof/ops"
	"nlmdof/result"
	"nlmdof/types"
)

// 固定编号
const (
	BaseNode  = 1 // 基底节点
	seriesTag = 1 // 地震动时程
	regionTag = 1 // Rayleigh 阻尼区域
)

// Frame 已在求解器中定义的剪切层结构
type Frame struct {
	N        int       // 楼层数
	Mass     []float64 // 楼层质量
	Nodes    []int     // 基底及楼层节点 1..N+1
	Floors   []int     // 楼层节点 2..N+1
	Elements [][]int   // 每层弹簧单元编号，按创建顺序
	Static   int       // 辅助单自由度的质量节点，0 表示未定义

	nextNode     int
	nextMaterial int
	nextElement  int
}

// AllElements 全部结构单元，按创建顺序
func (f *Frame) AllElements() []int {
	var all []int
	for _, es := range f.Elements {
		all = append(all, es...)
	}
	return all
}

// Count 弹簧总数
func (f *Frame) Count() int { return len(f.AllElements()) }

// Build 重置求解器并定义剪切层结构
// 节点 1 为固定基底，楼层 i 对应节点 i+1，只保留水平自由度；每层每个材料对应一根零长度弹簧，
// 连接下层节点与本层节点，参与 Rayleigh 阻尼。
func Build(c ops.Capability, m *types.Model) (*Frame, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := c.Wipe(); err != nil {
		return nil, fmt.Errorf("重置求解器: %w", err)
	}
	if err := c.Model(2, 3); err != nil {
		return nil, err
	}
	n := m.N()
	f := &Frame{N: n, Mass: append([]float64(nil), m.Mass...)}
	// 节点
	if err := c.Node(BaseNode, []float64{0, 0}, nil); err != nil {
		return nil, err
	}
	if err := c.Fix(BaseNode, 1, 1, 1); err != nil {
		return nil, err
	}
	f.Nodes = append(f.Nodes, BaseNode)
	for i := 0; i < n; i++ {
		tag := i + 2
		if err := c.Node(tag, []float64{0, 0}, []float64{m.Mass[i], 0, 0}); err != nil {
			return nil, err
		}
		if err := c.Fix(tag, 0, 1, 1); err != nil {
			return nil, err
		}
		f.Nodes = append(f.Nodes, tag)
		f.Floors = append(f.Floors, tag)
	}
	f.nextNode = n + 2
	// 材料
	entries := m.Library.Entries()
	for _, e := range entries {
		if err := c.UniaxialMaterial(e.Tag, e.Material); err != nil {
			return nil, fmt.Errorf("材料 %d(%s): %w", e.Tag, e.Name, err)
		}
	}
	f.nextMaterial = len(entries) + 1
	// 单元
	f.nextElement = 1
	f.Elements = make([][]int, n)
	for i := 0; i < n; i++ {
		for _, mat := range m.StoryTags(i + 1) {
			if err := c.ZeroLength(f.nextElement, i+1, i+2, mat, 1, true); err != nil {
				return nil, err
			}
			f.Elements[i] = append(f.Elements[i], f.nextElement)
			f.nextElement++
		}
	}
	return f, nil
}

// Excite 定义地震动荷载
// 按达朗贝尔原理在楼层施加 -m·ag，另设质量为 AuxMassRatio·max(m)、刚度为 0 的辅助单自由度，
// 施加 +M·ag，其位移、速度、加速度即为地面的绝对响应。
func Excite(c ops.Capability, f *Frame, gm *types.GroundMotion, sf, g float64) error {
	if err := gm.Validate(); err != nil {
		return err
	}
	if f.Static != 0 {
		return &types.ConfigError{Field: "ground_motion", Msg: "地震动荷载已定义"}
	}
	factor := sf * g * gm.Unit.ScaleToGWith(g)
	if err := c.TimeSeriesPath(seriesTag, gm.Dt, gm.Accel, factor); err != nil {
		return err
	}
	for i := 0; i < f.N; i++ {
		if err := c.Pattern(i+1, seriesTag, -f.Mass[i]); err != nil {
			return err
		}
		if err := c.Load(i+1, f.Floors[i], 1, 0, 0); err != nil {
			return err
		}
	}
	// 辅助单自由度
	large := types.AuxMassRatio * maxOf(f.Mass)
	fixed, static := f.nextNode, f.nextNode+1
	if err := c.Node(fixed, []float64{0, 0}, nil); err != nil {
		return err
	}
	if err := c.Node(static, []float64{0, 0}, nil); err != nil {
		return err
	}
	if err := c.Fix(fixed, 1, 1, 1); err != nil {
		return err
	}
	if err := c.Fix(static, 0, 1, 1); err != nil {
		return err
	}
	if err := c.Mass(static, large, 0, 0); err != nil {
		return err
	}
	if err := c.UniaxialMaterial(f.nextMaterial, types.Elastic{E: 0}); err != nil {
		return err
	}
	if err := c.ZeroLength(f.nextElement, fixed, static, f.nextMaterial, 1, false); err != nil {
		return err
	}
	if err := c.Pattern(f.N+1, seriesTag, large); err != nil {
		return err
	}
	if err := c.Load(f.N+1, static, 1, 0, 0); err != nil {
		return err
	}
	f.Static = static
	f.nextNode += 2
	f.nextMaterial++
	f.nextElement++
	return nil
}

// Record 定义地震动 gm 的全部记录器，modeNum 为已求解的振型数
func Record(c ops.Capability, f *Frame, dir, gm string, modeNum int) error {
	if f.Static == 0 {
		return &types.ConfigError{Field: "recorder", Msg: "未定义地震动荷载"}
	}
	specs := []ops.RecorderSpec{
		{File: result.BaseReaction.File(dir, gm), Time: true, Nodes: []int{BaseNode}, DOF: 1, Response: ops.RespReaction},
		{File: result.BaseAcc.File(dir, gm), Nodes: []int{f.Static}, DOF: 1, Response: ops.RespAccel},
		{File: result.BaseVel.File(dir, gm), Nodes: []int{f.Static}, DOF: 1, Response: ops.RespVel},
		{File: result.BaseDisp.File(dir, gm), Nodes: []int{f.Static}, DOF: 1, Response: ops.RespDisp},
		{File: result.FloorAcc.File(dir, gm), Nodes: f.Floors, DOF: 1, Response: ops.RespAccel},
		{File: result.FloorVel.File(dir, gm), Nodes: f.Floors, DOF: 1, Response: ops.RespVel},
		{File: result.FloorDisp.File(dir, gm), Nodes: f.Floors, DOF: 1, Response: ops.RespDisp},
		{File: result.Material.File(dir, gm), Elements: f.AllElements(), Response: ops.RespStressStrain},
	}
	for k := 1; k <= modeNum; k++ {
		specs = append(specs, ops.RecorderSpec{File: result.ModeFile(dir, k), Nodes: f.Floors, DOF: 1, Response: ops.RespEigen, Mode: k})
	}
	for _, s := range specs {
		if err := c.Recorder(s); err != nil {
			return err
		}
	}
	return nil
}

func maxOf(v []float64) float64 {
	m := 0.0
	for _, x := range v {
		m = math.Max(m, x)
	}
	return m
}
