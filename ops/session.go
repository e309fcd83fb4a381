package ops

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"nlmdof/types"
)

// node 节点
type node struct {
	tag    int
	coords []float64
	mass   []float64
	fix    []bool
	eq     []EqID
	alphaM float64 // 质量比例阻尼系数
}

// value 节点指定自由度在向量 x 中的值，约束自由度为 0
func (n *node) value(dof int, x []float64) float64 {
	if eq := n.eq[dof]; eq > Fixed {
		return x[eq]
	}
	return 0
}

// zeroLength 零长度单元
type zeroLength struct {
	tag      int
	i, j     *node
	dir      int // 作用方向(从 0 开始)
	mat      uniaxial
	rayleigh bool     // 是否参与 Rayleigh 阻尼
	damp     Rayleigh // 区域指定的阻尼系数
	kc       float64  // 上次收敛时的切线刚度
}

// eqs 两端节点在作用方向上的方程编号
func (e *zeroLength) eqs() (EqID, EqID) {
	return e.i.eq[e.dir], e.j.eq[e.dir]
}

// dampingCoef 单元 Rayleigh 刚度比例阻尼
func (e *zeroLength) dampingCoef() float64 {
	if !e.rayleigh {
		return 0
	}
	return e.damp.BetaK*e.mat.tangent() + e.damp.BetaKInit*e.mat.initial() + e.damp.BetaKComm*e.kc
}

// pathSeries 等步长时程，线性插值
type pathSeries struct {
	dt     float64
	values []float64
	factor float64
}

// value 时刻 t 的值，超出范围为 0
func (p *pathSeries) value(t float64) float64 {
	n := len(p.values)
	x := t / p.dt
	if x < 0 || n == 0 {
		return 0
	}
	last := float64(n - 1)
	if x >= last {
		if x-last <= 1e-9 {
			return p.factor * p.values[n-1]
		}
		return 0
	}
	k := int(math.Floor(x))
	frac := x - float64(k)
	return p.factor * (p.values[k] + frac*(p.values[k+1]-p.values[k]))
}

// nodalLoad 节点荷载
type nodalLoad struct {
	node   *node
	values []float64
}

// pattern 荷载模式
type pattern struct {
	series *pathSeries
	fact   float64
	loads  []nodalLoad
}

// Session 内置求解器，实现 Capability
// 每个 Session 拥有独立的模型与分析状态，不能被多个分析同时使用。
type Session struct {
	Logger *log.Logger // 日志，nil 时不输出

	ndm, ndf  int
	nodes     map[int]*node
	materials map[int]types.Material
	elements  map[int]*zeroLength
	series    map[int]*pathSeries
	patterns  map[int]*pattern
	recorders []*recorder
	modes     map[int][][]float64 // 节点编号 -> 振型 -> 自由度

	nodeOrder []*node
	elemOrder []*zeroLength
	neq       int
	numbered  bool

	analysis *analysis
	started  bool
	time     float64
	U, V, A  []float64 // 已收敛的位移、速度、加速度
	err      error     // 记录失败，Wipe 前不再推进
}

var _ Capability = (*Session)(nil)

// NewSession 创建求解器
func NewSession(logger *log.Logger) *Session {
	s := &Session{Logger: logger}
	s.reset()
	return s
}

func (s *Session) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func (s *Session) reset() {
	s.ndm, s.ndf = 0, 0
	s.nodes = make(map[int]*node)
	s.materials = make(map[int]types.Material)
	s.elements = make(map[int]*zeroLength)
	s.series = make(map[int]*pathSeries)
	s.patterns = make(map[int]*pattern)
	s.recorders = nil
	s.modes = nil
	s.nodeOrder, s.elemOrder = nil, nil
	s.neq, s.numbered = 0, false
	s.analysis = nil
	s.started = false
	s.time = 0
	s.U, s.V, s.A = nil, nil, nil
	s.err = nil
}

// Wipe 清空全部状态并关闭记录文件
func (s *Session) Wipe() error {
	var errs []error
	for _, r := range s.recorders {
		errs = append(errs, r.close())
	}
	s.reset()
	return errors.Join(errs...)
}

// WipeAnalysis 清除分析设置
func (s *Session) WipeAnalysis() {
	s.analysis = nil
}

// Time 当前已收敛的时间
func (s *Session) Time() float64 { return s.time }

// Err 使分析无法继续的错误，步未收敛不在此列
func (s *Session) Err() error { return s.err }

func configErr(field, format string, args ...any) error {
	return &types.ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// editable 模型是否可修改
func (s *Session) editable() error {
	if s.ndf == 0 {
		return configErr("model", "未定义模型维数")
	}
	if s.started {
		return configErr("model", "分析开始后不能修改模型")
	}
	s.numbered = false
	return nil
}

// Model 定义维数与自由度数
func (s *Session) Model(ndm, ndf int) error {
	if ndm < 1 || ndm > 3 || ndf < 1 || ndf > 6 {
		return configErr("model", "维数或自由度数无效: ndm=%d ndf=%d", ndm, ndf)
	}
	if len(s.nodes) > 0 {
		return configErr("model", "已存在节点，需先 Wipe")
	}
	s.ndm, s.ndf = ndm, ndf
	return nil
}

// Node 定义节点
func (s *Session) Node(tag int, coords []float64, mass []float64) error {
	if err := s.editable(); err != nil {
		return err
	}
	if _, ok := s.nodes[tag]; ok {
		return configErr("node", "节点 %d 已存在", tag)
	}
	if len(coords) != s.ndm {
		return configErr("node", "节点 %d 坐标数应为 %d", tag, s.ndm)
	}
	n := &node{
		tag:    tag,
		coords: append([]float64(nil), coords...),
		mass:   make([]float64, s.ndf),
		fix:    make([]bool, s.ndf),
		eq:     make([]EqID, s.ndf),
	}
	s.nodes[tag] = n
	if len(mass) > 0 {
		return s.Mass(tag, mass...)
	}
	return nil
}

// Fix 约束节点自由度
func (s *Session) Fix(tag int, mask ...int) error {
	if err := s.editable(); err != nil {
		return err
	}
	n, ok := s.nodes[tag]
	if !ok {
		return configErr("fix", "节点 %d 不存在", tag)
	}
	if len(mask) != s.ndf {
		return configErr("fix", "节点 %d 约束数应为 %d", tag, s.ndf)
	}
	for i, v := range mask {
		n.fix[i] = v != 0
	}
	return nil
}

// Mass 设置节点质量
func (s *Session) Mass(tag int, mass ...float64) error {
	if err := s.editable(); err != nil {
		return err
	}
	n, ok := s.nodes[tag]
	if !ok {
		return configErr("mass", "节点 %d 不存在", tag)
	}
	if len(mass) > s.ndf {
		return configErr("mass", "节点 %d 质量数超过自由度数 %d", tag, s.ndf)
	}
	for i, v := range mass {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return configErr("mass", "节点 %d 质量无效: %g", tag, v)
		}
		n.mass[i] = v
	}
	return nil
}

// UniaxialMaterial 定义材料
func (s *Session) UniaxialMaterial(tag int, m types.Material) error {
	if err := s.editable(); err != nil {
		return err
	}
	if _, ok := s.materials[tag]; ok {
		return configErr("material", "材料 %d 已存在", tag)
	}
	// 提前检查能否创建
	if _, err := newUniaxial(m); err != nil {
		return err
	}
	s.materials[tag] = m
	return nil
}

// ZeroLength 定义零长度单元
func (s *Session) ZeroLength(tag, iNode, jNode, matTag, dir int, rayleigh bool) error {
	if err := s.editable(); err != nil {
		return err
	}
	if _, ok := s.elements[tag]; ok {
		return configErr("element", "单元 %d 已存在", tag)
	}
	ni, ok1 := s.nodes[iNode]
	nj, ok2 := s.nodes[jNode]
	if !ok1 || !ok2 {
		return configErr("element", "单元 %d 的节点不存在", tag)
	}
	def, ok := s.materials[matTag]
	if !ok {
		return configErr("element", "单元 %d 的材料 %d 不存在", tag, matTag)
	}
	if dir < 1 || dir > s.ndf {
		return configErr("element", "单元 %d 方向 %d 超出范围", tag, dir)
	}
	m, err := newUniaxial(def)
	if err != nil {
		return err
	}
	s.elements[tag] = &zeroLength{tag: tag, i: ni, j: nj, dir: dir - 1, mat: m, rayleigh: rayleigh, kc: m.initial()}
	return nil
}

// TimeSeriesPath 定义时程
func (s *Session) TimeSeriesPath(tag int, dt float64, values []float64, factor float64) error {
	if _, ok := s.series[tag]; ok {
		return configErr("timeSeries", "时程 %d 已存在", tag)
	}
	if dt <= 0 || len(values) == 0 {
		return configErr("timeSeries", "时程 %d 的步长或数据无效", tag)
	}
	s.series[tag] = &pathSeries{dt: dt, values: append([]float64(nil), values...), factor: factor}
	return nil
}

// Pattern 定义荷载模式
func (s *Session) Pattern(tag, seriesTag int, fact float64) error {
	if _, ok := s.patterns[tag]; ok {
		return configErr("pattern", "荷载模式 %d 已存在", tag)
	}
	ts, ok := s.series[seriesTag]
	if !ok {
		return configErr("pattern", "时程 %d 不存在", seriesTag)
	}
	s.patterns[tag] = &pattern{series: ts, fact: fact}
	return nil
}

// Load 添加节点荷载
func (s *Session) Load(patternTag, nodeTag int, values ...float64) error {
	p, ok := s.patterns[patternTag]
	if !ok {
		return configErr("load", "荷载模式 %d 不存在", patternTag)
	}
	n, ok := s.nodes[nodeTag]
	if !ok {
		return configErr("load", "节点 %d 不存在", nodeTag)
	}
	if len(values) != s.ndf {
		return configErr("load", "节点 %d 荷载数应为 %d", nodeTag, s.ndf)
	}
	p.loads = append(p.loads, nodalLoad{node: n, values: append([]float64(nil), values...)})
	return nil
}

// Region 指定 Rayleigh 阻尼
// 节点使用 AlphaM，单元使用刚度比例部分，仅对参与 Rayleigh 阻尼的单元生效。
func (s *Session) Region(tag int, sel Selection, r Rayleigh) error {
	for _, t := range sel.Nodes {
		if _, ok := s.nodes[t]; !ok {
			return configErr("region", "区域 %d 的节点 %d 不存在", tag, t)
		}
	}
	for _, t := range sel.Elements {
		if _, ok := s.elements[t]; !ok {
			return configErr("region", "区域 %d 的单元 %d 不存在", tag, t)
		}
	}
	for _, t := range sel.Nodes {
		s.nodes[t].alphaM = r.AlphaM
	}
	for _, t := range sel.Elements {
		s.elements[t].damp = r
	}
	return nil
}

// number 按节点编号顺序为自由自由度分配方程编号
func (s *Session) number() {
	if s.numbered {
		return
	}
	s.nodeOrder = s.nodeOrder[:0]
	for _, n := range s.nodes {
		s.nodeOrder = append(s.nodeOrder, n)
	}
	sort.Slice(s.nodeOrder, func(a, b int) bool { return s.nodeOrder[a].tag < s.nodeOrder[b].tag })
	s.elemOrder = s.elemOrder[:0]
	for _, e := range s.elements {
		s.elemOrder = append(s.elemOrder, e)
	}
	sort.Slice(s.elemOrder, func(a, b int) bool { return s.elemOrder[a].tag < s.elemOrder[b].tag })
	eq := 0
	for _, n := range s.nodeOrder {
		for d := range n.eq {
			if n.fix[d] {
				n.eq[d] = Fixed
				continue
			}
			n.eq[d] = EqID(eq)
			eq++
		}
	}
	s.neq = eq
	s.U = make([]float64, eq)
	s.V = make([]float64, eq)
	s.A = make([]float64, eq)
	s.numbered = true
}

// loads 时刻 t 的外荷载向量
func (s *Session) loads(sys *system, t float64) {
	for _, p := range s.patterns {
		f := p.fact * p.series.value(t)
		if f == 0 {
			continue
		}
		for _, l := range p.loads {
			for d, v := range l.values {
				sys.stampRightSide(l.node.eq[d], f*v)
			}
		}
	}
}

// setTrial 按位移与速度更新全部单元的试探状态
func (s *Session) setTrial(u, v []float64) error {
	for _, e := range s.elemOrder {
		eps := e.j.value(e.dir, u) - e.i.value(e.dir, u)
		rate := e.j.value(e.dir, v) - e.i.value(e.dir, v)
		if err := e.mat.setTrial(eps, rate); err != nil {
			return fmt.Errorf("单元 %d: %w", e.tag, err)
		}
	}
	return nil
}

// stepFinished 步结束，收敛时保存状态，否则回滚
func (s *Session) stepFinished(ok bool) {
	for _, e := range s.elemOrder {
		if ok {
			e.mat.commit()
			e.kc = e.mat.tangent()
		} else {
			e.mat.revert()
		}
	}
}
