package result

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nlmdof/types"
)

// Results 一条地震动的时程结果，创建后不再修改
// Loader 缓存的结果由多个调用方共享，字段只能读取；需要修改时使用 Relative、Base 等返回的副本。
// 楼层矩阵每行对应一个时刻、每列对应一层；弹簧矩阵每根弹簧占两列(力, 变形)，
// 按创建顺序排列: 先按楼层，再按层内顺序。
type Results struct {
	Name         string
	T            []float64  // 时间 k·dt，长度 NPTS+1
	BaseAcc      []float64  // 基底绝对加速度
	BaseVel      []float64  // 基底绝对速度
	BaseDisp     []float64  // 基底绝对位移
	BaseReaction []float64  // 基底反力
	FloorAcc     *mat.Dense // 楼层相对加速度
	FloorVel     *mat.Dense // 楼层相对速度
	FloorDisp    *mat.Dense // 楼层相对位移
	Springs      *mat.Dense // 弹簧 力-变形
	Layout       types.Layout
}

// N 楼层数
func (r *Results) N() int {
	_, c := r.FloorDisp.Dims()
	return c
}

// NPTS 步数
func (r *Results) NPTS() int { return len(r.T) - 1 }

// Validate 检查各部分形状一致
func (r *Results) Validate() error {
	rows := len(r.T)
	if rows == 0 {
		return fmt.Errorf("%s: 时间序列为空", r.Name)
	}
	for name, v := range map[string][]float64{"base_acc": r.BaseAcc, "base_vel": r.BaseVel, "base_disp": r.BaseDisp, "base_reaction": r.BaseReaction} {
		if len(v) != rows {
			return fmt.Errorf("%s: %s 长度 %d，应为 %d", r.Name, name, len(v), rows)
		}
	}
	n := len(r.Layout)
	for name, m := range map[string]*mat.Dense{"floor_acc": r.FloorAcc, "floor_vel": r.FloorVel, "floor_disp": r.FloorDisp} {
		if m == nil {
			return fmt.Errorf("%s: 缺少 %s", r.Name, name)
		}
		if rr, c := m.Dims(); rr != rows || c != n {
			return fmt.Errorf("%s: %s 为 %d×%d，应为 %d×%d", r.Name, name, rr, c, rows, n)
		}
	}
	if r.Springs == nil {
		return fmt.Errorf("%s: 缺少弹簧记录", r.Name)
	}
	if rr, c := r.Springs.Dims(); rr != rows || c != 2*r.Layout.Count() {
		return fmt.Errorf("%s: 弹簧记录为 %d×%d，应为 %d×%d", r.Name, rr, c, rows, 2*r.Layout.Count())
	}
	return nil
}

// Grid 地震动时间网格
type Grid struct {
	Dt   float64
	NPTS int
}

// Times 时间点 k·dt，k = 0..NPTS
func (g Grid) Times() []float64 {
	t := make([]float64, g.NPTS+1)
	for k := range t {
		t[k] = float64(k) * g.Dt
	}
	return t
}

// GridOf 地震动的时间网格
func GridOf(gm *types.GroundMotion) Grid { return Grid{Dt: gm.Dt, NPTS: gm.NPTS()} }

// Assemble 读取地震动 name 的全部通道并插值到时间网格上
// 任何通道缺失、格式错误或形状不符都返回 NotFoundError。
func Assemble(dir, name string, grid Grid, layout types.Layout) (*Results, error) {
	n := len(layout)
	reactionPath := BaseReaction.File(dir, name)
	reaction, err := readTable(name, reactionPath)
	if err != nil {
		return nil, err
	}
	if err := columnsOf(name, reactionPath, reaction, 2); err != nil {
		return nil, err
	}
	rows, _ := reaction.Dims()
	t := mat.Col(nil, 0, reaction)
	times := grid.Times()
	if err := checkTimes(name, reactionPath, t, times); err != nil {
		return nil, err
	}

	want := map[Channel]int{
		BaseAcc:   1,
		BaseVel:   1,
		BaseDisp:  1,
		FloorAcc:  n,
		FloorVel:  n,
		FloorDisp: n,
		Material:  2 * layout.Count(),
	}
	tables := map[Channel]*mat.Dense{BaseReaction: reaction}
	for _, ch := range Channels[1:] {
		path := ch.File(dir, name)
		m, err := readTable(name, path)
		if err != nil {
			return nil, err
		}
		if err := columnsOf(name, path, m, want[ch]); err != nil {
			return nil, err
		}
		if r, _ := m.Dims(); r != rows {
			return nil, errRows(name, path, r, rows)
		}
		tables[ch] = resample(m, t, times)
	}
	reaction = resample(reaction, t, times)
	res := &Results{
		Name:         name,
		T:            times,
		BaseAcc:      mat.Col(nil, 0, tables[BaseAcc]),
		BaseVel:      mat.Col(nil, 0, tables[BaseVel]),
		BaseDisp:     mat.Col(nil, 0, tables[BaseDisp]),
		BaseReaction: mat.Col(nil, 1, reaction),
		FloorAcc:     tables[FloorAcc],
		FloorVel:     tables[FloorVel],
		FloorDisp:    tables[FloorDisp],
		Springs:      tables[Material],
		Layout:       layout,
	}
	if err := res.Validate(); err != nil {
		return nil, &NotFoundError{Name: name, Path: dir, Err: err}
	}
	return res, nil
}

// ModeResults 模态结果
type ModeResults struct {
	Periods []float64  // 周期 T[1..modeNum]
	Shapes  *mat.Dense // 每行一阶振型，每列一层
}

// ModeNum 振型数
func (m *ModeResults) ModeNum() int { return len(m.Periods) }

// Shape 第 k 阶振型(从 1 开始)，normalize 时按最大绝对值归一化
func (m *ModeResults) Shape(k int, normalize bool) ([]float64, error) {
	if k < 1 || k > m.ModeNum() {
		return nil, fmt.Errorf("振型 %d 超出范围 1..%d", k, m.ModeNum())
	}
	phi := mat.Row(nil, k-1, m.Shapes)
	if normalize {
		peak := 0.0
		for _, v := range phi {
			peak = math.Max(peak, math.Abs(v))
		}
		if peak > 0 {
			for i := range phi {
				phi[i] /= peak
			}
		}
	}
	return phi, nil
}

// AssembleModes 读取周期与前 modeNum 阶振型，每阶取第一行
func AssembleModes(dir string, modeNum, n int) (*ModeResults, error) {
	if modeNum < 1 || n < 1 {
		return nil, fmt.Errorf("振型数 %d 或楼层数 %d 无效", modeNum, n)
	}
	path := PeriodsFile(dir)
	tab, err := readTable("", path)
	if err != nil {
		return nil, err
	}
	periods := mat.Col(nil, 0, tab)
	if _, c := tab.Dims(); c != 1 {
		// 周期也可能写在一行
		periods = mat.Row(nil, 0, tab)
	}
	if len(periods) < modeNum {
		return nil, notFound("", path, "只有%d个周期，需要%d个", len(periods), modeNum)
	}
	shapes := mat.NewDense(modeNum, n, nil)
	for k := 1; k <= modeNum; k++ {
		p := ModeFile(dir, k)
		m, err := readTable("", p)
		if err != nil {
			return nil, err
		}
		if err := columnsOf("", p, m, n); err != nil {
			return nil, err
		}
		shapes.SetRow(k-1, mat.Row(nil, 0, m))
	}
	return &ModeResults{Periods: periods[:modeNum], Shapes: shapes}, nil
}
