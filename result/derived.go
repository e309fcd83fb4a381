package result

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Quantity 响应量
type Quantity uint8

const (
	Acc  Quantity = iota // 加速度
	Vel                  // 速度
	Disp                 // 位移
)

func (q Quantity) String() string {
	switch q {
	case Acc:
		return "acc"
	case Vel:
		return "vel"
	case Disp:
		return "disp"
	}
	return "unknown"
}

func (r *Results) relative(q Quantity) *mat.Dense {
	switch q {
	case Acc:
		return r.FloorAcc
	case Vel:
		return r.FloorVel
	}
	return r.FloorDisp
}

func (r *Results) base(q Quantity) []float64 {
	switch q {
	case Acc:
		return r.BaseAcc
	case Vel:
		return r.BaseVel
	}
	return r.BaseDisp
}

// Relative 楼层相对响应，返回副本
func (r *Results) Relative(q Quantity) *mat.Dense {
	return mat.DenseCopyOf(r.relative(q))
}

// Base 基底绝对响应，返回副本
func (r *Results) Base(q Quantity) []float64 {
	return slices.Clone(r.base(q))
}

// Absolute 楼层绝对响应，基底响应加到每一层
func (r *Results) Absolute(q Quantity) *mat.Dense {
	rel := r.relative(q)
	base := r.base(q)
	rows, cols := rel.Dims()
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(i, j int, v float64) float64 { return base[i] + v }, rel)
	return out
}

// ResidualDisp 残余相对位移，即最后时刻的相对位移
func (r *Results) ResidualDisp() []float64 {
	rows, _ := r.FloorDisp.Dims()
	return mat.Row(nil, rows-1, r.FloorDisp)
}

// diff 相邻楼层之差，第一层减去地面(0)
func diff(v []float64) []float64 {
	out := make([]float64, len(v))
	prev := 0.0
	for i, x := range v {
		out[i] = x - prev
		prev = x
	}
	return out
}

// Drift 层间位移
func (r *Results) Drift() *mat.Dense {
	rows, cols := r.FloorDisp.Dims()
	out := mat.NewDense(rows, cols, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, r.FloorDisp)
		out.SetRow(i, diff(row))
	}
	return out
}

// Envelope 每列绝对值的最大值
func Envelope(m mat.Matrix) []float64 {
	rows, cols := m.Dims()
	env := make([]float64, cols)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			env[j] = math.Max(env[j], math.Abs(m.At(i, j)))
		}
	}
	return env
}

// DriftEnvelope 层间位移包络
func (r *Results) DriftEnvelope() []float64 { return Envelope(r.Drift()) }

// ResidualDrift 残余层间位移
func (r *Results) ResidualDrift() []float64 { return diff(r.ResidualDisp()) }

// AccelEnvelope 楼层绝对加速度包络
func (r *Results) AccelEnvelope() []float64 { return Envelope(r.Absolute(Acc)) }

// SpringIndex 第 story 层(从 1 开始)第 k 根弹簧(从 0 开始)在创建顺序中的位置
func (r *Results) SpringIndex(story, k int) (int, error) {
	if story < 1 || story > len(r.Layout) {
		return 0, fmt.Errorf("楼层 %d 超出范围 1..%d", story, len(r.Layout))
	}
	if k < 0 || k >= len(r.Layout[story-1]) {
		return 0, fmt.Errorf("第%d层没有第%d根弹簧", story, k+1)
	}
	return r.Layout.Offsets()[story-1] + k, nil
}

// force 第 i 根弹簧的力
func (r *Results) force(i int) []float64 { return mat.Col(nil, 2*i, r.Springs) }

// deformation 第 i 根弹簧的变形
func (r *Results) deformation(i int) []float64 { return mat.Col(nil, 2*i+1, r.Springs) }

// StoryShear 层剪力，同层并联弹簧的力相加
func (r *Results) StoryShear() *mat.Dense {
	rows, _ := r.Springs.Dims()
	n := len(r.Layout)
	out := mat.NewDense(rows, n, nil)
	off := r.Layout.Offsets()
	sum := make([]float64, rows)
	for s := 0; s < n; s++ {
		for i := range sum {
			sum[i] = 0
		}
		for k := range r.Layout[s] {
			floats.Add(sum, r.force(off[s]+k))
		}
		out.SetCol(s, sum)
	}
	return out
}

// ShearEnvelope 层剪力包络
func (r *Results) ShearEnvelope() []float64 { return Envelope(r.StoryShear()) }

// Hysteresis 第 i 根弹簧(创建顺序，从 0 开始)的变形与力
func (r *Results) Hysteresis(i int) (deformation, force []float64, err error) {
	if i < 0 || i >= r.Layout.Count() {
		return nil, nil, fmt.Errorf("弹簧 %d 超出范围 0..%d", i, r.Layout.Count()-1)
	}
	return r.deformation(i), r.force(i), nil
}

// StoryHysteresis 第 story 层的滞回曲线
// 多根弹簧并联时取第一根弹簧的变形作为代表，力为各弹簧之和；这是近似的组合曲线。
func (r *Results) StoryHysteresis(story int) (deformation, force []float64, err error) {
	first, err := r.SpringIndex(story, 0)
	if err != nil {
		return nil, nil, err
	}
	if len(r.Layout[story-1]) == 1 {
		return r.Hysteresis(first)
	}
	shear := r.StoryShear()
	return r.deformation(first), mat.Col(nil, story-1, shear), nil
}

// Peak 结果峰值摘要
type Peak struct {
	Drift      float64 // 最大层间位移
	DriftStory int     // 所在楼层(从 1 开始)
	Accel      float64 // 最大楼层绝对加速度
	AccelStory int
	Shear      float64 // 最大层剪力
	Residual   float64 // 最大残余层间位移绝对值
}

// Peak 计算峰值摘要
func (r *Results) Peak() Peak {
	var p Peak
	drift := r.DriftEnvelope()
	if len(drift) == 0 {
		return p
	}
	i := floats.MaxIdx(drift)
	p.Drift, p.DriftStory = drift[i], i+1
	acc := r.AccelEnvelope()
	i = floats.MaxIdx(acc)
	p.Accel, p.AccelStory = acc[i], i+1
	p.Shear = floats.Max(r.ShearEnvelope())
	for _, v := range r.ResidualDrift() {
		p.Residual = math.Max(p.Residual, math.Abs(v))
	}
	return p
}
