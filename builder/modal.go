package builder

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"nlmdof/ops"
	"nlmdof/result"
	"nlmdof/types"
)

// Modes 模态分析结果
type Modes struct {
	Omega   []float64 // 圆频率
	Periods []float64 // 周期 2π/ω
}

// ModeNum 实际求解的振型数 min(requested, MaxModes, n)，至少为 1
func ModeNum(n, requested int) int {
	k := min(requested, types.MaxModes, n)
	if k < 1 {
		k = 1
	}
	return k
}

// Modal 特征值分析，楼层数大于 MaxModes 时使用带状迭代求解器
func Modal(c ops.Capability, n, requested int) (*Modes, error) {
	k := ModeNum(n, requested)
	solver := ops.FullGenLapack
	if n > types.MaxModes {
		solver = ops.GenBandArpack
	}
	lambda, err := c.Eigen(solver, k)
	if err != nil {
		return nil, fmt.Errorf("特征值分析: %w", err)
	}
	if len(lambda) != k {
		return nil, fmt.Errorf("特征值分析: 需要 %d 阶，得到 %d 阶", k, len(lambda))
	}
	ms := &Modes{Omega: make([]float64, k), Periods: make([]float64, k)}
	for i, l := range lambda {
		if !(l > 0) || math.IsInf(l, 0) {
			return nil, fmt.Errorf("第%d阶特征值无效: %g", i+1, l)
		}
		ms.Omega[i] = math.Sqrt(l)
		ms.Periods[i] = 2 * math.Pi / ms.Omega[i]
	}
	return ms, nil
}

// Coefficients Rayleigh 阻尼系数 C = A·M + B·K0
type Coefficients struct {
	A float64 // 质量比例系数
	B float64 // 初始刚度比例系数
}

// Ratio 圆频率 w 处的阻尼比
func (c Coefficients) Ratio(w float64) float64 {
	return c.A/(2*w) + c.B*w/2
}

// IsZero 无阻尼
func (c Coefficients) IsZero() bool { return c.A == 0 && c.B == 0 }

// Rayleigh 由振型圆频率计算阻尼系数
// 只有一阶振型时 A = 0，B = 2ζ/ω。
func Rayleigh(omega []float64, d types.Damping) (Coefficients, error) {
	if !d.Enabled {
		return Coefficients{}, nil
	}
	if len(omega) == 0 {
		return Coefficients{}, fmt.Errorf("缺少模态分析结果")
	}
	if err := d.Validate(len(omega), len(omega)); err != nil {
		return Coefficients{}, err
	}
	z1, z2 := d.Ratios[0], d.Ratios[1]
	if len(omega) == 1 {
		return Coefficients{B: 2 * z1 / omega[0]}, nil
	}
	w1, w2 := omega[d.Modes[0]-1], omega[d.Modes[1]-1]
	if w1 == w2 {
		return Coefficients{}, &types.ConfigError{Field: "damping.modes", Msg: fmt.Sprintf("所选两阶振型频率相同: %g", w1)}
	}
	k := 2 * w1 * w2 / (w2*w2 - w1*w1)
	return Coefficients{
		A: k * (w2*z1 - w1*z2),
		B: k * (z2/w1 - z1/w2),
	}, nil
}

// ApplyDamping 对结构单元和基底及楼层节点施加 Rayleigh 阻尼，辅助单自由度不参与
func ApplyDamping(c ops.Capability, f *Frame, co Coefficients) error {
	sel := ops.Selection{Nodes: f.Nodes, Elements: f.AllElements()}
	return c.Region(regionTag, sel, ops.Rayleigh{AlphaM: co.A, BetaKInit: co.B})
}

// WritePeriods 写入周期文件，每行一个周期
func WritePeriods(dir string, periods []float64) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := result.PeriodsFile(dir)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	for _, t := range periods {
		w.WriteString(strconv.FormatFloat(t, 'e', 18, 64))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
