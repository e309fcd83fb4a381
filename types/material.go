package types

import (
	"math"
	"strings"
)

// Material 单轴材料定义
type Material interface {
	Kind() MaterialKind // 材料类型
	Params() []float64  // 有序参数列表
	Label() string      // 显示名称
	Validate() error    // 参数检查
}

// Elastic 线弹性 F = E·u
type Elastic struct {
	E float64 // 刚度
}

// Bilinear 双线性随动强化
type Bilinear struct {
	Fy    float64 // 屈服力
	E     float64 // 初始刚度
	Alpha float64 // 屈服后刚度比
}

// Wen Bouc-Wen 光滑滞回模型
type Wen struct {
	Fy    float64 // 屈服力
	Uy    float64 // 屈服位移
	Alpha float64 // 屈服后刚度比
	N     float64 // 过渡平滑参数
}

// ElastoPlastic 理想弹塑性
type ElastoPlastic struct {
	Fy float64 // 屈服力
	E  float64 // 初始刚度
}

// Viscous 非线性黏滞 F = C·|v|^α·sign(v)
type Viscous struct {
	C     float64 // 阻尼系数
	Alpha float64 // 速度指数
}

// Raw 直接使用求解器材料名和参数
type Raw struct {
	Name   string
	Values []float64
}

func (Elastic) Kind() MaterialKind       { return KindElastic }
func (Bilinear) Kind() MaterialKind      { return KindBilinear }
func (Wen) Kind() MaterialKind           { return KindWen }
func (ElastoPlastic) Kind() MaterialKind { return KindElastoPlastic }
func (Viscous) Kind() MaterialKind       { return KindViscous }
func (Raw) Kind() MaterialKind           { return KindRaw }

func (m Elastic) Params() []float64       { return []float64{m.E} }
func (m Bilinear) Params() []float64      { return []float64{m.Fy, m.E, m.Alpha} }
func (m Wen) Params() []float64           { return []float64{m.Fy, m.Uy, m.Alpha, m.N} }
func (m ElastoPlastic) Params() []float64 { return []float64{m.Fy, m.E} }
func (m Viscous) Params() []float64       { return []float64{m.C, m.Alpha} }
func (m Raw) Params() []float64           { return append([]float64(nil), m.Values...) }

func (m Elastic) Label() string       { return labelOf(KindElastic, m.Params()) }
func (m Bilinear) Label() string      { return labelOf(KindBilinear, m.Params()) }
func (m Wen) Label() string           { return labelOf(KindWen, m.Params()) }
func (m ElastoPlastic) Label() string { return labelOf(KindElastoPlastic, m.Params()) }
func (m Viscous) Label() string       { return labelOf(KindViscous, m.Params()) }

// Label 原始材料使用求解器材料名
func (m Raw) Label() string {
	s := labelOf(KindRaw, m.Values)
	return m.Name + strings.TrimPrefix(s, KindRaw.String())
}

func (m Elastic) Validate() error {
	if !finite(m.E) || m.E < 0 {
		return configErrorf("material.E", "刚度必须为非负有限值: %g", m.E)
	}
	return nil
}

func (m Bilinear) Validate() error {
	switch {
	case !finite(m.Fy) || m.Fy <= 0:
		return configErrorf("material.Fy", "屈服力必须大于0: %g", m.Fy)
	case !finite(m.E) || m.E <= 0:
		return configErrorf("material.E", "刚度必须大于0: %g", m.E)
	case !finite(m.Alpha) || m.Alpha < 0 || m.Alpha >= 1:
		return configErrorf("material.alpha", "屈服后刚度比须在[0,1)内: %g", m.Alpha)
	}
	return nil
}

func (m Wen) Validate() error {
	switch {
	case !finite(m.Fy) || m.Fy <= 0:
		return configErrorf("material.Fy", "屈服力必须大于0: %g", m.Fy)
	case !finite(m.Uy) || m.Uy <= 0:
		return configErrorf("material.uy", "屈服位移必须大于0: %g", m.Uy)
	case !finite(m.Alpha) || m.Alpha < 0 || m.Alpha >= 1:
		return configErrorf("material.alpha", "屈服后刚度比须在[0,1)内: %g", m.Alpha)
	case !finite(m.N) || m.N <= 0:
		return configErrorf("material.n", "光滑参数必须大于0: %g", m.N)
	}
	return nil
}

func (m ElastoPlastic) Validate() error {
	return Bilinear{Fy: m.Fy, E: m.E}.Validate()
}

func (m Viscous) Validate() error {
	switch {
	case !finite(m.C) || m.C < 0:
		return configErrorf("material.C", "阻尼系数必须为非负值: %g", m.C)
	case !finite(m.Alpha) || m.Alpha <= 0:
		return configErrorf("material.alpha", "速度指数必须大于0: %g", m.Alpha)
	}
	return nil
}

func (m Raw) Validate() error {
	if m.Name == "" {
		return configErrorf("material.name", "材料名为空")
	}
	for i, v := range m.Values {
		if !finite(v) {
			return configErrorf("material.params", "第%d个参数不是有限值", i+1)
		}
	}
	return nil
}

// BoucWenParams 求解器 BoucWen 材料参数
type BoucWenParams struct {
	Alpha    float64 // 屈服后刚度比
	K        float64 // 初始刚度
	N        float64 // 光滑参数
	Gamma    float64 // 形状参数 γ
	Beta     float64 // 形状参数 β
	A0       float64 // 初始 A
	DeltaA   float64 // A 的退化率
	DeltaNu  float64 // 强度退化率
	DeltaEta float64 // 刚度退化率
}

// BoucWen 将 Fy/uy 描述换算为刚度描述，γ = β = 0.5/uy^n
func (m Wen) BoucWen() BoucWenParams {
	beta := 0.5 / math.Pow(m.Uy, m.N)
	return BoucWenParams{
		Alpha: m.Alpha,
		K:     m.Fy / m.Uy,
		N:     m.N,
		Gamma: beta,
		Beta:  beta,
		A0:    1,
	}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
