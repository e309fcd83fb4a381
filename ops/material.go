package ops

import (
	"fmt"
	"math"
	"strings"

	"nlmdof/types"
)

// uniaxial 单轴材料状态
// 试探状态由 setTrial 计算，commit 保存为已收敛状态，revert 恢复到上次收敛状态。
type uniaxial interface {
	setTrial(strain, rate float64) error
	stress() float64  // 力
	tangent() float64 // 刚度 dσ/dε
	damping() float64 // 阻尼 dσ/dε̇
	initial() float64 // 初始刚度
	strain() float64  // 变形
	commit()
	revert()
	revertToStart()
}

// newUniaxial 由材料定义创建独立的材料状态，处于初始状态
func newUniaxial(m types.Material) (uniaxial, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	u, err := makeUniaxial(m)
	if err != nil {
		return nil, err
	}
	u.revertToStart()
	return u, nil
}

func makeUniaxial(m types.Material) (uniaxial, error) {
	switch v := m.(type) {
	case types.Elastic:
		return &elastic{e: v.E}, nil
	case types.Bilinear:
		return &bilinear{fy: v.Fy, e: v.E, b: v.Alpha}, nil
	case types.ElastoPlastic:
		return &bilinear{fy: v.Fy, e: v.E}, nil
	case types.Wen:
		return newBoucWen(v.BoucWen()), nil
	case types.Viscous:
		return &viscous{c: v.C, alpha: v.Alpha}, nil
	case types.Raw:
		return newRaw(v)
	}
	return nil, &types.ConfigError{Field: "material", Msg: fmt.Sprintf("不支持的材料类型 %s", m.Kind())}
}

// newRaw 按求解器材料名创建
func newRaw(r types.Raw) (uniaxial, error) {
	p := r.Values
	need := func(n int) error {
		if len(p) < n {
			return &types.ConfigError{Field: "material.params", Msg: fmt.Sprintf("%s 至少需要 %d 个参数", r.Name, n)}
		}
		return nil
	}
	switch strings.ToLower(r.Name) {
	case "elastic":
		if err := need(1); err != nil {
			return nil, err
		}
		m := &elastic{e: p[0]}
		if len(p) > 1 {
			m.eta = p[1]
		}
		return m, nil
	case "steel01":
		if err := need(3); err != nil {
			return nil, err
		}
		return &bilinear{fy: p[0], e: p[1], b: p[2]}, nil
	case "elasticpp":
		if err := need(2); err != nil {
			return nil, err
		}
		return &bilinear{fy: p[0] * p[1], e: p[0]}, nil
	case "boucwen":
		if err := need(9); err != nil {
			return nil, err
		}
		m := newBoucWen(types.BoucWenParams{
			Alpha: p[0], K: p[1], N: p[2], Gamma: p[3], Beta: p[4],
			A0: p[5], DeltaA: p[6], DeltaNu: p[7], DeltaEta: p[8],
		})
		if len(p) > 9 {
			m.tol = p[9]
		}
		if len(p) > 10 {
			m.maxIter = int(p[10])
		}
		return m, nil
	case "viscous":
		if err := need(2); err != nil {
			return nil, err
		}
		return &viscous{c: p[0], alpha: p[1]}, nil
	}
	return nil, &types.ConfigError{Field: "material.name", Msg: fmt.Sprintf("不支持的材料 %s", r.Name)}
}

// elastic 线弹性，可带黏滞项
type elastic struct {
	e, eta      float64
	eps, rate   float64
	cEps, cRate float64
}

func (m *elastic) setTrial(strain, rate float64) error {
	m.eps, m.rate = strain, rate
	return nil
}
func (m *elastic) stress() float64  { return m.e*m.eps + m.eta*m.rate }
func (m *elastic) tangent() float64 { return m.e }
func (m *elastic) damping() float64 { return m.eta }
func (m *elastic) initial() float64 { return m.e }
func (m *elastic) strain() float64  { return m.eps }
func (m *elastic) commit()          { m.cEps, m.cRate = m.eps, m.rate }
func (m *elastic) revert()          { m.eps, m.rate = m.cEps, m.cRate }
func (m *elastic) revertToStart()   { *m = elastic{e: m.e, eta: m.eta} }

// bilinear 双线性随动强化，b=0 时为理想弹塑性
// 屈服面为两条平行直线 σ = bEε ± (1-b)Fy。
type bilinear struct {
	fy, e, b float64
	// 已收敛状态
	cEps, cSig, cTan float64
	// 试探状态
	tEps, tSig, tTan float64
}

func (m *bilinear) setTrial(strain, _ float64) error {
	m.tEps = strain
	sig := m.cSig + m.e*(strain-m.cEps)
	hard := m.b * m.e * strain
	upper := hard + (1-m.b)*m.fy
	lower := hard - (1-m.b)*m.fy
	switch {
	case sig > upper:
		m.tSig, m.tTan = upper, m.b*m.e
	case sig < lower:
		m.tSig, m.tTan = lower, m.b*m.e
	default:
		m.tSig, m.tTan = sig, m.e
	}
	return nil
}
func (m *bilinear) stress() float64  { return m.tSig }
func (m *bilinear) tangent() float64 { return m.tTan }
func (m *bilinear) damping() float64 { return 0 }
func (m *bilinear) initial() float64 { return m.e }
func (m *bilinear) strain() float64  { return m.tEps }
func (m *bilinear) commit()          { m.cEps, m.cSig, m.cTan = m.tEps, m.tSig, m.tTan }
func (m *bilinear) revert()          { m.tEps, m.tSig, m.tTan = m.cEps, m.cSig, m.cTan }
func (m *bilinear) revertToStart() {
	m.cEps, m.cSig, m.cTan = 0, 0, m.e
	m.revert()
}

// boucWen Bouc-Wen 光滑滞回模型
// σ = αkε + (1-α)kz，z 由隐式 Newton 迭代求解，可考虑强度、刚度退化。
type boucWen struct {
	p       types.BoucWenParams
	tol     float64
	maxIter int
	// 已收敛状态
	cEps, cZ, cE float64
	// 试探状态
	tEps, tZ, tE, tTan float64
}

func newBoucWen(p types.BoucWenParams) *boucWen {
	m := &boucWen{p: p, tol: 1e-8, maxIter: 20}
	m.revertToStart()
	return m
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func (m *boucWen) setTrial(strain, _ float64) error {
	p := m.p
	m.tEps = strain
	d := strain - m.cEps
	if math.Abs(d) < 1e-300 {
		m.tZ, m.tE = m.cZ, m.cE
		m.tTan = m.zeroRateTangent()
		return nil
	}
	z := m.cZ
	var phi, eta, dfdz float64
	for i := 0; ; i++ {
		if i >= m.maxIter {
			return fmt.Errorf("BoucWen 材料在 %d 次迭代后未收敛", m.maxIter)
		}
		e := m.cE + (1-p.Alpha)*p.K*d*z
		a := p.A0 - p.DeltaA*e
		nu := 1 + p.DeltaNu*e
		eta = 1 + p.DeltaEta*e
		psi := p.Gamma + p.Beta*sign(d*z)
		az := math.Abs(z)
		phi = a - math.Pow(az, p.N)*psi*nu
		f := z - m.cZ - phi/eta*d
		dfdz = 1
		if az > 0 {
			dfdz += d / eta * p.N * math.Pow(az, p.N-1) * sign(z) * psi * nu
		}
		dz := f / dfdz
		z -= dz
		if math.IsNaN(z) || math.IsInf(z, 0) {
			return fmt.Errorf("BoucWen 材料迭代发散")
		}
		if math.Abs(dz) <= m.tol {
			break
		}
	}
	m.tZ = z
	m.tE = m.cE + (1-p.Alpha)*p.K*d*z
	m.tTan = p.Alpha*p.K + (1-p.Alpha)*p.K*(phi/eta)/dfdz
	return nil
}

func (m *boucWen) zeroRateTangent() float64 {
	p := m.p
	a := p.A0 - p.DeltaA*m.cE
	nu := 1 + p.DeltaNu*m.cE
	eta := 1 + p.DeltaEta*m.cE
	phi := a - math.Pow(math.Abs(m.cZ), p.N)*(p.Gamma+p.Beta)*nu
	return p.Alpha*p.K + (1-p.Alpha)*p.K*phi/eta
}

func (m *boucWen) stress() float64 {
	return m.p.Alpha*m.p.K*m.tEps + (1-m.p.Alpha)*m.p.K*m.tZ
}
func (m *boucWen) tangent() float64 { return m.tTan }
func (m *boucWen) damping() float64 { return 0 }
func (m *boucWen) initial() float64 {
	return m.p.Alpha*m.p.K + (1-m.p.Alpha)*m.p.K*m.p.A0
}
func (m *boucWen) strain() float64 { return m.tEps }
func (m *boucWen) commit()         { m.cEps, m.cZ, m.cE = m.tEps, m.tZ, m.tE }
func (m *boucWen) revert() {
	m.tEps, m.tZ, m.tE = m.cEps, m.cZ, m.cE
	m.tTan = m.zeroRateTangent()
}
func (m *boucWen) revertToStart() {
	m.cEps, m.cZ, m.cE = 0, 0, 0
	m.revert()
}

// viscous 非线性黏滞 σ = C·|ε̇|^α·sign(ε̇)
type viscous struct {
	c, alpha    float64
	eps, rate   float64
	cEps, cRate float64
}

// minVel 计算阻尼切线时速度的下限
const minVel = 1e-11

func (m *viscous) setTrial(strain, rate float64) error {
	m.eps, m.rate = strain, rate
	return nil
}
func (m *viscous) stress() float64 {
	return m.c * math.Pow(math.Abs(m.rate), m.alpha) * sign(m.rate)
}
func (m *viscous) tangent() float64 { return 0 }
func (m *viscous) damping() float64 {
	v := math.Max(math.Abs(m.rate), minVel)
	return m.alpha * m.c * math.Pow(v, m.alpha-1)
}
func (m *viscous) initial() float64 { return 0 }
func (m *viscous) strain() float64  { return m.eps }
func (m *viscous) commit()          { m.cEps, m.cRate = m.eps, m.rate }
func (m *viscous) revert()          { m.eps, m.rate = m.cEps, m.cRate }
func (m *viscous) revertToStart()   { *m = viscous{c: m.c, alpha: m.alpha} }
