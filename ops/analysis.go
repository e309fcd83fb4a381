package ops

import (
	"errors"
	"fmt"
	"math"

	"nlmdof/types"
)

// 分析失败返回码
const (
	codeNoAnalysis = -1 // 未设置分析
	codeRecorder   = -2 // 记录器写入失败
	codeFailed     = -3 // 步未收敛
)

// integrator Newmark 族积分参数
// 残差在 α 点计算: u、v 取 n+αF，a 取 n+αM，Newmark 时 αF = αM = 1。
type integrator struct {
	kind     types.Integrator
	gamma    float64
	beta     float64
	alphaF   float64
	alphaM   float64
	explicit bool
}

func newIntegrator(s types.SolverSettings) (integrator, error) {
	in := integrator{kind: s.Integrator, alphaF: 1, alphaM: 1}
	switch s.Integrator {
	case types.IntegratorNewmark:
		in.gamma, in.beta = s.IntParam1, s.IntParam2
	case types.IntegratorHHT:
		a := s.IntParam1
		in.alphaF = a
		in.gamma = 1.5 - a
		in.beta = (2 - a) * (2 - a) / 4
	case types.IntegratorGeneralizedAlpha:
		in.alphaM, in.alphaF = s.IntParam1, s.IntParam2
		in.gamma = 0.5 + in.alphaM - in.alphaF
		in.beta = (1 + in.alphaM - in.alphaF) * (1 + in.alphaM - in.alphaF) / 4
	case types.IntegratorCentralDifference:
		in.gamma, in.explicit = 0.5, true
	default:
		return in, configErr("solver.integrator", "内置求解器不支持积分方法 %s", s.Integrator)
	}
	if !in.explicit && (in.gamma <= 0 || in.beta <= 0) {
		return in, configErr("solver.integrator", "积分参数无效: γ=%g β=%g", in.gamma, in.beta)
	}
	return in, nil
}

// convergence 收敛判别
type convergence struct {
	kind    types.Test
	tol     float64
	maxIter int
	norm0   float64
	sum     float64
}

func (c *convergence) start() { c.norm0, c.sum = 0, 0 }

func norm(x []float64) float64 {
	v := 0.0
	for _, e := range x {
		v += e * e
	}
	return math.Sqrt(v)
}

func dot(a, b []float64) float64 {
	v := 0.0
	for i := range a {
		v += a[i] * b[i]
	}
	return v
}

// errNotConverged 超过最大迭代次数
var errNotConverged = errors.New("未收敛")

// check 第 iter 次迭代后的判别，du 为本次增量，r 为更新后的不平衡力，rOld 为更新前的不平衡力
func (c *convergence) check(iter int, du, r, rOld []float64) (bool, error) {
	relative := func(v float64) float64 {
		if iter == 1 {
			c.norm0 = v
		}
		if c.norm0 == 0 {
			return 0
		}
		return v / c.norm0
	}
	var v float64
	switch c.kind {
	case types.TestNormUnbalance:
		v = norm(r)
	case types.TestNormDispIncr:
		v = norm(du)
	case types.TestEnergyIncr:
		v = 0.5 * math.Abs(dot(du, rOld))
	case types.TestRelativeNormUnbalance:
		v = relative(norm(r))
	case types.TestRelativeNormDispIncr:
		v = relative(norm(du))
	case types.TestRelativeEnergyIncr:
		v = relative(0.5 * math.Abs(dot(du, rOld)))
	case types.TestRelativeTotalNormDispIncr:
		n := norm(du)
		c.sum += n
		if c.sum > 0 {
			v = n / c.sum
		}
	case types.TestFixedNumIter:
		return iter >= c.maxIter, nil
	}
	if v <= c.tol {
		return true, nil
	}
	if iter >= c.maxIter {
		return false, fmt.Errorf("%s 在 %d 次迭代后%w (%.3e > %.3e)", c.kind, iter, errNotConverged, v, c.tol)
	}
	return false, nil
}

// analysis 瞬态分析设置
type analysis struct {
	settings types.SolverSettings
	integ    integrator
	test     convergence
	spd      bool
	sys      *system
}

// Analysis 设置分析方法
// 约束处理、编号方法对单点约束的剪切层模型结果相同，只做合法性检查。
func (s *Session) Analysis(st types.SolverSettings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	switch st.Algorithm {
	case types.AlgorithmLinear, types.AlgorithmNewton, types.AlgorithmNewtonLineSearch, types.AlgorithmModifiedNewton:
	default:
		return configErr("solver.algorithm", "内置求解器不支持算法 %s", st.Algorithm)
	}
	in, err := newIntegrator(st)
	if err != nil {
		return err
	}
	a := &analysis{
		settings: st,
		integ:    in,
		test:     convergence{kind: st.Test, tol: st.Tolerance, maxIter: st.MaxIter},
	}
	switch st.System {
	case types.SystemBandSPD, types.SystemProfileSPD, types.SystemSparseSYM:
		a.spd = true
	}
	s.analysis = a
	return nil
}

// Analyze 推进 n 步
func (s *Session) Analyze(n int, dt float64) int {
	if s.analysis == nil {
		s.logf("未设置分析方法")
		return codeNoAnalysis
	}
	if s.err != nil {
		return codeRecorder
	}
	if dt <= 0 || math.IsNaN(dt) {
		s.logf("时间步长无效: %g", dt)
		return codeFailed
	}
	s.number()
	if s.analysis.sys == nil || s.analysis.sys.n != s.neq {
		s.analysis.sys = newSystem(s.neq, s.analysis.spd)
	}
	if !s.started {
		s.started = true
		if err := s.setTrial(s.U, s.V); err != nil {
			s.logf("初始状态: %v", err)
			return codeFailed
		}
		s.stepFinished(true)
		if err := s.record(); err != nil {
			return s.fail(err)
		}
	}
	for k := 0; k < n; k++ {
		var err error
		if s.analysis.integ.explicit {
			err = s.stepExplicit(dt)
		} else {
			err = s.stepImplicit(dt)
		}
		if err != nil {
			s.stepFinished(false)
			s.logf("t=%g, dt=%g: %v", s.time, dt, err)
			return codeFailed
		}
		// 状态已提交，记录失败后时间无法回退
		if err := s.record(); err != nil {
			return s.fail(err)
		}
	}
	return 0
}

// fail 记录写入失败，之后的 Analyze 都返回 codeRecorder
func (s *Session) fail(err error) int {
	s.err = fmt.Errorf("t=%g: 记录失败: %w", s.time, err)
	s.logf("%v", s.err)
	return codeRecorder
}

// commit 保存收敛状态
func (s *Session) commit(u, v, a []float64, dt float64) error {
	if err := s.setTrial(u, v); err != nil {
		return err
	}
	s.stepFinished(true)
	s.U, s.V, s.A = u, v, a
	s.time += dt
	return nil
}

// stepImplicit 隐式 Newmark 族一步
func (s *Session) stepImplicit(dt float64) error {
	an := s.analysis
	in := an.integ
	sys := an.sys
	neq := s.neq
	U, V, A := s.U, s.V, s.A
	ut := append([]float64(nil), U...)
	vt := make([]float64, neq)
	at := make([]float64, neq)
	ua := make([]float64, neq)
	va := make([]float64, neq)
	aa := make([]float64, neq)
	c1 := 1 / (in.beta * dt * dt)
	c2 := 1 / (in.beta * dt)
	c3 := 1/(2*in.beta) - 1
	cv := in.gamma * c2
	ta := s.time + in.alphaF*dt

	// 预测: 位移不变
	for i := 0; i < neq; i++ {
		at[i] = -c2*V[i] - c3*A[i]
		vt[i] = V[i] + dt*((1-in.gamma)*A[i]+in.gamma*at[i])
	}
	// 由试探状态计算中间时刻的响应及残差
	eval := func() error {
		for i := 0; i < neq; i++ {
			ua[i] = U[i] + in.alphaF*(ut[i]-U[i])
			va[i] = V[i] + in.alphaF*(vt[i]-V[i])
			aa[i] = A[i] + in.alphaM*(at[i]-A[i])
		}
		if err := s.setTrial(ua, va); err != nil {
			return err
		}
		s.formUnbalance(sys, va, aa, ta)
		return nil
	}
	// 速度、加速度按位移增量累加，避免大质量自由度上的相消误差
	bu := make([]float64, neq)
	bv := make([]float64, neq)
	ba := make([]float64, neq)
	var du []float64
	apply := func(eta float64) error {
		for i := range ut {
			ut[i] = bu[i] + eta*du[i]
			vt[i] = bv[i] + eta*cv*du[i]
			at[i] = ba[i] + eta*c1*du[i]
		}
		return eval()
	}
	cK := in.alphaF
	cC := in.alphaF * in.gamma / (in.beta * dt)
	cM := in.alphaM * c1

	if err := eval(); err != nil {
		return err
	}
	an.test.start()
	algo := an.settings.Algorithm
	rOld := make([]float64, neq)
	for iter := 1; ; iter++ {
		if algo != types.AlgorithmModifiedNewton || iter == 1 {
			s.formTangent(sys, cK, cC, cM)
			if err := sys.factorize(); err != nil {
				return err
			}
		}
		var err error
		if du, err = sys.solve(); err != nil {
			return err
		}
		copy(rOld, sys.R)
		copy(bu, ut)
		copy(bv, vt)
		copy(ba, at)
		if err := apply(1); err != nil {
			return err
		}
		if algo == types.AlgorithmNewtonLineSearch {
			if du, err = s.lineSearch(du, rOld, apply); err != nil {
				return err
			}
		}
		if algo == types.AlgorithmLinear {
			break
		}
		ok, err := an.test.check(iter, du, sys.R, rOld)
		if err != nil {
			return err
		}
		if ok {
			break
		}
	}
	return s.commit(ut, vt, at, dt)
}

// lineSearch 插值线搜索，返回实际采用的增量
// apply(eta) 将试探状态设为增量起点加 eta·du 并重新计算残差。
func (s *Session) lineSearch(du, r0 []float64, apply func(eta float64) error) ([]float64, error) {
	const (
		tol     = 0.8
		maxIter = 10
		minEta  = 0.1
		maxEta  = 10.0
	)
	s0 := dot(du, r0)
	s1 := dot(du, s.analysis.sys.R)
	if s0 == 0 || math.Abs(s1) <= tol*math.Abs(s0) {
		return du, nil
	}
	eta := 1.0
	for k := 0; k < maxIter && math.Abs(s1) > tol*math.Abs(s0); k++ {
		if s0 == s1 {
			break
		}
		next := eta * s0 / (s0 - s1)
		next = math.Max(minEta, math.Min(maxEta, next))
		if next == eta {
			break
		}
		eta = next
		if err := apply(eta); err != nil {
			return nil, err
		}
		s1 = dot(du, s.analysis.sys.R)
	}
	scaled := make([]float64, len(du))
	for i := range du {
		scaled[i] = eta * du[i]
	}
	return scaled, nil
}

// stepExplicit 中心差分一步
func (s *Session) stepExplicit(dt float64) error {
	sys := s.analysis.sys
	neq := s.neq
	ut := make([]float64, neq)
	vp := make([]float64, neq)
	for i := 0; i < neq; i++ {
		ut[i] = s.U[i] + dt*s.V[i] + dt*dt/2*s.A[i]
		vp[i] = s.V[i] + dt/2*s.A[i]
	}
	if err := s.setTrial(ut, vp); err != nil {
		return err
	}
	s.formUnbalance(sys, vp, make([]float64, neq), s.time+dt)
	s.formTangent(sys, 0, dt/2, 1)
	if err := sys.factorize(); err != nil {
		return err
	}
	at, err := sys.solve()
	if err != nil {
		return err
	}
	vt := make([]float64, neq)
	for i := range vt {
		vt[i] = vp[i] + dt/2*at[i]
	}
	return s.commit(ut, vt, at, dt)
}
