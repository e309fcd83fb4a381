package types

import "strings"

// Constraints 约束处理方法
type Constraints uint8

const (
	ConstraintsPlain Constraints = iota
	ConstraintsLagrange
	ConstraintsPenalty
	ConstraintsTransformation
)

// Numberer 自由度编号方法
type Numberer uint8

const (
	NumbererPlain Numberer = iota
	NumbererRCM
	NumbererAMD
)

// System 方程组求解器
type System uint8

const (
	SystemBandGeneral System = iota
	SystemBandSPD
	SystemProfileSPD
	SystemSuperLU
	SystemUmfPack
	SystemFullGeneral
	SystemSparseSYM
)

// Test 收敛判别准则
type Test uint8

const (
	TestNormUnbalance Test = iota
	TestNormDispIncr
	TestEnergyIncr
	TestRelativeNormUnbalance
	TestRelativeNormDispIncr
	TestRelativeTotalNormDispIncr
	TestRelativeEnergyIncr
	TestFixedNumIter
)

// Algorithm 非线性求解算法
type Algorithm uint8

const (
	AlgorithmLinear Algorithm = iota
	AlgorithmNewton
	AlgorithmNewtonLineSearch
	AlgorithmModifiedNewton
	AlgorithmKrylovNewton
	AlgorithmSecantNewton
	AlgorithmBFGS
	AlgorithmBroyden
)

// Integrator 时间积分方法
type Integrator uint8

const (
	IntegratorCentralDifference Integrator = iota
	IntegratorNewmark
	IntegratorHHT
	IntegratorGeneralizedAlpha
	IntegratorTRBDF2
	IntegratorExplicitDifference
)

var (
	constraintsNames = []string{"Plain", "Lagrange", "Penalty", "Transformation"}
	numbererNames    = []string{"Plain", "RCM", "AMD"}
	systemNames      = []string{"BandGeneral", "BandSPD", "ProfileSPD", "SuperLU", "UmfPack", "FullGeneral", "SparseSYM"}
	testNames        = []string{"NormUnbalance", "NormDispIncr", "EnergyIncr", "RelativeNormUnbalance",
		"RelativeNormDispIncr", "RelativeTotalNormDispIncr", "RelativeEnergyIncr", "FixedNumIter"}
	algorithmNames = []string{"Linear", "Newton", "NewtonLineSearch", "ModifiedNewton", "KrylovNewton",
		"SecantNewton", "BFGS", "Broyden"}
	integratorNames = []string{"CentralDifference", "Newmark", "HHT", "GeneralizedAlpha", "TRBDF2", "ExplicitDifference"}
)

func nameOf(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "Unknown"
}

func parseName(field string, names []string, s string) (uint8, error) {
	for i, n := range names {
		if strings.EqualFold(n, strings.TrimSpace(s)) {
			return uint8(i), nil
		}
	}
	return 0, configErrorf(field, "未知选项: %s", s)
}

func (v Constraints) String() string { return nameOf(constraintsNames, uint8(v)) }
func (v Numberer) String() string    { return nameOf(numbererNames, uint8(v)) }
func (v System) String() string      { return nameOf(systemNames, uint8(v)) }
func (v Test) String() string        { return nameOf(testNames, uint8(v)) }
func (v Algorithm) String() string   { return nameOf(algorithmNames, uint8(v)) }
func (v Integrator) String() string  { return nameOf(integratorNames, uint8(v)) }

// ParseConstraints 解析约束处理方法
func ParseConstraints(s string) (Constraints, error) {
	v, err := parseName("solver.constraints", constraintsNames, s)
	return Constraints(v), err
}

// ParseNumberer 解析编号方法
func ParseNumberer(s string) (Numberer, error) {
	v, err := parseName("solver.numberer", numbererNames, s)
	return Numberer(v), err
}

// ParseSystem 解析方程组求解器
func ParseSystem(s string) (System, error) {
	v, err := parseName("solver.system", systemNames, s)
	return System(v), err
}

// ParseTest 解析收敛准则
func ParseTest(s string) (Test, error) {
	v, err := parseName("solver.test", testNames, s)
	return Test(v), err
}

// ParseAlgorithm 解析求解算法
func ParseAlgorithm(s string) (Algorithm, error) {
	v, err := parseName("solver.algorithm", algorithmNames, s)
	return Algorithm(v), err
}

// ParseIntegrator 解析积分方法
func ParseIntegrator(s string) (Integrator, error) {
	v, err := parseName("solver.integrator", integratorNames, s)
	return Integrator(v), err
}

// SolverSettings 求解设置
type SolverSettings struct {
	Constraints Constraints
	Numberer    Numberer
	System      System
	Test        Test
	Algorithm   Algorithm
	Integrator  Integrator

	PenaltyAlphaS float64 // Penalty 约束 alphaS
	PenaltyAlphaM float64 // Penalty 约束 alphaM
	Tolerance     float64 // 收敛容差
	MaxIter       int     // 最大迭代次数
	IntParam1     float64 // Newmark γ / HHT α / GeneralizedAlpha αM
	IntParam2     float64 // Newmark β / GeneralizedAlpha αF

	MaxFactor float64 // 步长系数上限 (≥1)
	MinFactor float64 // 步长系数下限 (>0)
	DtRatio   float64 // 积分步长比 (0,1]
}

// DefaultSettings 默认求解设置
func DefaultSettings() SolverSettings {
	return SolverSettings{
		Constraints: ConstraintsTransformation,
		Numberer:    NumbererPlain,
		System:      SystemBandGeneral,
		Test:        TestNormUnbalance,
		Algorithm:   AlgorithmNewton,
		Integrator:  IntegratorNewmark,
		Tolerance:   DefaultTolerance,
		MaxIter:     DefaultMaxIter,
		IntParam1:   DefaultGamma,
		IntParam2:   DefaultBeta,
		MaxFactor:   DefaultMaxFactor,
		MinFactor:   DefaultMinFactor,
		DtRatio:     DefaultDtRatio,
	}
}

// Validate 检查数值设置
func (s SolverSettings) Validate() error {
	switch {
	case int(s.Constraints) >= len(constraintsNames):
		return configErrorf("solver.constraints", "未知选项: %d", s.Constraints)
	case int(s.Numberer) >= len(numbererNames):
		return configErrorf("solver.numberer", "未知选项: %d", s.Numberer)
	case int(s.System) >= len(systemNames):
		return configErrorf("solver.system", "未知选项: %d", s.System)
	case int(s.Test) >= len(testNames):
		return configErrorf("solver.test", "未知选项: %d", s.Test)
	case int(s.Algorithm) >= len(algorithmNames):
		return configErrorf("solver.algorithm", "未知选项: %d", s.Algorithm)
	case int(s.Integrator) >= len(integratorNames):
		return configErrorf("solver.integrator", "未知选项: %d", s.Integrator)
	case !finite(s.Tolerance) || s.Tolerance < 0:
		return configErrorf("solver.tolerance", "收敛容差不能为负: %g", s.Tolerance)
	case s.MaxIter < 1:
		return configErrorf("solver.max_iter", "最大迭代次数必须大于0: %d", s.MaxIter)
	case !finite(s.MaxFactor) || s.MaxFactor < 1:
		return configErrorf("solver.max_factor", "max_factor 必须不小于1: %g", s.MaxFactor)
	case !finite(s.MinFactor) || s.MinFactor <= 0 || s.MinFactor > 1:
		return configErrorf("solver.min_factor", "min_factor 须在(0,1]内: %g", s.MinFactor)
	case !finite(s.DtRatio) || s.DtRatio <= 0 || s.DtRatio > 1:
		return configErrorf("solver.dt_ratio", "dt_ratio 须在(0,1]内: %g", s.DtRatio)
	}
	if s.Constraints == ConstraintsPenalty && (s.PenaltyAlphaS < 0 || s.PenaltyAlphaM < 0) {
		return configErrorf("solver.constraints", "Penalty 参数不能为负")
	}
	switch s.Integrator {
	case IntegratorNewmark:
		if s.IntParam1 <= 0 || s.IntParam2 <= 0 {
			return configErrorf("solver.integrator", "Newmark γ、β 必须大于0")
		}
	case IntegratorHHT:
		if s.IntParam1 < 2.0/3 || s.IntParam1 > 1 {
			return configErrorf("solver.integrator", "HHT α 须在[2/3,1]内: %g", s.IntParam1)
		}
	case IntegratorGeneralizedAlpha:
		if s.IntParam1 <= 0 || s.IntParam2 <= 0 {
			return configErrorf("solver.integrator", "GeneralizedAlpha αM、αF 必须大于0")
		}
	}
	return nil
}
