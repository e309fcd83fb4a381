package types

// 单位制: N, mm, s
const (
	DefaultG     = 9800.0 // 重力加速度 (mm/s^2)
	MaxModes     = 5      // 特征值求解器最多支持的振型数
	AuxMassRatio = 1e6    // 辅助单自由度质量与最大楼层质量之比
)

// 默认求解参数
var (
	DefaultTolerance = 1e-5 // 收敛容差
	DefaultMaxIter   = 60   // 最大迭代次数
	DefaultGamma     = 0.5  // Newmark γ
	DefaultBeta      = 0.25 // Newmark β
	DefaultMaxFactor = 1.0  // 步长放大系数上限
	DefaultMinFactor = 1e-6 // 步长缩小系数下限
	DefaultDtRatio   = 1.0  // 积分步长与地震动步长之比
)
