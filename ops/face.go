package ops

import "nlmdof/types"

// EqID 方程编号，被约束的自由度为 Fixed
type EqID int

// Fixed 表示被约束的自由度，与之相关的加盖操作将被忽略。
const Fixed EqID = -1

// EigenSolver 特征值求解器类型
type EigenSolver string

const (
	GenBandArpack EigenSolver = "genBandArpack" // 带状迭代求解
	FullGenLapack EigenSolver = "fullGenLapack" // 稠密直接求解
)

// Response 记录的响应类型
type Response uint8

const (
	RespDisp         Response = iota // 节点位移
	RespVel                          // 节点速度
	RespAccel                        // 节点加速度
	RespReaction                     // 节点反力
	RespEigen                        // 振型
	RespStressStrain                 // 单元材料 力-变形
)

var responseString = map[Response]string{
	RespDisp:         "disp",
	RespVel:          "vel",
	RespAccel:        "accel",
	RespReaction:     "reaction",
	RespEigen:        "eigen",
	RespStressStrain: "stressStrain",
}

func (r Response) String() string {
	if s, ok := responseString[r]; ok {
		return s
	}
	return "unknown"
}

// Rayleigh 阻尼系数 C = AlphaM·M + BetaK·K + BetaKInit·K0 + BetaKComm·Kc
type Rayleigh struct {
	AlphaM    float64
	BetaK     float64
	BetaKInit float64
	BetaKComm float64
}

// Selection 区域选择的节点与单元
type Selection struct {
	Nodes    []int
	Elements []int
}

// RecorderSpec 记录器定义
type RecorderSpec struct {
	File     string   // 输出文件
	Time     bool     // 首列输出时间
	Nodes    []int    // 节点编号
	Elements []int    // 单元编号
	DOF      int      // 自由度(从 1 开始)
	Response Response // 响应类型
	Mode     int      // 振型阶数，仅 RespEigen
}

// Capability 结构求解器能力
// 模型定义、特征值分析、记录器与逐步时程分析。所有状态保存在实现内部，
// 调用者通过显式持有的实例访问，不存在全局状态。
type Capability interface {
	// Wipe 清空全部模型、分析与记录器，关闭记录文件。
	Wipe() error

	// Model 定义维数和每个节点的自由度数。
	Model(ndm, ndf int) error

	// Node 定义节点，mass 为各自由度的集中质量，可为空。
	Node(tag int, coords []float64, mass []float64) error

	// Fix 约束节点，mask 中 1 表示约束。
	Fix(tag int, mask ...int) error

	// Mass 设置节点质量。
	Mass(tag int, mass ...float64) error

	// UniaxialMaterial 定义单轴材料。
	UniaxialMaterial(tag int, m types.Material) error

	// ZeroLength 定义零长度单元，dir 为作用方向(从 1 开始)，rayleigh 表示是否参与 Rayleigh 阻尼。
	ZeroLength(tag, iNode, jNode, matTag, dir int, rayleigh bool) error

	// Eigen 求解前 n 阶特征值，按升序返回。
	Eigen(solver EigenSolver, n int) ([]float64, error)

	// TimeSeriesPath 定义等步长时程，超出范围取 0。
	TimeSeriesPath(tag int, dt float64, values []float64, factor float64) error

	// Pattern 定义荷载模式，fact 为整体系数。
	Pattern(tag, seriesTag int, fact float64) error

	// Load 在荷载模式中添加节点荷载，values 对应各自由度。
	Load(pattern, node int, values ...float64) error

	// Region 为节点和单元指定 Rayleigh 阻尼。
	Region(tag int, sel Selection, r Rayleigh) error

	// Recorder 定义记录器。
	Recorder(spec RecorderSpec) error

	// Analysis 设置分析方法。
	Analysis(s types.SolverSettings) error

	// Analyze 推进 n 步，步长 dt。返回 0 表示收敛，负值表示失败，失败的步不保留任何状态。
	Analyze(n int, dt float64) int

	// WipeAnalysis 清除分析设置，模型与记录器保留。
	WipeAnalysis()
}
