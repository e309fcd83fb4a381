package driver

import (
	"fmt"
	"log"
	"math"

	"nlmdof/types"
)

// Stepper 推进时程分析的能力，返回 0 表示收敛
type Stepper interface {
	Analyze(n int, dt float64) int
}

// Failer 求解器在步未收敛之外出错时 Err 返回非 nil，此时不再减小步长重试
type Failer interface {
	Err() error
}

// State 分析状态
type State uint8

const (
	Running   State = iota // 进行中
	Converged              // 完成
	Failed                 // 步长系数低于下限
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Params 自适应步长参数
type Params struct {
	Dt        float64 // 初始步长，取地震动步长
	Duration  float64 // 总时长
	MaxFactor float64 // 步长系数上限
	MinFactor float64 // 步长系数下限
	DtRatio   float64 // 步长折减系数
}

// NewParams 由地震动与求解设置得到参数
func NewParams(gm *types.GroundMotion, s types.SolverSettings) Params {
	return Params{
		Dt:        gm.Dt,
		Duration:  gm.Duration(),
		MaxFactor: s.MaxFactor,
		MinFactor: s.MinFactor,
		DtRatio:   s.DtRatio,
	}
}

// Validate 检查参数
func (p Params) Validate() error {
	switch {
	case !(p.Dt > 0) || math.IsInf(p.Dt, 0):
		return &types.ConfigError{Field: "dt", Msg: fmt.Sprintf("步长必须大于0: %g", p.Dt)}
	case !(p.Duration >= 0) || math.IsInf(p.Duration, 0):
		return &types.ConfigError{Field: "duration", Msg: fmt.Sprintf("总时长无效: %g", p.Duration)}
	case !(p.MaxFactor >= 1):
		return &types.ConfigError{Field: "solver.max_factor", Msg: fmt.Sprintf("最大步长系数不能小于1: %g", p.MaxFactor)}
	case !(p.MinFactor > 0) || p.MinFactor > 1:
		return &types.ConfigError{Field: "solver.min_factor", Msg: fmt.Sprintf("最小步长系数须在(0,1]内: %g", p.MinFactor)}
	case !(p.DtRatio > 0) || p.DtRatio > 1:
		return &types.ConfigError{Field: "solver.dt_ratio", Msg: fmt.Sprintf("步长折减系数须在(0,1]内: %g", p.DtRatio)}
	}
	return nil
}

// Outcome 分析结果，未收敛不作为错误返回
type Outcome struct {
	State    State
	Time     float64 // 已完成的时间
	Duration float64 // 总时长
	Factor   float64 // 结束时的步长系数
	Steps    int     // 收敛的步数
	Failures int     // 未收敛的尝试次数
}

// Converged 是否完成全部时长
func (o Outcome) Converged() bool { return o.State == Converged }

func (o Outcome) String() string {
	return fmt.Sprintf("%s t=%g/%g steps=%d failures=%d", o.State, o.Time, o.Duration, o.Steps, o.Failures)
}

// Driver 自适应步长驱动
// 收敛后步长系数加倍(不超过上限)，未收敛时时间不前进、系数除以 4，低于下限即失败。
type Driver struct {
	Logger *log.Logger // 日志，nil 时不输出
	Trace  *Trace      // 每次尝试的记录，nil 时不记录
}

func (d *Driver) logf(format string, args ...any) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

// endTol 结束判断的时间容差，相对于初始步长
const endTol = 1e-9

// Run 推进到总时长或失败
func (d *Driver) Run(s Stepper, p Params) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}
	out := Outcome{State: Running, Duration: p.Duration, Factor: 1}
	if d.Trace != nil {
		d.Trace.init(p)
	}
	for out.State == Running {
		if out.Time >= p.Duration-endTol*p.Dt {
			out.Time = p.Duration
			out.State = Converged
			break
		}
		dt := p.Dt * out.Factor * p.DtRatio
		if out.Time+dt > p.Duration {
			dt = p.Duration - out.Time
		}
		ok := s.Analyze(1, dt)
		if d.Trace != nil {
			d.Trace.update(out.Time, dt, out.Factor, ok)
		}
		if ok == 0 {
			out.Time += dt
			out.Steps++
			old := out.Factor
			out.Factor = math.Min(out.Factor*2, p.MaxFactor)
			if out.Factor != old {
				d.logf("--- Enlarge factor to %g ---", out.Factor)
			}
			continue
		}
		if f, ok := s.(Failer); ok {
			if err := f.Err(); err != nil {
				if d.Trace != nil {
					d.Trace.Outcome = "error"
				}
				return out, err
			}
		}
		out.Failures++
		out.Factor /= 4
		if out.Factor < p.MinFactor {
			d.logf("--- factor is less than the minimum allowed (%g < %g). ---", out.Factor, p.MinFactor)
			d.logf("--- Current time: %g, total time: %g. ---", out.Time, p.Duration)
			d.logf("--- The analysis did not converge. ---")
			out.State = Failed
			break
		}
		d.logf("Current step did not converge, reduce factor to %g.", out.Factor)
	}
	if d.Trace != nil {
		d.Trace.Outcome = out.State.String()
	}
	return out, nil
}
