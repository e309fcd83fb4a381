package batch

import (
	"context"
	"fmt"
	"log"

	"nlmdof"
	"nlmdof/ops"
	"nlmdof/types"
)

// Runner 对一条地震动完成分析
type Runner interface {
	Validate(motions ...*types.GroundMotion) error
	Run(c ops.Capability, gm *types.GroundMotion) (*nlmdof.Report, error)
}

var _ Runner = (*nlmdof.Analysis)(nil)

// Worker 后台批处理，按顺序逐条计算地震动
// 同一时刻只计算一条地震动；中断请求在每条地震动结束后检查。
type Worker struct {
	Runner            Runner
	NewCapability     func() ops.Capability // 创建求解器，每次批处理一个
	ContinueOnFailure bool                  // 未收敛时继续计算后续地震动
	Logger            *log.Logger           // 日志，nil 时不输出

	handlers map[EventType]Handler
}

// NewWorker 创建批处理，默认未收敛时继续
func NewWorker(r Runner, logger *log.Logger) *Worker {
	return &Worker{
		Runner:            r,
		NewCapability:     func() ops.Capability { return ops.NewSession(logger) },
		ContinueOnFailure: true,
		Logger:            logger,
		handlers:          make(map[EventType]Handler),
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.Logger != nil {
		w.Logger.Printf(format, args...)
	}
}

// Register 注册事件处理器，同一类型只能注册一次
func (w *Worker) Register(t EventType, h Handler) bool {
	if w.handlers == nil {
		w.handlers = make(map[EventType]Handler)
	}
	if _, ok := w.handlers[t]; ok || h == nil {
		return false
	}
	w.handlers[t] = h
	return true
}

// Summary 批处理结果
type Summary struct {
	Reports   []*nlmdof.Report // 按地震动顺序，未计算的为 nil
	Diverged  []string         // 未收敛的地震动
	Err       error            // 使批处理停止的错误
	Cancelled bool             // 被中断
	Stopped   bool             // 因未收敛而停止
}

// Completed 已计算的地震动数
func (s Summary) Completed() int {
	n := 0
	for _, r := range s.Reports {
		if r != nil {
			n++
		}
	}
	return n
}

// Job 正在运行的批处理
type Job struct {
	Flags   *Flags
	events  *events
	done    chan struct{}
	summary Summary
}

// Events 事件通道，批处理结束后关闭
func (j *Job) Events() <-chan Event { return j.events.ch }

// Dispatch 依次处理事件直到批处理结束
func (j *Job) Dispatch() {
	for ev := range j.events.ch {
		j.events.callback(ev)
	}
}

// Report 等待第 i 条地震动(从 0 开始)计算结束并返回其报告
// 批处理结束时仍未计算或出错的返回 false。返回后可以读取该地震动的结果，
// 此时后台可能正在计算下一条地震动。
func (j *Job) Report(i int) (*nlmdof.Report, bool) {
	if !j.Flags.Wait(i) {
		return nil, false
	}
	return j.summary.Reports[i], true
}

// Wait 等待批处理结束
func (j *Job) Wait() Summary {
	<-j.done
	return j.summary
}

// Start 检查全部输入后在后台开始计算
// 输入不合法时返回配置错误，不计算任何地震动。
func (w *Worker) Start(ctx context.Context, motions []*types.GroundMotion) (*Job, error) {
	if w.Runner == nil {
		return nil, &types.ConfigError{Field: "analysis", Msg: "未定义分析"}
	}
	if err := w.Runner.Validate(motions...); err != nil {
		return nil, err
	}
	newCap := w.NewCapability
	if newCap == nil {
		newCap = func() ops.Capability { return ops.NewSession(w.Logger) }
	}
	handlers := make(map[EventType]Handler, len(w.handlers))
	for t, h := range w.handlers {
		handlers[t] = h
	}
	n := len(motions)
	job := &Job{
		Flags: newFlags(n),
		// 每条地震动两个事件，另加一个结束事件
		events: newEvents(handlers, 2*n+1),
		done:   make(chan struct{}),
	}
	job.summary.Reports = make([]*nlmdof.Report, n)
	motions = append([]*types.GroundMotion(nil), motions...)
	go w.run(ctx, newCap(), motions, job)
	return job, nil
}

func (w *Worker) run(ctx context.Context, c ops.Capability, motions []*types.GroundMotion, job *Job) {
	s := &job.summary
	n := len(motions)
	terminal := EventFinished
	defer func() {
		job.Flags.close()
		job.events.send(Event{Type: terminal, Index: s.Completed(), Total: n, Err: s.Err})
		job.events.close()
		close(job.done)
	}()
	for i, gm := range motions {
		w.logf("正在运行...(%d/%d) %s", i+1, n, gm.Name)
		rep, err := w.Runner.Run(c, gm)
		ev := Event{Index: i + 1, Total: n, Name: gm.Name, Report: rep}
		switch {
		case err != nil:
			ev.Type, ev.Err = EventError, err
			s.Err = fmt.Errorf("%s: %w", gm.Name, err)
		case rep.Outcome.Converged():
			ev.Type = EventConverge
		default:
			ev.Type = EventDiverge
			s.Diverged = append(s.Diverged, gm.Name)
		}
		s.Reports[i] = rep
		if err == nil {
			job.Flags.release(i)
		}
		job.events.send(ev)
		job.events.send(Event{Type: EventStep, Index: i + 1, Total: n, Percent: (i + 1) * 100 / n, Name: gm.Name})
		if err := ctx.Err(); err != nil {
			w.logf("计算中断: 已完成 %d/%d", i+1, n)
			s.Cancelled = true
			terminal = EventCancelled
			return
		}
		if s.Err != nil {
			w.logf("计算出错: %v", s.Err)
			return
		}
		if ev.Type == EventDiverge && !w.ContinueOnFailure {
			w.logf("%s 未收敛，停止计算", gm.Name)
			s.Stopped = true
			return
		}
	}
}
