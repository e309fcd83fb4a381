package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"nlmdof"
	"nlmdof/batch"
	"nlmdof/config"
	"nlmdof/export"
	"nlmdof/result"
	"nlmdof/store"
)

var (
	runNoExport  bool
	runNoHistory bool
	runTrace     bool
	runStop      bool
	runExportDir string
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "依次计算工程文件中的全部地震动",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}
	cmd.Flags().BoolVar(&runNoExport, "no-export", false, "不导出数值文本")
	cmd.Flags().BoolVar(&runNoHistory, "no-history", false, "不写入计算记录")
	cmd.Flags().BoolVar(&runTrace, "trace", false, "记录并绘制步长变化")
	cmd.Flags().BoolVar(&runStop, "stop-on-failure", false, "地震动未收敛时停止")
	cmd.Flags().StringVar(&runExportDir, "export-dir", "", "导出目录，默认为结果目录下的 export")
	return cmd
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	setup, err := loadSetup()
	if err != nil {
		return err
	}
	a := setup.Analysis
	logger := newLogger()
	a.Logger = logger
	if cmd.Flags().Changed("trace") {
		a.Trace = runTrace
	}
	if cmd.Flags().Changed("stop-on-failure") {
		setup.ContinueOnFailure = !runStop
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exportDir := runExportDir
	if exportDir == "" {
		exportDir = filepath.Join(a.Dir, "export")
	}
	exp := export.New(exportDir, a.Model)
	exp.G = a.G
	exp.Logger = logger

	w := batch.NewWorker(a, logger)
	w.ContinueOnFailure = setup.ContinueOnFailure
	w.Register(batch.EventDiverge, func(ev batch.Event) {
		logErrf("%s 未收敛: %s\n", ev.Name, ev.Report.Outcome)
	})
	w.Register(batch.EventStep, func(ev batch.Event) {
		if !quiet {
			logErrf("进度 %d/%d (%d%%)\n", ev.Index, ev.Total, ev.Percent)
		}
	})
	if a.Trace {
		if err := os.MkdirAll(exportDir, 0o755); err != nil {
			return err
		}
	}

	started := time.Now()
	job, err := w.Start(ctx, setup.Motions)
	if err != nil {
		return err
	}
	// 后台计算下一条地震动时导出已完成的地震动
	exported := make(chan struct{})
	go func() {
		defer close(exported)
		for i := range setup.Motions {
			rep, ok := job.Report(i)
			if !ok {
				return
			}
			exportMotion(a, exp, i+1, rep)
		}
	}()
	job.Dispatch()
	summary := job.Wait()
	<-exported
	ended := time.Now()
	records := motionRecords(a, summary)

	if !runNoExport && summary.Completed() > 0 {
		if err := exportModes(exp, setup); err != nil {
			logErrf("导出振型失败: %v\n", err)
		}
	}
	if !runNoHistory {
		if err := saveHistory(ctx, setup, summary, records, started, ended); err != nil {
			logErrf("写入计算记录失败: %v\n", err)
		}
	}

	if _, err := fmt.Fprintln(cmd.OutOrStdout(), renderMotions(records)); err != nil {
		return err
	}
	switch {
	case summary.Cancelled:
		logErrf("计算被中断: 已完成 %d/%d\n", summary.Completed(), len(setup.Motions))
	case summary.Stopped:
		logErrf("因未收敛停止: 已完成 %d/%d\n", summary.Completed(), len(setup.Motions))
	}
	return summary.Err
}

// exportMotion 导出一条地震动的步长图与收敛结果
func exportMotion(a *nlmdof.Analysis, exp *export.Exporter, index int, rep *nlmdof.Report) {
	if rep.Trace != nil {
		if err := rep.Trace.Plot(filepath.Join(exp.Dir, rep.Name()+"_trace.png")); err != nil {
			logErrf("%s: 绘制步长失败: %v\n", rep.Name(), err)
		}
	}
	if runNoExport || !rep.Outcome.Converged() {
		return
	}
	res, err := a.Load(rep)
	if err != nil {
		logErrf("%s: 读取结果失败: %v\n", rep.Name(), err)
		return
	}
	if err := exp.Results(index, res); err != nil {
		logErrf("%s: 导出失败: %v\n", rep.Name(), err)
	}
}

// motionRecords 每条已计算地震动的记录，收敛的读取结果得到峰值
func motionRecords(a *nlmdof.Analysis, s batch.Summary) []store.Motion {
	records := make([]store.Motion, 0, len(s.Reports))
	for i, rep := range s.Reports {
		if rep == nil {
			continue
		}
		var res *result.Results
		if rep.Outcome.Converged() {
			r, err := a.Load(rep)
			if err != nil {
				logErrf("%s: 读取结果失败: %v\n", rep.Name(), err)
			} else {
				res = r
			}
		}
		records = append(records, store.NewMotion(i+1, rep, res, a.G))
	}
	return records
}

// exportModes 导出周期、振型与单位说明
func exportModes(exp *export.Exporter, setup *config.Setup) error {
	modes, err := setup.Analysis.Modes()
	if err != nil {
		return err
	}
	return errors.Join(exp.Modes(modes), exp.Units())
}

// saveHistory 写入计算记录
func saveHistory(ctx context.Context, setup *config.Setup, s batch.Summary, motions []store.Motion, started, ended time.Time) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	run := store.Run{
		StartedAt: started.UTC(),
		EndedAt:   ended.UTC(),
		Project:   projectPath,
		Dir:       setup.Analysis.Dir,
		Stories:   setup.Analysis.Model.N(),
		Total:     len(setup.Motions),
		Completed: s.Completed(),
		Diverged:  len(s.Diverged),
		Cancelled: s.Cancelled,
	}
	if s.Err != nil {
		run.Err = s.Err.Error()
	}
	// 中断后 ctx 已取消，记录仍需写入
	id, err := st.InsertRun(context.WithoutCancel(ctx), run, motions)
	if err != nil {
		return err
	}
	if !quiet {
		logErrf("计算记录 %s\n", id)
	}
	return nil
}
