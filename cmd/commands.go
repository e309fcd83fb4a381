package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"nlmdof/config"
	"nlmdof/export"
	"nlmdof/store"
	"nlmdof/types"
)

var (
	historyLimit int

	checkDt       float64
	checkUnit     string
	checkTimeAcc  bool
	checkSkipRows int
	checkScale    string
	checkValue    float64
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "显示上次计算的周期与振型",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setup, err := loadSetup()
			if err != nil {
				return err
			}
			modes, err := setup.Analysis.Modes()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderModes(modes))
			return err
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "由结果目录重新导出数值文本",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			setup, err := loadSetup()
			if err != nil {
				return err
			}
			a := setup.Analysis
			if out == "" {
				out = filepath.Join(a.Dir, "export")
			}
			exp := export.New(out, a.Model)
			exp.G = a.G
			exp.Logger = newLogger()
			n := 0
			for i, gm := range setup.Motions {
				r, err := a.LoadMotion(gm)
				if err != nil {
					logErrf("跳过 %v\n", err)
					continue
				}
				if err := exp.Results(i+1, r); err != nil {
					return err
				}
				n++
			}
			if n == 0 {
				return fmt.Errorf("%s: 没有可导出的结果", a.Dir)
			}
			if err := exportModes(exp, setup); err != nil {
				return err
			}
			logErrf("已导出 %d/%d 条地震动到 %s\n", n, len(setup.Motions), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "导出目录，默认为结果目录下的 export")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "显示计算记录",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLimit, "last", 20, "最近的 N 次计算，0 为全部")
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "删除一次计算记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withStore(func(st *store.Store) error {
				return st.DeleteRun(context.Background(), args[0])
			})
		},
	})
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	return withStore(func(st *store.Store) error {
		if len(args) == 1 {
			run, err := st.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			motions, err := st.ListMotions(ctx, run.ID)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", renderRuns([]store.Run{run}), renderMotions(motions))
			return err
		}
		runs, err := st.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			logErrf("没有计算记录\n")
			return nil
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
		return err
	})
}

// withStore 打开计算记录数据库并在 f 返回后关闭
func withStore(f func(st *store.Store) error) error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()
	return f(st)
}

func newImportCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-check <file>...",
		Short: "检查地震动文件能否导入",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImportCheckCmd,
	}
	cmd.Flags().Float64Var(&checkDt, "dt", 0, "单列数据的时间步长")
	cmd.Flags().StringVar(&checkUnit, "unit", "g", "单位: g, mm/s^2, cm/s^2, m/s^2")
	cmd.Flags().BoolVar(&checkTimeAcc, "time-acc", false, "两列数据: 时间 加速度")
	cmd.Flags().IntVar(&checkSkipRows, "skip-rows", 0, "跳过的表头行数")
	cmd.Flags().StringVar(&checkScale, "scale", "none", "缩放: none, normalize, pga, factor")
	cmd.Flags().Float64Var(&checkValue, "value", 1, "目标 PGA 或缩放系数")
	return cmd
}

func runImportCheckCmd(cmd *cobra.Command, args []string) error {
	g, err := config.G()
	if err != nil {
		return err
	}
	gc := config.GroundMotionConfig{
		Unit:     checkUnit,
		TimeAcc:  checkTimeAcc,
		SkipRows: checkSkipRows,
		Scale:    checkScale,
		Value:    &checkValue,
	}
	if cmd.Flags().Changed("dt") {
		gc.Dt = &checkDt
	}
	var motions []*types.GroundMotion
	failed := 0
	for _, path := range args {
		gc.File = path
		gm, err := gc.Motion("")
		if err != nil {
			logErrf("%s: %v\n", path, err)
			failed++
			continue
		}
		motions = append(motions, gm)
	}
	if len(motions) > 0 {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), renderImports(motions, g)); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d 个文件无法导入", failed)
	}
	return nil
}
