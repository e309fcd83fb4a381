// Package main provides the nlmdof command line.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"nlmdof/config"
	"nlmdof/result"
)

var (
	projectPath string
	envFile     string
	resultDir   string
	quiet       bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nlmdof",
		Short:         "剪切层模型非线性时程分析",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if envFile != "" {
				config.LoadEnv(envFile)
			} else {
				config.LoadEnv()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", config.DefaultProjectPath(), "工程文件(TOML)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", ".env 文件，默认读取当前目录下的 .env")
	rootCmd.PersistentFlags().StringVar(&resultDir, "dir", "", "结果目录，默认 {NLMDOF_TEMP}/"+result.DirName)
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "不输出计算过程")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newModesCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newImportCheckCmd())
	return rootCmd
}

// newLogger 计算过程日志，quiet 时返回 nil
func newLogger() *log.Logger {
	if quiet {
		return nil
	}
	return log.New(os.Stderr, "", log.LstdFlags)
}

// loadSetup 读取工程文件并得到分析输入
func loadSetup() (*config.Setup, error) {
	p, err := config.LoadProject(projectPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	g, err := config.G()
	if err != nil {
		return nil, err
	}
	dir := resultDir
	if dir == "" {
		dir = config.ResultsDir()
	}
	return p.Setup(g, dir)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		_ = err
	}
}
