// Package config provides XDG path helpers, environment overrides and the TOML project file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"nlmdof/result"
	"nlmdof/types"
)

// 环境变量
const (
	EnvTemp = "NLMDOF_TEMP" // 结果临时目录的上级目录
	EnvG    = "NLMDOF_G"    // 重力加速度(模型单位)
	EnvDB   = "NLMDOF_DB"   // 计算记录数据库路径
)

// XDGDataHome 返回 XDG 数据目录，未设置时使用默认位置
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// XDGConfigHome 返回 XDG 配置目录，未设置时使用默认位置
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// DefaultDBPath 计算记录数据库的默认路径
func DefaultDBPath() string {
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		return v
	}
	return filepath.Join(XDGDataHome(), "nlmdof", "history.db")
}

// DefaultProjectPath 默认工程文件
func DefaultProjectPath() string {
	return filepath.Join(XDGConfigHome(), "nlmdof", "project.toml")
}

// TempRoot 结果临时目录的上级目录，未设置 NLMDOF_TEMP 时使用系统临时目录
func TempRoot() string {
	if v := strings.TrimSpace(os.Getenv(EnvTemp)); v != "" {
		return v
	}
	return os.TempDir()
}

// ResultsDir 结果目录 {TempRoot}/temp_NLMDOF_results
func ResultsDir() string { return result.Dir(TempRoot()) }

// G 重力加速度，NLMDOF_G 无效时返回配置错误
func G() (float64, error) {
	v := strings.TrimSpace(os.Getenv(EnvG))
	if v == "" {
		return types.DefaultG, nil
	}
	g, err := strconv.ParseFloat(v, 64)
	if err != nil || !(g > 0) {
		return 0, &types.ConfigError{Field: EnvG, Msg: "重力加速度必须为正数: " + v}
	}
	return g, nil
}

// LoadEnv 读取 .env 文件，文件不存在时忽略；已设置的环境变量不被覆盖
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}
