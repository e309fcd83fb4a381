package result

import (
	"fmt"
	"path/filepath"
)

// DirName 结果目录名
const DirName = "temp_NLMDOF_results"

// Channel 每条地震动记录的结果通道
type Channel string

const (
	BaseReaction Channel = "base_reaction" // 时间 + 基底反力
	BaseAcc      Channel = "base_acc"      // 基底绝对加速度
	BaseVel      Channel = "base_vel"      // 基底绝对速度
	BaseDisp     Channel = "base_disp"     // 基底绝对位移
	FloorAcc     Channel = "floor_acc"     // 楼层相对加速度
	FloorVel     Channel = "floor_vel"     // 楼层相对速度
	FloorDisp    Channel = "floor_disp"    // 楼层相对位移
	Material     Channel = "material"      // 弹簧 力-变形
)

// Channels 按读取顺序排列的全部通道
var Channels = []Channel{BaseReaction, BaseAcc, BaseVel, BaseDisp, FloorAcc, FloorVel, FloorDisp, Material}

// Dir 结果根目录 root 下的结果目录
func Dir(root string) string { return filepath.Join(root, DirName) }

// File 地震动 gm 的通道文件
func (c Channel) File(dir, gm string) string {
	return filepath.Join(dir, gm+"_"+string(c)+".txt")
}

// ModeFile 第 k 阶振型文件(从 1 开始)
func ModeFile(dir string, k int) string {
	return filepath.Join(dir, fmt.Sprintf("mode_%d.txt", k))
}

// PeriodsFile 周期文件
func PeriodsFile(dir string) string { return filepath.Join(dir, "Periods.txt") }
