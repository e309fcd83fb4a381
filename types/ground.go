package types

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Unit 地震动加速度单位
type Unit uint8

const (
	UnitG    Unit = iota // g
	UnitMMS2             // mm/s^2
	UnitCMS2             // cm/s^2
	UnitMS2              // m/s^2
)

var unitString = map[Unit]string{
	UnitG:    "g",
	UnitMMS2: "mm/s^2",
	UnitCMS2: "cm/s^2",
	UnitMS2:  "m/s^2",
}

func (u Unit) String() string {
	if s, ok := unitString[u]; ok {
		return s
	}
	return "Unknown"
}

// ScaleToG 换算到 g 的系数，g 取 DefaultG (mm/s^2)
func (u Unit) ScaleToG() float64 {
	return u.ScaleToGWith(DefaultG)
}

// ScaleToGWith 按给定的重力加速度(mm/s^2)换算到 g 的系数
func (u Unit) ScaleToGWith(g float64) float64 {
	switch u {
	case UnitMMS2:
		return 1 / g
	case UnitCMS2:
		return 10 / g
	case UnitMS2:
		return 1000 / g
	}
	return 1
}

// ParseUnit 解析单位名称
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "", "g":
		return UnitG, nil
	case "mm/s^2", "mm/s2", "mm":
		return UnitMMS2, nil
	case "cm/s^2", "cm/s2", "gal", "cm":
		return UnitCMS2, nil
	case "m/s^2", "m/s2", "m":
		return UnitMS2, nil
	}
	return UnitG, configErrorf("ground_motion.unit", "未知单位: %s", s)
}

// GroundMotion 地震动加速度时程
type GroundMotion struct {
	Name  string    // 名称，用作结果文件前缀
	Accel []float64 // 加速度
	Dt    float64   // 时间步长
	Unit  Unit      // 单位
}

// NewGroundMotion 创建地震动并检查
func NewGroundMotion(name string, accel []float64, dt float64, unit Unit) (*GroundMotion, error) {
	gm := &GroundMotion{Name: SanitizeName(name), Accel: accel, Dt: dt, Unit: unit}
	if err := gm.Validate(); err != nil {
		return nil, err
	}
	return gm, nil
}

// SanitizeName 去掉名称中的路径分隔符
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, "\\", "_")
}

// Validate 检查地震动
func (gm *GroundMotion) Validate() error {
	switch {
	case gm.Name == "":
		return configErrorf("ground_motion.name", "地震动名称为空")
	case len(gm.Accel) == 0:
		return configErrorf("ground_motion.data", "%s: 数据为空", gm.Name)
	case !finite(gm.Dt) || gm.Dt <= 0:
		return configErrorf("ground_motion.dt", "%s: 时间步长必须大于0: %g", gm.Name, gm.Dt)
	}
	for i, v := range gm.Accel {
		if !finite(v) {
			return configErrorf("ground_motion.data", "%s: 第%d个数据不是有限值", gm.Name, i+1)
		}
	}
	return nil
}

// NPTS 步数(点数减一)
func (gm *GroundMotion) NPTS() int { return len(gm.Accel) - 1 }

// Duration 持时 NPTS·dt
func (gm *GroundMotion) Duration() float64 { return float64(gm.NPTS()) * gm.Dt }

// PGA 峰值加速度
func (gm *GroundMotion) PGA() float64 {
	pga := 0.0
	for _, v := range gm.Accel {
		pga = math.Max(pga, math.Abs(v))
	}
	return pga
}

// Time 时间序列 k·dt
func (gm *GroundMotion) Time() []float64 {
	t := make([]float64, len(gm.Accel))
	for k := range t {
		t[k] = float64(k) * gm.Dt
	}
	return t
}

// WithFreeVibration 在末尾补 int(fv/dt) 个 0
func (gm *GroundMotion) WithFreeVibration(fv float64) *GroundMotion {
	out := *gm
	n := 0
	if fv > 0 {
		n = int(fv / gm.Dt)
	}
	out.Accel = make([]float64, len(gm.Accel), len(gm.Accel)+n)
	copy(out.Accel, gm.Accel)
	out.Accel = append(out.Accel, make([]float64, n)...)
	return &out
}

// ScaleMode 地震动缩放方式
type ScaleMode uint8

const (
	ScaleNone      ScaleMode = iota // 不缩放
	ScaleNormalize                  // 归一化到 PGA=1
	ScalePGA                        // 指定 PGA
	ScaleFactor                     // 指定缩放系数
)

// ParseScaleMode 解析缩放方式
func ParseScaleMode(s string) (ScaleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ScaleNone, nil
	case "normalize", "normalise":
		return ScaleNormalize, nil
	case "pga":
		return ScalePGA, nil
	case "factor", "sf":
		return ScaleFactor, nil
	}
	return ScaleNone, configErrorf("ground_motion.scale", "未知缩放方式: %s", s)
}

// Scaled 返回缩放后的地震动，原数据不变
func (gm *GroundMotion) Scaled(mode ScaleMode, value float64) (*GroundMotion, error) {
	k := 1.0
	switch mode {
	case ScaleNone:
	case ScaleNormalize, ScalePGA:
		pga := gm.PGA()
		if pga == 0 {
			return nil, configErrorf("ground_motion.scale", "%s: 数据均为0", gm.Name)
		}
		k = 1 / pga
		if mode == ScalePGA {
			if !finite(value) || value <= 0 {
				return nil, configErrorf("ground_motion.pga", "%s: 目标PGA必须大于0: %g", gm.Name, value)
			}
			k *= value
		}
	case ScaleFactor:
		if !finite(value) || value == 0 {
			return nil, configErrorf("ground_motion.factor", "%s: 缩放系数不能为0", gm.Name)
		}
		k = value
	default:
		return nil, configErrorf("ground_motion.scale", "未知缩放方式: %d", mode)
	}
	out := *gm
	out.Accel = make([]float64, len(gm.Accel))
	for i, v := range gm.Accel {
		out.Accel[i] = v * k
	}
	return &out, nil
}

// ImportOptions 地震动文本导入选项
type ImportOptions struct {
	Name     string  // 名称，为空时取文件名
	SkipRows int     // 跳过的表头行数
	TimeAcc  bool    // 两列: 时间 加速度；否则为单列加速度
	Dt       float64 // 单列时的时间步长
	Unit     Unit    // 单位
}

// ReadGroundMotion 读取文本格式地震动
func ReadGroundMotion(r io.Reader, opt ImportOptions) (*GroundMotion, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var t, a []float64
	row := 0
	for scanner.Scan() {
		row++
		if row <= opt.SkipRows {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		if opt.TimeAcc {
			if len(fields) < 2 {
				return nil, configErrorf("ground_motion.data", "第%d行应为两列: %s", row, line)
			}
			tv, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				return nil, configErrorf("ground_motion.data", "第%d行时间无法解析: %v", row, err)
			}
			t = append(t, tv)
			fields = fields[1:2]
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, configErrorf("ground_motion.data", "第%d行数据无法解析: %v", row, err)
			}
			a = append(a, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取地震动失败: %w", err)
	}
	if len(a) == 0 {
		return nil, configErrorf("ground_motion.data", "数据为空")
	}
	dt := opt.Dt
	if opt.TimeAcc {
		for i, tv := range t {
			if tv < 0 {
				return nil, configErrorf("ground_motion.time", "时间序列存在负数")
			}
			if i > 0 && tv-t[i-1] <= 0 {
				return nil, configErrorf("ground_motion.time", "时间序列不是单调递增的")
			}
		}
		if len(t) < 2 {
			return nil, configErrorf("ground_motion.time", "时间序列至少需要两个点")
		}
		dt = t[1] - t[0]
	}
	return NewGroundMotion(opt.Name, a, dt, opt.Unit)
}

// NameFromPath 由文件路径得到地震动名称
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	return SanitizeName(base)
}
