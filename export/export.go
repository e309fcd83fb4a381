package export

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"nlmdof/result"
	"nlmdof/types"
)

// Precision 输出的小数位数
const Precision = 7

// UnitsFile 单位说明文件名
const UnitsFile = "units.txt"

// Exporter 将结果导出为空白分隔的数值文本
// 加速度换算为 g，力换算为 kN，其余保持模型单位 N、mm、s。
type Exporter struct {
	Dir    string       // 输出目录
	G      float64      // 重力加速度(模型单位)
	Model  *types.Model // 用于滞回曲线文件名中的材料名称，可为 nil
	Logger *log.Logger  // 日志，nil 时不输出
}

// New 创建导出器
func New(dir string, m *types.Model) *Exporter {
	return &Exporter{Dir: dir, G: types.DefaultG, Model: m}
}

func (e *Exporter) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// appendRow 按固定小数位追加一行
func appendRow(buf []byte, row []float64) []byte {
	for j, v := range row {
		if j > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendFloat(buf, v, 'f', Precision, 64)
	}
	return append(buf, '\n')
}

// WriteMatrix 写入矩阵，每行一个时刻
func WriteMatrix(path string, m mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	rows, cols := m.Dims()
	row := make([]float64, cols)
	var buf []byte
	for i := 0; i < rows; i++ {
		for j := range row {
			row[j] = m.At(i, j)
		}
		buf = appendRow(buf[:0], row)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// WriteColumns 将若干等长序列按列写入
func WriteColumns(path string, cols ...[]float64) error {
	if len(cols) == 0 {
		return fmt.Errorf("%s: 没有数据", path)
	}
	n := len(cols[0])
	if n == 0 {
		return os.WriteFile(path, nil, 0o644)
	}
	m := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		if len(c) != n {
			return fmt.Errorf("%s: 第%d列长度 %d，应为 %d", path, j+1, len(c), n)
		}
		m.SetCol(j, c)
	}
	return WriteMatrix(path, m)
}

// scale 返回 v·k 的副本
func scale(v []float64, k float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * k
	}
	return out
}

// scaled 返回 m·k 的副本
func scaled(m *mat.Dense, k float64) *mat.Dense {
	var out mat.Dense
	out.Scale(k, m)
	return &out
}

// name 第 tag 号材料的名称
func (e *Exporter) name(tag int) string {
	if e.Model != nil {
		if h, ok := e.Model.Library.ByTag(tag); ok {
			if en, ok := e.Model.Library.Get(h); ok {
				return types.SanitizeName(en.Name)
			}
		}
	}
	return fmt.Sprintf("mat%d", tag)
}

// prefix 第 index 条(从 1 开始)地震动的文件前缀
func (e *Exporter) prefix(index int, gm string) string {
	return filepath.Join(e.Dir, fmt.Sprintf("%d_%s_", index, gm))
}

// Results 导出第 index 条地震动的全部时程结果
func (e *Exporter) Results(index int, r *result.Results) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}
	g := e.G
	if !(g > 0) {
		g = types.DefaultG
	}
	e.logf("正在导出 %s", r.Name)
	p := e.prefix(index, r.Name)
	cols := map[string][]float64{
		"time.txt":               r.T,
		"base_acc(g).txt":        scale(r.BaseAcc, 1/g),
		"base_vel(mm_s).txt":     r.BaseVel,
		"base_disp(mm).txt":      r.BaseDisp,
		"base_shear(kN).txt":     scale(r.BaseReaction, 1e-3),
		"max_drift(mm).txt":      r.DriftEnvelope(),
		"residual_drift(mm).txt": r.ResidualDrift(),
		"acc_envelope(g).txt":    scale(r.AccelEnvelope(), 1/g),
		"shear_envelope(kN).txt": scale(r.ShearEnvelope(), 1e-3),
	}
	for name, c := range cols {
		if err := WriteColumns(p+name, c); err != nil {
			return err
		}
	}
	mats := map[string]*mat.Dense{
		"abs_acc(g).txt":      scaled(r.Absolute(result.Acc), 1/g),
		"abs_vel(mm_s).txt":   r.Absolute(result.Vel),
		"abs_disp(mm).txt":    r.Absolute(result.Disp),
		"rel_acc(g).txt":      scaled(r.Relative(result.Acc), 1/g),
		"rel_vel(mm_s).txt":   r.Relative(result.Vel),
		"rel_disp(mm).txt":    r.Relative(result.Disp),
		"drift(mm).txt":       r.Drift(),
		"story_shear(kN).txt": scaled(r.StoryShear(), 1e-3),
	}
	for name, m := range mats {
		if err := WriteMatrix(p+name, m); err != nil {
			return err
		}
	}
	return e.hysteresis(p, r)
}

// hysteresis 每根弹簧及并联楼层的滞回曲线(变形 mm, 力 kN)
func (e *Exporter) hysteresis(p string, r *result.Results) error {
	for s, tags := range r.Layout {
		for k, tag := range tags {
			i, err := r.SpringIndex(s+1, k)
			if err != nil {
				return err
			}
			def, force, err := r.Hysteresis(i)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("story%d_spring%d_%s.txt", s+1, k+1, e.name(tag))
			if err := WriteColumns(p+name, def, scale(force, 1e-3)); err != nil {
				return err
			}
		}
		if len(tags) > 1 {
			def, force, err := r.StoryHysteresis(s + 1)
			if err != nil {
				return err
			}
			if err := WriteColumns(p+fmt.Sprintf("story%d_parallel.txt", s+1), def, scale(force, 1e-3)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Modes 导出周期与振型，振型文件每行一层、每列一阶
func (e *Exporter) Modes(m *result.ModeResults) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}
	if err := WriteColumns(filepath.Join(e.Dir, "periods(s).txt"), m.Periods); err != nil {
		return err
	}
	return WriteMatrix(filepath.Join(e.Dir, "modes.txt"), m.Shapes.T())
}

// Units 写入单位说明
func (e *Exporter) Units() error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.Dir, UnitsFile), []byte("units:\nN, mm, s\nacceleration in g, force in kN\n"), 0o644)
}
