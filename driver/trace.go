package driver

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Trace 记录每次步长尝试
type Trace struct {
	Dt0      float64   // 初始步长
	Duration float64   // 总时长
	Time     []float64 // 尝试开始的时间
	Step     []float64 // 尝试的步长
	Factor   []float64 // 尝试时的步长系数
	Code     []int     // 求解器返回值
	Outcome  string    // 最终状态
}

func (t *Trace) init(p Params) {
	*t = Trace{Dt0: p.Dt, Duration: p.Duration}
}

func (t *Trace) update(time, dt, factor float64, code int) {
	t.Time = append(t.Time, time)
	t.Step = append(t.Step, dt)
	t.Factor = append(t.Factor, factor)
	t.Code = append(t.Code, code)
}

// Len 尝试次数
func (t *Trace) Len() int { return len(t.Time) }

// Render 以 JSON 输出
func (t *Trace) Render(w io.Writer) error { return json.NewEncoder(w).Encode(t) }

// Plot 绘制步长随时间变化，未收敛的尝试以散点标出
func (t *Trace) Plot(file string) error {
	if t.Len() == 0 {
		return fmt.Errorf("没有步长记录")
	}
	p := plot.New()
	p.Title.Text = "Adaptive step size"
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "dt (s)"

	var good, bad plotter.XYs
	for i := range t.Time {
		xy := plotter.XY{X: t.Time[i], Y: t.Step[i]}
		if t.Code[i] == 0 {
			good = append(good, xy)
		} else {
			bad = append(bad, xy)
		}
	}
	if len(good) > 0 {
		line, err := plotter.NewLine(good)
		if err != nil {
			return err
		}
		p.Add(line)
		p.Legend.Add("converged", line)
	}
	if len(bad) > 0 {
		sc, err := plotter.NewScatter(bad)
		if err != nil {
			return err
		}
		p.Add(sc)
		p.Legend.Add("not converged", sc)
	}
	return p.Save(8*vg.Inch, 4*vg.Inch, file)
}
