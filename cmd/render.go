package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"nlmdof/result"
	"nlmdof/store"
	"nlmdof/types"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E")).Bold(true)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

// renderTable 按列对齐，style 为 nil 时使用 cellStyle
func renderTable(header []string, rows [][]string, style func(row, col int) lipgloss.Style) string {
	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for j, c := range row {
			widths[j] = max(widths[j], lipgloss.Width(c))
		}
	}
	var b strings.Builder
	line := func(cells []string, s func(col int) lipgloss.Style) {
		parts := make([]string, len(cells))
		for j, c := range cells {
			parts[j] = s(j).Width(widths[j] + 2).Render(c)
		}
		b.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, parts...), " "))
		b.WriteByte('\n')
	}
	line(header, func(int) lipgloss.Style { return headerStyle })
	for i, row := range rows {
		line(row, func(j int) lipgloss.Style {
			if style != nil {
				return style(i, j)
			}
			return cellStyle
		})
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// renderMotions 每条地震动一行
func renderMotions(motions []store.Motion) string {
	if len(motions) == 0 {
		return mutedStyle.Render("没有计算结果")
	}
	header := []string{"#", "地震动", "状态", "时间(s)", "步数", "失败", "T1(s)", "最大层间位移(mm)", "最大加速度(g)"}
	rows := make([][]string, len(motions))
	for i, m := range motions {
		rows[i] = []string{
			strconv.Itoa(m.Index),
			m.Name,
			m.State,
			fmt.Sprintf("%s/%s", formatFloat(m.Time, 2), formatFloat(m.Duration, 2)),
			strconv.Itoa(m.Steps),
			strconv.Itoa(m.Failures),
			formatFloat(m.T1, 4),
			formatFloat(m.PeakDrift, 3),
			formatFloat(m.PeakAccel, 3),
		}
	}
	return renderTable(header, rows, func(i, j int) lipgloss.Style {
		if j != 2 {
			return cellStyle
		}
		if motions[i].State == "converged" {
			return okStyle
		}
		return errorStyle
	})
}

// renderRuns 每次批处理一行
func renderRuns(runs []store.Run) string {
	header := []string{"ID", "结束时间", "楼层", "完成", "未收敛", "状态", "工程文件"}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		state := "finished"
		switch {
		case r.Err != "":
			state = "error"
		case r.Cancelled:
			state = "cancelled"
		case r.Completed < r.Total:
			state = "stopped"
		}
		rows[i] = []string{
			r.ID,
			r.EndedAt.Local().Format("2006-01-02 15:04:05"),
			strconv.Itoa(r.Stories),
			fmt.Sprintf("%d/%d", r.Completed, r.Total),
			strconv.Itoa(r.Diverged),
			state,
			r.Project,
		}
	}
	return renderTable(header, rows, func(i, j int) lipgloss.Style {
		if j == 5 && rows[i][5] != "finished" {
			return errorStyle
		}
		return cellStyle
	})
}

// renderModes 周期与归一化振型，每列一阶
func renderModes(m *result.ModeResults) string {
	header := []string{"楼层"}
	for k := 1; k <= m.ModeNum(); k++ {
		header = append(header, fmt.Sprintf("振型%d", k))
	}
	_, n := m.Shapes.Dims()
	rows := make([][]string, 0, n+1)
	periods := []string{"T(s)"}
	for _, t := range m.Periods {
		periods = append(periods, formatFloat(t, 4))
	}
	rows = append(rows, periods)
	shapes := make([][]float64, m.ModeNum())
	for k := range shapes {
		shapes[k], _ = m.Shape(k+1, true)
	}
	// 顶层在上
	for i := n - 1; i >= 0; i-- {
		row := []string{strconv.Itoa(i + 1)}
		for k := range shapes {
			row = append(row, formatFloat(shapes[k][i], 4))
		}
		rows = append(rows, row)
	}
	return renderTable(header, rows, func(i, _ int) lipgloss.Style {
		if i == 0 {
			return okStyle
		}
		return cellStyle
	})
}

// renderImports 地震动概况，PGA 换算为 g
func renderImports(motions []*types.GroundMotion, g float64) string {
	header := []string{"地震动", "点数", "dt(s)", "时长(s)", "单位", "PGA(g)"}
	rows := make([][]string, len(motions))
	for i, gm := range motions {
		rows[i] = []string{
			gm.Name,
			strconv.Itoa(len(gm.Accel)),
			strconv.FormatFloat(gm.Dt, 'g', -1, 64),
			formatFloat(gm.Duration(), 3),
			gm.Unit.String(),
			formatFloat(gm.PGA()*gm.Unit.ScaleToGWith(g), 4),
		}
	}
	return renderTable(header, rows, nil)
}
