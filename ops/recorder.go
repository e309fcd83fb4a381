package ops

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strconv"
)

// recorder 文本记录器，每行以空格分隔
type recorder struct {
	spec    RecorderSpec
	file    *os.File
	w       *bufio.Writer
	written bool
	row     []byte
}

func (r *recorder) close() error {
	if r.file == nil {
		return nil
	}
	err := r.w.Flush()
	err = errors.Join(err, r.file.Close())
	r.file = nil
	return err
}

// Recorder 定义记录器，文件立即创建
func (s *Session) Recorder(spec RecorderSpec) error {
	if spec.File == "" {
		return configErr("recorder", "未指定输出文件")
	}
	switch spec.Response {
	case RespStressStrain:
		if len(spec.Elements) == 0 {
			return configErr("recorder", "%s 未指定单元", spec.File)
		}
		for _, t := range spec.Elements {
			if _, ok := s.elements[t]; !ok {
				return configErr("recorder", "单元 %d 不存在", t)
			}
		}
	case RespDisp, RespVel, RespAccel, RespReaction, RespEigen:
		if len(spec.Nodes) == 0 {
			return configErr("recorder", "%s 未指定节点", spec.File)
		}
		if spec.DOF < 1 || spec.DOF > s.ndf {
			return configErr("recorder", "自由度 %d 超出范围", spec.DOF)
		}
		for _, t := range spec.Nodes {
			if _, ok := s.nodes[t]; !ok {
				return configErr("recorder", "节点 %d 不存在", t)
			}
		}
		if spec.Response == RespEigen {
			for _, t := range spec.Nodes {
				if ms, ok := s.modes[t]; !ok || spec.Mode < 1 || spec.Mode > len(ms) {
					return configErr("recorder", "第%d阶振型不存在", spec.Mode)
				}
			}
		}
	default:
		return configErr("recorder", "未知响应类型 %d", spec.Response)
	}
	if err := os.MkdirAll(filepath.Dir(spec.File), 0o755); err != nil {
		return err
	}
	f, err := os.Create(spec.File)
	if err != nil {
		return err
	}
	spec.Nodes = append([]int(nil), spec.Nodes...)
	spec.Elements = append([]int(nil), spec.Elements...)
	s.recorders = append(s.recorders, &recorder{spec: spec, file: f, w: bufio.NewWriter(f)})
	return nil
}

// record 写入当前已收敛状态
func (s *Session) record() error {
	var errs []error
	for _, r := range s.recorders {
		if r.file == nil || (r.spec.Response == RespEigen && r.written) {
			continue
		}
		r.row = r.row[:0]
		if r.spec.Time {
			r.put(s.time)
		}
		dof := r.spec.DOF - 1
		switch r.spec.Response {
		case RespDisp, RespVel, RespAccel:
			x := s.U
			if r.spec.Response == RespVel {
				x = s.V
			} else if r.spec.Response == RespAccel {
				x = s.A
			}
			for _, t := range r.spec.Nodes {
				r.put(s.nodes[t].value(dof, x))
			}
		case RespReaction:
			for _, t := range r.spec.Nodes {
				r.put(s.reaction(s.nodes[t], dof))
			}
		case RespEigen:
			for _, t := range r.spec.Nodes {
				r.put(s.modes[t][r.spec.Mode-1][dof])
			}
		case RespStressStrain:
			for _, t := range r.spec.Elements {
				m := s.elements[t].mat
				r.put(m.stress())
				r.put(m.strain())
			}
		}
		r.row = append(r.row, '\n')
		if _, err := r.w.Write(r.row); err != nil {
			errs = append(errs, err)
		}
		r.written = true
	}
	return errors.Join(errs...)
}

func (r *recorder) put(v float64) {
	if len(r.row) > 0 {
		r.row = append(r.row, ' ')
	}
	r.row = strconv.AppendFloat(r.row, v, 'g', -1, 64)
}
