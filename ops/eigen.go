package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Eigen 求解广义特征值问题 K·φ = λ·M·φ
// 质量矩阵为集中质量，化为标准对称问题后求解，振型按质量归一化。
func (s *Session) Eigen(solver EigenSolver, n int) ([]float64, error) {
	if solver != GenBandArpack && solver != FullGenLapack {
		return nil, configErr("eigen", "未知特征值求解器 %s", solver)
	}
	if s.ndf == 0 {
		return nil, configErr("eigen", "未定义模型")
	}
	s.number()
	neq := s.neq
	if n < 1 || n > neq {
		return nil, configErr("eigen", "振型数 %d 超出范围 1..%d", n, neq)
	}
	if solver == GenBandArpack && n >= neq {
		return nil, configErr("eigen", "%s 要求振型数小于自由度数 %d", solver, neq)
	}
	// 集中质量
	m := make([]float64, neq)
	for _, nd := range s.nodeOrder {
		for d, eq := range nd.eq {
			if eq > Fixed {
				m[eq] = nd.mass[d]
			}
		}
	}
	for i, v := range m {
		if v <= 0 {
			return nil, fmt.Errorf("自由度 %d 无质量，无法求解特征值", i)
		}
	}
	// 初始切线刚度
	if err := s.setTrial(s.U, s.V); err != nil {
		return nil, err
	}
	sys := newSystem(neq, false)
	s.formTangent(sys, 1, 0, 0)
	sym := mat.NewSymDense(neq, nil)
	for i := 0; i < neq; i++ {
		for j := i; j < neq; j++ {
			sym.SetSym(i, j, sys.K.At(i, j)/math.Sqrt(m[i]*m[j]))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, fmt.Errorf("特征值分解失败")
	}
	values := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	lambda := make([]float64, n)
	shapes := make([][]float64, n)
	for k := 0; k < n; k++ {
		lambda[k] = values[k]
		if lambda[k] <= 0 {
			return nil, fmt.Errorf("第%d阶特征值非正: %g", k+1, lambda[k])
		}
		phi := make([]float64, neq)
		peak := 0.0
		for i := range phi {
			phi[i] = vecs.At(i, k) / math.Sqrt(m[i])
			if math.Abs(phi[i]) > math.Abs(peak) {
				peak = phi[i]
			}
		}
		// 最大分量取正
		if peak < 0 {
			for i := range phi {
				phi[i] = -phi[i]
			}
		}
		shapes[k] = phi
	}
	s.modes = make(map[int][][]float64, len(s.nodeOrder))
	for _, nd := range s.nodeOrder {
		ms := make([][]float64, n)
		for k := range ms {
			ms[k] = make([]float64, s.ndf)
			for d, eq := range nd.eq {
				if eq > Fixed {
					ms[k][d] = shapes[k][eq]
				}
			}
		}
		s.modes[nd.tag] = ms
	}
	s.logf("特征值分析完成，%d 阶振型", n)
	return lambda, nil
}
