package ops

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// system 线性方程组 K·x = R
type system struct {
	n   int
	K   *mat.Dense
	R   []float64
	spd bool // 使用 Cholesky 分解

	lu mat.LU
	ch mat.Cholesky
}

func newSystem(n int, spd bool) *system {
	sys := &system{n: n, R: make([]float64, n), spd: spd}
	if n > 0 {
		sys.K = mat.NewDense(n, n, nil)
	}
	return sys
}

// zeroMatrix 清空矩阵
func (sys *system) zeroMatrix() {
	if sys.K != nil {
		sys.K.Zero()
	}
}

// zeroRightSide 清空右端项
func (sys *system) zeroRightSide() {
	clear(sys.R)
}

// stampMatrix 将 value 加到 K(i,j)，约束自由度被忽略。
func (sys *system) stampMatrix(i, j EqID, value float64) {
	if i > Fixed && j > Fixed {
		sys.K.Set(int(i), int(j), sys.K.At(int(i), int(j))+value)
	}
}

// stampRightSide 将 value 加到 R(i)，约束自由度被忽略。
func (sys *system) stampRightSide(i EqID, value float64) {
	if i > Fixed {
		sys.R[i] += value
	}
}

// stampSpring 两自由度之间的弹簧，对角加 k，非对角减 k
func (sys *system) stampSpring(n1, n2 EqID, k float64) {
	sys.stampMatrix(n1, n1, k)
	sys.stampMatrix(n2, n2, k)
	sys.stampMatrix(n1, n2, -k)
	sys.stampMatrix(n2, n1, -k)
}

// stampForce 力 f 由 n1 传向 n2，R(n1) 减 f，R(n2) 加 f
func (sys *system) stampForce(n1, n2 EqID, f float64) {
	sys.stampRightSide(n1, -f)
	sys.stampRightSide(n2, f)
}

// errSingular 方程组奇异
var errSingular = errors.New("方程组奇异")

// factorize 分解矩阵
func (sys *system) factorize() error {
	if sys.n == 0 {
		return nil
	}
	if sys.spd {
		sym := mat.NewSymDense(sys.n, nil)
		for i := 0; i < sys.n; i++ {
			for j := i; j < sys.n; j++ {
				sym.SetSym(i, j, sys.K.At(i, j))
			}
		}
		if ok := sys.ch.Factorize(sym); !ok {
			return fmt.Errorf("矩阵非正定: %w", errSingular)
		}
		return nil
	}
	sys.lu.Factorize(sys.K)
	return nil
}

// solve 求解 K·x = R
func (sys *system) solve() ([]float64, error) {
	x := make([]float64, sys.n)
	if sys.n == 0 {
		return x, nil
	}
	dst := mat.NewVecDense(sys.n, x)
	b := mat.NewVecDense(sys.n, append([]float64(nil), sys.R...))
	var err error
	if sys.spd {
		err = sys.ch.SolveVecTo(dst, b)
	} else {
		err = sys.lu.SolveVecTo(dst, false, b)
	}
	if err != nil {
		var c mat.Condition
		if !errors.As(err, &c) || math.IsInf(float64(c), 0) {
			return nil, fmt.Errorf("%w: %v", errSingular, err)
		}
	}
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errSingular
		}
	}
	return x, nil
}

// formUnbalance 形成不平衡力 R = P(t) - M·a - C·v - F(u)
// 单元状态须已由 setTrial 更新。
func (s *Session) formUnbalance(sys *system, v, a []float64, t float64) {
	sys.zeroRightSide()
	s.loads(sys, t)
	for _, n := range s.nodeOrder {
		for d, eq := range n.eq {
			if eq <= Fixed || n.mass[d] == 0 {
				continue
			}
			sys.stampRightSide(eq, -n.mass[d]*(a[eq]+n.alphaM*v[eq]))
		}
	}
	for _, e := range s.elemOrder {
		ei, ej := e.eqs()
		f := e.mat.stress()
		if c := e.dampingCoef(); c != 0 {
			f += c * (e.j.value(e.dir, v) - e.i.value(e.dir, v))
		}
		sys.stampForce(ej, ei, f)
	}
}

// formTangent 形成等效刚度 cK·K + cC·C + cM·M
func (s *Session) formTangent(sys *system, cK, cC, cM float64) {
	sys.zeroMatrix()
	if sys.n == 0 {
		return
	}
	for _, n := range s.nodeOrder {
		for d, eq := range n.eq {
			if eq <= Fixed || n.mass[d] == 0 {
				continue
			}
			sys.stampMatrix(eq, eq, n.mass[d]*(cM+cC*n.alphaM))
		}
	}
	for _, e := range s.elemOrder {
		ei, ej := e.eqs()
		k := cK*e.mat.tangent() + cC*(e.mat.damping()+e.dampingCoef())
		sys.stampSpring(ei, ej, k)
	}
}

// reaction 节点指定自由度上的单元抗力之和
func (s *Session) reaction(n *node, dof int) float64 {
	r := 0.0
	for _, e := range s.elemOrder {
		if e.dir != dof {
			continue
		}
		f := e.mat.stress()
		if e.i == n {
			r -= f
		}
		if e.j == n {
			r += f
		}
	}
	return r
}
