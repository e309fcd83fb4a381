package types

import (
	"fmt"
	"strings"
)

// MaterialKind 材料类型
type MaterialKind uint

// 材料类型常量定义
const (
	KindUnknown       MaterialKind = iota // 未知类型
	KindElastic                           // 线弹性
	KindBilinear                          // 双线性
	KindWen                               // Wen模型
	KindElastoPlastic                     // 理想弹塑性
	KindViscous                           // 黏性
	KindRaw                               // 直接按求解器材料名与参数定义
)

// materialKindString 类型映射
var materialKindString = map[MaterialKind]struct {
	Name   string
	Params []string
}{
	KindUnknown:       {Name: "Unknown"},
	KindElastic:       {Name: "Elastic", Params: []string{"E"}},
	KindBilinear:      {Name: "Bilinear", Params: []string{"Fy", "E", "alpha"}},
	KindWen:           {Name: "Wen", Params: []string{"Fy", "uy", "alpha", "n"}},
	KindElastoPlastic: {Name: "ElastoPlastic", Params: []string{"Fy", "E"}},
	KindViscous:       {Name: "Viscous", Params: []string{"C", "alpha"}},
	KindRaw:           {Name: "Raw"},
}

// String 返回材料类型名称
func (k MaterialKind) String() string {
	if mk, ok := materialKindString[k]; ok {
		return mk.Name
	}
	return "Unknown"
}

// ParamNames 参数名称列表，Raw 类型返回 nil
func (k MaterialKind) ParamNames() []string {
	return materialKindString[k].Params
}

// ParseMaterialKind 通过名称获取类型，忽略大小写
func ParseMaterialKind(name string) MaterialKind {
	for k, v := range materialKindString {
		if strings.EqualFold(v.Name, strings.TrimSpace(name)) {
			return k
		}
	}
	return KindUnknown
}

// NewMaterial 按类型和参数列表创建材料
func NewMaterial(kind MaterialKind, params []float64) (Material, error) {
	names := kind.ParamNames()
	if kind != KindRaw && kind != KindUnknown && len(params) != len(names) {
		return nil, configErrorf("material", "%s 需要 %d 个参数 %v，得到 %d", kind, len(names), names, len(params))
	}
	var m Material
	switch kind {
	case KindElastic:
		m = Elastic{E: params[0]}
	case KindBilinear:
		m = Bilinear{Fy: params[0], E: params[1], Alpha: params[2]}
	case KindWen:
		m = Wen{Fy: params[0], Uy: params[1], Alpha: params[2], N: params[3]}
	case KindElastoPlastic:
		m = ElastoPlastic{Fy: params[0], E: params[1]}
	case KindViscous:
		m = Viscous{C: params[0], Alpha: params[1]}
	default:
		return nil, configErrorf("material", "未知材料类型 %s", kind)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewRawMaterial 按求解器材料名创建材料
func NewRawMaterial(name string, params []float64) (Material, error) {
	m := Raw{Name: strings.TrimSpace(name), Values: append([]float64(nil), params...)}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// labelOf 生成材料显示名称
func labelOf(kind MaterialKind, params []float64) string {
	names := kind.ParamNames()
	var b strings.Builder
	b.WriteString(kind.String())
	b.WriteByte('(')
	for i, v := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		if i < len(names) {
			fmt.Fprintf(&b, "%s=%g", names[i], v)
		} else {
			fmt.Fprintf(&b, "%g", v)
		}
	}
	b.WriteByte(')')
	return b.String()
}
