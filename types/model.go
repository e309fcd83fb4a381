package types

import (
	"fmt"
	"math"
	"slices"
)

// Layout 每层弹簧对应的材料编号，层号从 0 开始，编号从 1 开始
type Layout [][]int

// Count 弹簧总数
func (l Layout) Count() int {
	n := 0
	for _, s := range l {
		n += len(s)
	}
	return n
}

// Equal 两个材料指派是否相同
func (l Layout) Equal(o Layout) bool {
	return slices.EqualFunc(l, o, func(a, b []int) bool { return slices.Equal(a, b) })
}

// Clone 深拷贝
func (l Layout) Clone() Layout {
	if l == nil {
		return nil
	}
	out := make(Layout, len(l))
	for i, s := range l {
		out[i] = slices.Clone(s)
	}
	return out
}

// Offsets 每层第一根弹簧在创建顺序中的位置
func (l Layout) Offsets() []int {
	off := make([]int, len(l))
	n := 0
	for i, s := range l {
		off[i] = n
		n += len(s)
	}
	return off
}

// Model 剪切层模型
type Model struct {
	Mass    []float64 // 楼层质量 m[1..N]
	Library *Library  // 材料库
	stories [][]Handle
}

// NewModel 创建模型
func NewModel(mass ...float64) *Model {
	m := &Model{Library: NewLibrary()}
	m.SetStories(len(mass))
	copy(m.Mass, mass)
	return m
}

// N 楼层数
func (m *Model) N() int { return len(m.Mass) }

// SetStories 修改楼层数，保留已有楼层的质量和材料
func (m *Model) SetStories(n int) {
	if n < 0 {
		n = 0
	}
	mass := make([]float64, n)
	copy(mass, m.Mass)
	m.Mass = mass
	stories := make([][]Handle, n)
	copy(stories, m.stories)
	m.stories = stories
}

// AddMaterial 添加材料到材料库
func (m *Model) AddMaterial(name string, mat Material) Handle {
	return m.Library.Add(name, mat)
}

// DeleteMaterial 删除材料，同时从所有楼层移除
func (m *Model) DeleteMaterial(h Handle) bool {
	if !m.Library.Delete(h) {
		return false
	}
	for i := range m.stories {
		m.stories[i] = m.Story(i + 1)
	}
	return true
}

// Assign 为第 story 层(从 1 开始)追加一根弹簧
func (m *Model) Assign(story int, h Handle) error {
	if story < 1 || story > m.N() {
		return configErrorf("story", "楼层 %d 超出范围 1..%d", story, m.N())
	}
	if !m.Library.Valid(h) {
		return configErrorf("story", "第%d层引用的材料不存在", story)
	}
	m.stories[story-1] = append(m.stories[story-1], h)
	return nil
}

// AssignTags 按材料编号设置第 story 层的弹簧列表
func (m *Model) AssignTags(story int, tags ...int) error {
	if story < 1 || story > m.N() {
		return configErrorf("story", "楼层 %d 超出范围 1..%d", story, m.N())
	}
	hs := make([]Handle, 0, len(tags))
	for _, tag := range tags {
		h, ok := m.Library.ByTag(tag)
		if !ok {
			return configErrorf("story", "第%d层引用的材料编号 %d 不存在", story, tag)
		}
		hs = append(hs, h)
	}
	m.stories[story-1] = hs
	return nil
}

// Unassign 移除第 story 层的第 k 根弹簧(从 0 开始)
func (m *Model) Unassign(story, k int) bool {
	hs := m.Story(story)
	if k < 0 || k >= len(hs) {
		return false
	}
	m.stories[story-1] = append(hs[:k:k], hs[k+1:]...)
	return true
}

// ClearStory 清空第 story 层
func (m *Model) ClearStory(story int) {
	if story >= 1 && story <= m.N() {
		m.stories[story-1] = nil
	}
}

// Story 第 story 层当前有效的材料句柄，返回新的切片
// 只读取模型，批处理计算时可以在其他 goroutine 中调用。
func (m *Model) Story(story int) []Handle {
	if story < 1 || story > m.N() {
		return nil
	}
	hs := m.stories[story-1]
	live := make([]Handle, 0, len(hs))
	for _, h := range hs {
		if m.Library.Valid(h) {
			live = append(live, h)
		}
	}
	return live
}

// StoryTags 第 story 层的材料编号
func (m *Model) StoryTags(story int) []int {
	hs := m.Story(story)
	tags := make([]int, 0, len(hs))
	for _, h := range hs {
		if tag, ok := m.Library.Tag(h); ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Layout 全部楼层的材料编号
func (m *Model) Layout() Layout {
	l := make(Layout, m.N())
	for i := range l {
		l[i] = m.StoryTags(i + 1)
	}
	return l
}

// MaxMass 最大楼层质量
func (m *Model) MaxMass() float64 {
	max := 0.0
	for _, v := range m.Mass {
		max = math.Max(max, v)
	}
	return max
}

// Validate 求解前检查模型完整性
func (m *Model) Validate() error {
	if m.N() == 0 {
		return configErrorf("model.mass", "楼层数为0")
	}
	for i, v := range m.Mass {
		if !finite(v) || v <= 0 {
			return configErrorf(fmt.Sprintf("model.mass[%d]", i+1), "质量必须大于0: %g", v)
		}
	}
	for _, e := range m.Library.Entries() {
		if e.Material == nil {
			return configErrorf(fmt.Sprintf("material[%d]", e.Tag), "材料未定义")
		}
		if err := e.Material.Validate(); err != nil {
			return fmt.Errorf("材料 %d(%s): %w", e.Tag, e.Name, err)
		}
	}
	for i := 1; i <= m.N(); i++ {
		if len(m.Story(i)) == 0 {
			return configErrorf(fmt.Sprintf("model.story[%d]", i), "第%d层未指定材料", i)
		}
	}
	return nil
}
