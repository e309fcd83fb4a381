package types

import "sort"

// Handle 材料句柄，删除后失效，不会因其他材料的删除而改变
type Handle struct {
	index int
	gen   int
}

// IsZero 是否为空句柄
func (h Handle) IsZero() bool { return h.gen == 0 }

// Entry 材料库条目
type Entry struct {
	Handle   Handle
	Tag      int    // 求解器材料编号 1..Len()
	Name     string // 备注名
	Material Material
}

type slot struct {
	gen  int
	seq  uint64
	live bool
	name string
	mat  Material
}

// Library 材料库
// 删除只释放槽位，编号按创建顺序在查询时连续生成，
// 因此删除编号 k 后大于 k 的编号自动减一。
type Library struct {
	slots []slot
	free  []int
	seq   uint64
}

// NewLibrary 创建空材料库
func NewLibrary() *Library { return &Library{} }

// Add 添加材料，name 为空时使用材料显示名称
func (l *Library) Add(name string, m Material) Handle {
	if name == "" {
		name = m.Label()
	}
	l.seq++
	var i int
	if n := len(l.free); n > 0 {
		i = l.free[n-1]
		l.free = l.free[:n-1]
	} else {
		l.slots = append(l.slots, slot{})
		i = len(l.slots) - 1
	}
	s := &l.slots[i]
	s.gen++
	s.seq = l.seq
	s.live = true
	s.name = name
	s.mat = m
	return Handle{index: i, gen: s.gen}
}

// Valid 句柄是否仍然有效
func (l *Library) Valid(h Handle) bool {
	if h.IsZero() || h.index < 0 || h.index >= len(l.slots) {
		return false
	}
	s := l.slots[h.index]
	return s.live && s.gen == h.gen
}

// Replace 修改已有材料，编号不变
func (l *Library) Replace(h Handle, name string, m Material) bool {
	if !l.Valid(h) {
		return false
	}
	if name == "" {
		name = m.Label()
	}
	l.slots[h.index].name = name
	l.slots[h.index].mat = m
	return true
}

// Delete 删除材料，引用该材料的楼层在下次读取时自动移除
func (l *Library) Delete(h Handle) bool {
	if !l.Valid(h) {
		return false
	}
	s := &l.slots[h.index]
	s.live = false
	s.mat = nil
	l.free = append(l.free, h.index)
	return true
}

// Len 当前材料数量
func (l *Library) Len() int {
	return len(l.slots) - len(l.free)
}

// Handles 按创建顺序返回全部有效句柄
func (l *Library) Handles() []Handle {
	hs := make([]Handle, 0, l.Len())
	for i, s := range l.slots {
		if s.live {
			hs = append(hs, Handle{index: i, gen: s.gen})
		}
	}
	sort.Slice(hs, func(a, b int) bool {
		return l.slots[hs[a].index].seq < l.slots[hs[b].index].seq
	})
	return hs
}

// Entries 按编号顺序返回全部材料
func (l *Library) Entries() []Entry {
	hs := l.Handles()
	es := make([]Entry, len(hs))
	for i, h := range hs {
		s := l.slots[h.index]
		es[i] = Entry{Handle: h, Tag: i + 1, Name: s.name, Material: s.mat}
	}
	return es
}

// Tag 句柄对应的求解器编号
func (l *Library) Tag(h Handle) (int, bool) {
	if !l.Valid(h) {
		return 0, false
	}
	seq := l.slots[h.index].seq
	tag := 1
	for _, s := range l.slots {
		if s.live && s.seq < seq {
			tag++
		}
	}
	return tag, true
}

// ByTag 编号对应的句柄
func (l *Library) ByTag(tag int) (Handle, bool) {
	hs := l.Handles()
	if tag < 1 || tag > len(hs) {
		return Handle{}, false
	}
	return hs[tag-1], true
}

// Get 读取材料
func (l *Library) Get(h Handle) (Entry, bool) {
	tag, ok := l.Tag(h)
	if !ok {
		return Entry{}, false
	}
	s := l.slots[h.index]
	return Entry{Handle: h, Tag: tag, Name: s.name, Material: s.mat}, true
}
