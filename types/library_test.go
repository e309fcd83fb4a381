package types

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLibraryRenumber 删除材料后编号连续并自动前移
func TestLibraryRenumber(t *testing.T) {
	l := NewLibrary()
	h1 := l.Add("", Elastic{E: 1})
	h2 := l.Add("", Elastic{E: 2})
	h3 := l.Add("", Elastic{E: 3})

	tag, ok := l.Tag(h3)
	require.True(t, ok)
	assert.Equal(t, 3, tag)

	// 删除 2 号后 3 号变为 2 号
	require.True(t, l.Delete(h2))
	assert.False(t, l.Valid(h2))
	tag, _ = l.Tag(h3)
	assert.Equal(t, 2, tag)
	assert.Equal(t, 2, l.Len())

	// 复用槽位的新材料排在最后，旧句柄仍然无效
	h4 := l.Add("new", Elastic{E: 4})
	assert.False(t, l.Valid(h2))
	tag, _ = l.Tag(h4)
	assert.Equal(t, 3, tag)

	h, ok := l.ByTag(1)
	require.True(t, ok)
	assert.Equal(t, h1, h)
	e, ok := l.Get(h4)
	require.True(t, ok)
	assert.Equal(t, "new", e.Name)
	assert.Equal(t, Elastic{E: 4}, e.Material)

	_, ok = l.ByTag(4)
	assert.False(t, ok)
}

// TestModelDeleteMaterial 删除材料时从楼层中移除
func TestModelDeleteMaterial(t *testing.T) {
	m := NewModel(2, 1, 1)
	a := m.AddMaterial("", Bilinear{Fy: 3000, E: 1500, Alpha: 0.02})
	b := m.AddMaterial("", Bilinear{Fy: 2000, E: 1000, Alpha: 0.02})
	c := m.AddMaterial("", Elastic{E: 10})
	require.NoError(t, m.Assign(1, a))
	require.NoError(t, m.Assign(2, b))
	require.NoError(t, m.Assign(2, c))
	require.NoError(t, m.AssignTags(3, 2, 3))
	assert.Equal(t, Layout{{1}, {2, 3}, {2, 3}}, m.Layout())
	require.NoError(t, m.Validate())

	require.True(t, m.DeleteMaterial(b))
	assert.Equal(t, Layout{{1}, {2}, {2}}, m.Layout())

	require.True(t, m.Unassign(2, 0))
	err := m.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIncomplete))
	assert.True(t, IsConfigError(err))
}

// TestModelStoryReadOnly 读取楼层不修改模型，可并发读取
func TestModelStoryReadOnly(t *testing.T) {
	m := NewModel(1, 1)
	a := m.AddMaterial("", Elastic{E: 1})
	b := m.AddMaterial("", Elastic{E: 2})
	require.NoError(t, m.Assign(1, a))
	require.NoError(t, m.Assign(1, b))
	require.NoError(t, m.Assign(2, b))

	hs := m.Story(1)
	hs[0] = Handle{}
	assert.Equal(t, []Handle{a, b}, m.Story(1))

	// 绕过模型直接从材料库删除，楼层在读取时过滤
	require.True(t, m.Library.Delete(a))
	want := Layout{{1}, {1}}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				assert.Equal(t, want, m.Layout())
			}
		}()
	}
	wg.Wait()
	assert.Len(t, m.stories[0], 2)
}

// TestModelValidate 质量与材料检查
func TestModelValidate(t *testing.T) {
	m := NewModel(1, 0)
	h := m.AddMaterial("", Elastic{E: 1})
	require.NoError(t, m.Assign(1, h))
	require.NoError(t, m.Assign(2, h))
	assert.Error(t, m.Validate())

	m.Mass[1] = 1
	assert.NoError(t, m.Validate())
	assert.Error(t, m.Assign(3, h))
	assert.Equal(t, 1.0, m.MaxMass())

	// 楼层数变化保留已有数据
	m.SetStories(3)
	assert.Equal(t, []float64{1, 1, 0}, m.Mass)
	assert.Equal(t, []int{1}, m.StoryTags(1))
	assert.Error(t, m.Validate())

	l := Layout{{1}, {2, 3}, {4}}
	assert.Equal(t, 4, l.Count())
	assert.Equal(t, []int{0, 1, 3}, l.Offsets())
}

// TestNewMaterial 按类型创建材料
func TestNewMaterial(t *testing.T) {
	m, err := NewMaterial(ParseMaterialKind("bilinear"), []float64{3000, 1500, 0.02})
	require.NoError(t, err)
	assert.Equal(t, Bilinear{Fy: 3000, E: 1500, Alpha: 0.02}, m)
	assert.Equal(t, "Bilinear(Fy=3000,E=1500,alpha=0.02)", m.Label())

	_, err = NewMaterial(KindWen, []float64{1, 2})
	assert.True(t, IsConfigError(err))
	_, err = NewMaterial(KindElastoPlastic, []float64{-1, 10})
	assert.True(t, IsConfigError(err))

	r, err := NewRawMaterial("Steel01", []float64{1, 2, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Steel01(1,2,0.1)", r.Label())
	_, err = NewRawMaterial("", nil)
	assert.Error(t, err)

	bw := Wen{Fy: 100, Uy: 2, Alpha: 0.1, N: 2}.BoucWen()
	assert.InDelta(t, 50, bw.K, 1e-12)
	assert.InDelta(t, 0.125, bw.Beta, 1e-12)
	assert.InDelta(t, 0.125, bw.Gamma, 1e-12)
	assert.Equal(t, 1.0, bw.A0)
}
