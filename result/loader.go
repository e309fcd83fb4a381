package result

import (
	"path/filepath"

	"github.com/hashicorp/golang-lru/v2"

	"nlmdof/types"
)

// DefaultCacheSize Loader 默认缓存的地震动数
const DefaultCacheSize = 16

type cached struct {
	grid    Grid
	layout  types.Layout
	results *Results
}

// Loader 按结果目录与地震动名读取结果并缓存，可在多个 goroutine 中使用
// 时间网格或材料指派与缓存不同时重新读取；同一地震动重新计算后需调用 Forget。
type Loader struct {
	cache *lru.Cache[string, cached]
}

// NewLoader 创建读取器，size 为最多缓存的地震动数
func NewLoader(size int) (*Loader, error) {
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[string, cached](size)
	if err != nil {
		return nil, err
	}
	return &Loader{cache: cache}, nil
}

// Load 读取目录 dir 中地震动 name 的结果
func (l *Loader) Load(dir, name string, grid Grid, layout types.Layout) (*Results, error) {
	key := filepath.Join(dir, name)
	if c, ok := l.cache.Get(key); ok && c.grid == grid && c.layout.Equal(layout) {
		return c.results, nil
	}
	r, err := Assemble(dir, name, grid, layout)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, cached{grid: grid, layout: layout.Clone(), results: r})
	return r, nil
}

// Forget 丢弃缓存的结果
func (l *Loader) Forget(dir, name string) { l.cache.Remove(filepath.Join(dir, name)) }
