package batch

import (
	"sync"
)

// Flags 每条地震动的完成标记
// 结果文件在标记释放后才可以读取。批处理结束时唤醒所有等待者。
type Flags struct {
	mu       sync.Mutex // 保护共享数据
	cond     *sync.Cond // 等待与通知
	released []bool     // 已完成的地震动
	closed   bool       // 批处理已结束
}

func newFlags(n int) *Flags {
	f := &Flags{released: make([]bool, n)}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// release 标记第 i 条地震动完成
func (f *Flags) release(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.released) || f.released[i] {
		return false
	}
	f.released[i] = true
	f.cond.Broadcast()
	return true
}

// close 批处理结束
func (f *Flags) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Wait 等待第 i 条地震动完成；批处理结束时仍未计算返回 false
func (f *Flags) Wait(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.released) {
		return false
	}
	for !f.released[i] && !f.closed {
		f.cond.Wait()
	}
	return f.released[i]
}
