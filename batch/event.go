package batch

import (
	"nlmdof"
)

// EventType 事件类型
type EventType uint16

const (
	EventConverge  EventType = iota // 一条地震动收敛
	EventDiverge                    // 一条地震动未收敛
	EventError                      // 一条地震动出错，批处理停止
	EventStep                       // 一条地震动结束后的进度
	EventFinished                   // 批处理结束
	EventCancelled                  // 批处理被中断
)

var eventString = map[EventType]string{
	EventConverge:  "converge",
	EventDiverge:   "diverge",
	EventError:     "error",
	EventStep:      "step",
	EventFinished:  "finished",
	EventCancelled: "cancelled",
}

func (t EventType) String() string {
	if s, ok := eventString[t]; ok {
		return s
	}
	return "unknown"
}

// Event 事件值
type Event struct {
	Type    EventType
	Index   int    // 已完成的地震动数
	Total   int    // 地震动总数
	Percent int    // 进度百分比
	Name    string // 地震动名称
	Report  *nlmdof.Report
	Err     error
}

// Handler 事件处理
type Handler func(Event)

// events 事件通道与注册的处理器
// 发送方只写入带缓冲的通道，不等待处理；处理器在 Dispatch 的调用方中执行。
type events struct {
	handlers map[EventType]Handler
	ch       chan Event
}

func newEvents(handlers map[EventType]Handler, size int) *events {
	return &events{handlers: handlers, ch: make(chan Event, size)}
}

// send 发送事件
func (e *events) send(ev Event) { e.ch <- ev }

// close 关闭通道
func (e *events) close() { close(e.ch) }

// callback 调用注册的处理器，未注册的事件忽略
func (e *events) callback(ev Event) {
	if h, ok := e.handlers[ev.Type]; ok {
		h(ev)
	}
}
