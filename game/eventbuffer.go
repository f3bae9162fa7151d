package game

import "errors"

// ErrInvalidPop 缓冲区中没有下一个期望编号的事件时 Pop 返回该错误
var ErrInvalidPop = errors.New("game: invalid pop operation")

// EventBuffer 按编号严格递增地放出事件，容忍网络乱序到达。
// 编号更大的事件在更小的编号全部弹出之前不可见。零值可用。
type EventBuffer struct {
	events   map[uint64]GameEvent
	next     uint64
	lastTick uint64
}

func NewEventBuffer() *EventBuffer {
	return &EventBuffer{events: make(map[uint64]GameEvent)}
}

// Push 任意顺序插入；已经消费过的编号（重复投递）直接丢弃
func (q *EventBuffer) Push(e GameEvent) {
	if e.ID < q.next {
		return
	}
	if q.events == nil {
		q.events = make(map[uint64]GameEvent)
	}
	q.events[e.ID] = e
}

// Front 编号等于下一个期望编号的事件
func (q *EventBuffer) Front() (GameEvent, bool) {
	e, ok := q.events[q.next]
	return e, ok
}

// Pop 弹出队首并推进期望编号
func (q *EventBuffer) Pop() (GameEvent, error) {
	e, ok := q.events[q.next]
	if !ok {
		return GameEvent{}, ErrInvalidPop
	}
	delete(q.events, q.next)
	q.next++
	q.lastTick = e.Tick
	return e, nil
}

func (q *EventBuffer) CanPop() bool {
	_, ok := q.events[q.next]
	return ok
}

func (q *EventBuffer) Empty() bool { return len(q.events) == 0 }

func (q *EventBuffer) Len() int { return len(q.events) }

// LastTick 最近一次弹出事件的 Tick
func (q *EventBuffer) LastTick() uint64 { return q.lastTick }

// Next 下一个期望编号
func (q *EventBuffer) Next() uint64 { return q.next }
