package physics

import (
	"errors"
	"math"
	"sync"

	"github.com/jakecoffman/cp"
)

// Handle 碰撞体在所属 World 内的稳定编号（从 1 开始递增，不复用）
type Handle uint32

// Vec 二维向量
type Vec struct {
	X float64
	Y float64
}

var (
	ErrUnknownHandle = errors.New("physics: unknown handle")
	ErrWorldFreed    = errors.New("physics: world already freed")
)

// 只有动态圆会被标记为该碰撞类型，墙体使用默认类型 0
const circleCollisionType cp.CollisionType = 1

// cp 用包级计数器给 Body 编号，多个房间并发创建 Body 时需要串行
var bodyMu sync.Mutex

// CollisionEvent 一次碰撞开始（Started=true）或结束
type CollisionEvent struct {
	A       Handle
	B       Handle
	Started bool
}

// EventQueue 收集 Step 期间产生的碰撞事件，由调用方在 Step 之后 Drain
type EventQueue struct {
	events []CollisionEvent
}

func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Len 待处理事件数
func (q *EventQueue) Len() int { return len(q.events) }

// Drain 按产生顺序回调并清空队列
func (q *EventQueue) Drain(fn func(a, b Handle, started bool)) {
	events := q.events
	q.events = nil
	for _, e := range events {
		fn(e.A, e.B, e.Started)
	}
}

type entry struct {
	body  *cp.Body // 墙体为 nil（挂在 space.StaticBody 上）
	shape *cp.Shape
}

// World 一个独立的物理世界；不是并发安全的，由持有者单线程驱动
type World struct {
	space   *cp.Space
	dt      float64
	entries map[Handle]entry
	next    Handle
	queue   *EventQueue
	freed   bool
}

// NewWorld 创建有边界由调用方自行添加墙体的世界，dt 为固定步长（秒）
func NewWorld(gravity Vec, dt float64) *World {
	bodyMu.Lock()
	space := cp.NewSpace() // 内部会创建 StaticBody
	bodyMu.Unlock()
	space.SetGravity(cp.Vector{X: gravity.X, Y: gravity.Y})
	w := &World{
		space:   space,
		dt:      dt,
		entries: make(map[Handle]entry),
		next:    1,
	}
	handler := space.NewCollisionHandler(circleCollisionType, circleCollisionType)
	handler.BeginFunc = func(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
		w.record(arb, true)
		return true
	}
	handler.SeparateFunc = func(arb *cp.Arbiter, _ *cp.Space, _ interface{}) {
		w.record(arb, false)
	}
	return w
}

// record 只在 Step 期间写入队列；移除碰撞体时触发的 separate 不上报
func (w *World) record(arb *cp.Arbiter, started bool) {
	if w.queue == nil {
		return
	}
	a, b := arb.Shapes()
	ha, okA := a.UserData.(Handle)
	hb, okB := b.UserData.(Handle)
	if !okA || !okB {
		return
	}
	w.queue.events = append(w.queue.events, CollisionEvent{A: ha, B: hb, Started: started})
}

func (w *World) issue() Handle {
	h := w.next
	w.next++
	return h
}

// AddWall 添加静态矩形，(x, y) 为中心，hx/hy 为半宽/半高
func (w *World) AddWall(x, y, hx, hy, friction, restitution float64) (Handle, error) {
	if w.freed {
		return 0, ErrWorldFreed
	}
	bb := cp.BB{L: x - hx, B: y - hy, R: x + hx, T: y + hy}
	shape := w.space.AddShape(cp.NewBox2(w.space.StaticBody, bb, 0))
	shape.SetFriction(friction)
	shape.SetElasticity(restitution)
	h := w.issue()
	shape.UserData = h
	w.entries[h] = entry{shape: shape}
	return h, nil
}

// AddCircle 添加动态圆（单位密度），会上报碰撞事件
func (w *World) AddCircle(x, y, radius, friction, restitution float64) (Handle, error) {
	if w.freed {
		return 0, ErrWorldFreed
	}
	mass := math.Pi * radius * radius
	bodyMu.Lock()
	body := cp.NewBody(mass, cp.MomentForCircle(mass, 0, radius, cp.Vector{}))
	bodyMu.Unlock()
	body.SetPosition(cp.Vector{X: x, Y: y})
	w.space.AddBody(body)

	shape := w.space.AddShape(cp.NewCircle(body, radius, cp.Vector{}))
	shape.SetFriction(friction)
	shape.SetElasticity(restitution)
	shape.SetCollisionType(circleCollisionType)
	h := w.issue()
	shape.UserData = h
	w.entries[h] = entry{body: body, shape: shape}
	return h, nil
}

// Step 推进一个固定步长，期间的碰撞事件写入 q（q 可为 nil）
func (w *World) Step(q *EventQueue) error {
	if w.freed {
		return ErrWorldFreed
	}
	w.queue = q
	w.space.Step(w.dt)
	w.queue = nil
	return nil
}

// Position 返回动态体或墙体中心
func (w *World) Position(h Handle) (Vec, error) {
	e, err := w.lookup(h)
	if err != nil {
		return Vec{}, err
	}
	if e.body == nil {
		bb := e.shape.BB()
		return Vec{X: (bb.L + bb.R) / 2, Y: (bb.B + bb.T) / 2}, nil
	}
	p := e.body.Position()
	return Vec{X: p.X, Y: p.Y}, nil
}

// Velocity 墙体恒为零
func (w *World) Velocity(h Handle) (Vec, error) {
	e, err := w.lookup(h)
	if err != nil {
		return Vec{}, err
	}
	if e.body == nil {
		return Vec{}, nil
	}
	v := e.body.Velocity()
	return Vec{X: v.X, Y: v.Y}, nil
}

// Remove 从世界中移除碰撞体（以及其刚体）
func (w *World) Remove(h Handle) error {
	e, err := w.lookup(h)
	if err != nil {
		return err
	}
	w.space.RemoveShape(e.shape)
	if e.body != nil {
		w.space.RemoveBody(e.body)
	}
	delete(w.entries, h)
	return nil
}

// Len 世界中现存的碰撞体数量（含墙体）
func (w *World) Len() int { return len(w.entries) }

// Free 释放世界，之后的任何操作都会返回 ErrWorldFreed
func (w *World) Free() {
	if w.freed {
		return
	}
	w.freed = true
	w.entries = nil
	w.space = nil
}

// Freed 是否已释放
func (w *World) Freed() bool { return w.freed }

func (w *World) lookup(h Handle) (entry, error) {
	if w.freed {
		return entry{}, ErrWorldFreed
	}
	e, ok := w.entries[h]
	if !ok {
		return entry{}, ErrUnknownHandle
	}
	return e, nil
}
