package client

import (
	"errors"
	"fmt"

	"suikaarena/game"
)

var (
	ErrNotInitialized = errors.New("client: board not initialized")
	ErrBadOffset      = errors.New("client: event offset must be positive")
)

// EventSink 接收本地产生、需要转发给服务端的输入报文
type EventSink func(wire string)

// PredictedBoard 客户端预测棋盘：本地立即执行自己的输入以降低延迟，
// 事件按编号有序、按 Tick 生效，与服务端保持锁步。
type PredictedBoard struct {
	sim    *game.Simulation
	events game.EventBuffer
	ticks  uint64
	id     int
	nextID uint64
	sink   EventSink
}

// NewPredictedBoard 创建未初始化的预测棋盘；Initialize 之前不能产生事件
func NewPredictedBoard(cfg game.Config) *PredictedBoard {
	return &PredictedBoard{sim: game.NewSimulation(cfg), id: -1}
}

// Initialize 以回合种子与自己在名单中的下标重置棋盘
func (b *PredictedBoard) Initialize(seed int32, id int) {
	b.sim.ResetSeed(seed)
	b.events = game.EventBuffer{}
	b.ticks = 0
	b.nextID = 0
	b.id = id
}

func (b *PredictedBoard) IsInitialized() bool { return b.id >= 0 }

// SetID 压缩后服务端重新通知的下标
func (b *PredictedBoard) SetID(id int) { b.id = id }

func (b *PredictedBoard) ID() int { return b.id }

func (b *PredictedBoard) Ticks() uint64 { return b.ticks }

func (b *PredictedBoard) SetSink(sink EventSink) { b.sink = sink }

func (b *PredictedBoard) Simulation() *game.Simulation { return b.sim }

// Pending 缓冲区中尚未生效的事件数
func (b *PredictedBoard) Pending() int { return b.events.Len() }

// CreateEvent 构造一个在 offset 个 Tick 之后生效的事件（未编号）
func (b *PredictedBoard) CreateEvent(offset int) (game.GameEvent, error) {
	if offset <= 0 {
		return game.GameEvent{}, fmt.Errorf("%w: %d", ErrBadOffset, offset)
	}
	if !b.IsInitialized() {
		return game.GameEvent{}, ErrNotInitialized
	}
	return game.GameEvent{Tick: b.ticks + uint64(offset), Target: b.id}, nil
}

// RequestPlacing 更新预览位置：本地入队并转发
func (b *PredictedBoard) RequestPlacing(x float64) error {
	return b.request(game.EventPlacing, x)
}

// RequestPlace 落球：本地入队并转发
func (b *PredictedBoard) RequestPlace(x float64) error {
	return b.request(game.EventPlace, x)
}

// RequestReceive 允许本地推进到 offset 个 Tick 之后，不产生报文
func (b *PredictedBoard) RequestReceive(offset int) error {
	e, err := b.CreateEvent(offset)
	if err != nil {
		return err
	}
	e.Kind = game.EventReceive
	b.pushEvent(e)
	return nil
}

func (b *PredictedBoard) request(kind game.EventKind, x float64) error {
	e, err := b.CreateEvent(1)
	if err != nil {
		return err
	}
	e.Kind = kind
	e.X = game.QuantizeX(x, b.sim.Config().BoardWidth)
	b.pushEvent(e)
	if wire, ok := e.Wire(); ok && b.sink != nil {
		b.sink(wire)
	}
	return nil
}

// pushEvent 本地事件，由本棋盘分配编号
func (b *PredictedBoard) pushEvent(e game.GameEvent) {
	e.ID = b.nextID
	b.nextID++
	b.events.Push(e)
}

// AcceptEvent 远端事件，保留其编号；本地编号跳过已用过的号
func (b *PredictedBoard) AcceptEvent(e game.GameEvent) {
	if e.ID >= b.nextID {
		b.nextID = e.ID + 1
	}
	b.events.Push(e)
}

// DrainEvents 应用所有已到期（Tick <= 当前 Tick）且按序可弹出的事件
func (b *PredictedBoard) DrainEvents() {
	width := b.sim.Config().BoardWidth
	for b.events.CanPop() {
		front, _ := b.events.Front()
		if front.Tick > b.ticks {
			return
		}
		e, err := b.events.Pop()
		if err != nil {
			return
		}
		switch e.Kind {
		case game.EventPlace:
			b.sim.PlaceBall(game.DequantizeX(e.X, width))
		case game.EventPlacing:
			b.sim.SetNx(game.DequantizeX(e.X, width))
		}
	}
}

// Tick 推进到已知的最新状态：队首事件在未来则步进一帧并返回 true，
// 队首事件已到期则应用事件；没有可弹出的事件时不动
func (b *PredictedBoard) Tick() bool {
	if !b.events.CanPop() {
		return false
	}
	front, _ := b.events.Front()
	if front.Tick > b.ticks {
		b.sim.Step(nil)
		b.ticks++
		return true
	}
	b.DrainEvents()
	return false
}

// Advance 跟随服务端的一帧：应用到期事件，前进一帧，再应用本帧事件
func (b *PredictedBoard) Advance() error {
	if err := b.RequestReceive(1); err != nil {
		return err
	}
	b.DrainEvents()
	b.Tick()
	b.DrainEvents()
	return nil
}

// Free 释放本地模拟
func (b *PredictedBoard) Free() {
	b.sim.Free()
	b.id = -1
}
