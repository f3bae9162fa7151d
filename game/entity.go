package game

import (
	"errors"

	"suikaarena/physics"
)

// ErrDisposed 对已销毁实体的任何操作都返回该错误
var ErrDisposed = errors.New("game: entity already disposed")

// EntityState 实体生命周期标记
type EntityState uint8

const (
	Live EntityState = iota
	Disposed
)

func (s EntityState) String() string {
	if s == Disposed {
		return "disposed"
	}
	return "live"
}

// Ball 棋盘里的动态球；active=false 表示垃圾球（不参与合成）
type Ball struct {
	world  *physics.World
	handle physics.Handle
	tier   int
	radius float64
	active bool
	state  EntityState
}

func (b *Ball) Handle() physics.Handle { return b.handle }
func (b *Ball) Tier() int              { return b.tier }
func (b *Ball) Radius() float64        { return b.radius }
func (b *Ball) Active() bool           { return b.active }
func (b *Ball) State() EntityState     { return b.state }
func (b *Ball) Disposed() bool         { return b.state == Disposed }

// Position 球心坐标
func (b *Ball) Position() (physics.Vec, error) {
	if b.state == Disposed {
		return physics.Vec{}, ErrDisposed
	}
	return b.world.Position(b.handle)
}

// Velocity 线速度
func (b *Ball) Velocity() (physics.Vec, error) {
	if b.state == Disposed {
		return physics.Vec{}, ErrDisposed
	}
	return b.world.Velocity(b.handle)
}

// Dispose 从物理世界移除，只能成功一次
func (b *Ball) Dispose() error {
	if b.state == Disposed {
		return ErrDisposed
	}
	b.state = Disposed
	return b.world.Remove(b.handle)
}

// Wall 静态矩形边界，创建后不可变
type Wall struct {
	handle physics.Handle
	X      float64
	Y      float64
	HX     float64
	HY     float64
}

func (w *Wall) Handle() physics.Handle { return w.handle }
