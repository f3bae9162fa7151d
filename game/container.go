package game

import (
	"fmt"

	"suikaarena/physics"
)

// Container 一块棋盘：独占一个物理世界、三面墙和其中的所有球。
// 物理世界不会被自动回收，必须显式调用 Free。
type Container struct {
	cfg   Config
	world *physics.World
	queue *physics.EventQueue
	walls []*Wall
	balls []*Ball
	freed bool
}

// NewContainer 创建物理世界并搭好左右墙与底板；棋盘顶部在 y=0，底部在 y=-height
func NewContainer(cfg Config) *Container {
	c := &Container{
		cfg:   cfg,
		world: physics.NewWorld(physics.Vec{Y: -cfg.Gravity}, cfg.TickSeconds()),
		queue: physics.NewEventQueue(),
	}
	w, h := cfg.BoardWidth, cfg.BoardHeight
	c.addWall(-w/2-1, 0, 1, h*2)
	c.addWall(w/2+1, 0, 1, h*2)
	c.addWall(0, -h-1, w, 1)
	return c
}

func (c *Container) addWall(x, y, hx, hy float64) {
	handle, err := c.world.AddWall(x, y, hx, hy, c.cfg.WallFriction, c.cfg.WallRestitution)
	if err != nil {
		return
	}
	c.walls = append(c.walls, &Wall{handle: handle, X: x, Y: y, HX: hx, HY: hy})
}

// AddBall 在 (x, y) 放一个指定等级的球
func (c *Container) AddBall(x, y float64, tier int, active bool) (*Ball, error) {
	if tier < 0 || tier >= c.cfg.Tiers() {
		return nil, fmt.Errorf("game: invalid tier %d", tier)
	}
	r := c.cfg.Radius(tier)
	handle, err := c.world.AddCircle(x, y, r, c.cfg.Friction, c.cfg.Restitution)
	if err != nil {
		return nil, err
	}
	b := &Ball{
		world:  c.world,
		handle: handle,
		tier:   tier,
		radius: r,
		active: active,
	}
	c.balls = append(c.balls, b)
	return b, nil
}

// Step 推进一个固定 Tick，碰撞事件留在队列里等待 DrainCollisions
func (c *Container) Step() error {
	c.compact()
	return c.world.Step(c.queue)
}

// DrainCollisions 消费上一次 Step 产生的碰撞事件
func (c *Container) DrainCollisions(fn func(a, b physics.Handle, started bool)) {
	if c.freed {
		return
	}
	c.queue.Drain(fn)
}

// compact 去掉已销毁的球，保持相对顺序
func (c *Container) compact() {
	live := c.balls[:0]
	for _, b := range c.balls {
		if !b.Disposed() {
			live = append(live, b)
		}
	}
	for i := len(live); i < len(c.balls); i++ {
		c.balls[i] = nil
	}
	c.balls = live
}

// Balls 当前存活的球（按创建顺序）
func (c *Container) Balls() []*Ball {
	out := make([]*Ball, 0, len(c.balls))
	for _, b := range c.balls {
		if !b.Disposed() {
			out = append(out, b)
		}
	}
	return out
}

// BallCount 存活球数量
func (c *Container) BallCount() int {
	n := 0
	for _, b := range c.balls {
		if !b.Disposed() {
			n++
		}
	}
	return n
}

func (c *Container) Walls() []*Wall { return c.walls }

func (c *Container) Freed() bool { return c.freed }

// Free 释放物理世界与事件队列；其中的球全部视为已销毁
func (c *Container) Free() {
	if c.freed {
		return
	}
	c.freed = true
	for _, b := range c.balls {
		b.state = Disposed
	}
	c.balls = nil
	c.world.Free()
	c.queue = nil
}
