package server

import (
	"strconv"

	"suikaarena/game"
)

// PlayerID 玩家名（来自 ?player=，同名玩家可以同时在线）
type PlayerID string

// Board 房间驱动的一块棋盘，由 *game.Simulation 实现
type Board interface {
	StepIfActive(sink game.MergeSink) bool
	IsActive() bool
	ResetSeed(seed int32)
	Free()
	Serialize() string
	InjectGarbage(tier int)
	SetNx(x float64)
	PlaceBall(x float64) bool
}

// Conn 玩家连接的发送端，所有方法都不能阻塞 Tick
type Conn interface {
	Enqueue(msg []byte)
	IsOpen() bool
	Close()
}

// BoardFactory 为新加入的玩家创建棋盘，seed 为当前回合的共享种子
type BoardFactory func(cfg game.Config, seed int32) Board

// SimulationBoard 默认的棋盘实现
func SimulationBoard(cfg game.Config, seed int32) Board {
	cfg.Seed = seed
	s := game.NewSimulation(cfg)
	s.SetLogger(Log)
	return s
}

// PlayerSlot 名单中的一个位置：一个连接独占一块棋盘
type PlayerSlot struct {
	ID      PlayerID
	Session string // 每次连接唯一（uuid），输入按它路由
	Board   Board
	Conn    Conn
}

// indexMessage 通知客户端它当前在名单中的位置
func indexMessage(i int) []byte {
	return []byte("!" + strconv.Itoa(i))
}
