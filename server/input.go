package server

import "suikaarena/game"

// Input 客户端输入（意图），由服务端在 Tick 中解释并驱动棋盘
type Input struct {
	Session string
	Kind    game.EventKind // place 或 placing
	X       float64        // 已解码的横坐标
}

// apply 在 Tick 协程中执行一条输入；返回 false 表示被忽略
func (in Input) apply(b Board) bool {
	if !b.IsActive() {
		return false
	}
	switch in.Kind {
	case game.EventPlacing:
		b.SetNx(in.X)
		return true
	case game.EventPlace:
		return b.PlaceBall(in.X)
	default:
		return false
	}
}
