package server

import (
	"sync/atomic"
)

// RoomMetrics 记录房间运行期的关键指标（用于监控与调试）
type RoomMetrics struct {
	TickCount         int64 // 统计的 Tick 次数
	TotalTickNs       int64 // Tick 累计耗时（纳秒）
	TicksOverBudget   int64 // 超出 Tick 预算的次数
	InputsAccepted    int64 // 被接受的输入数
	InputsIgnored     int64 // 冷却中、棋盘已出局或会话不存在
	InputsMalformed   int64 // 无法解析的输入报文
	ChanFullDiscarded int64 // 因通道满被丢弃的输入数
	Merges            int64
	AttacksSent       int64
	AttacksDropped    int64 // 攻击者已离开或没有对手
	GarbageInjected   int64
	RoundsReset       int64
	SlotsCompacted    int64
	BytesBroadcast    int64
}

func (m *RoomMetrics) IncAccepted()          { atomic.AddInt64(&m.InputsAccepted, 1) }
func (m *RoomMetrics) IncIgnored()           { atomic.AddInt64(&m.InputsIgnored, 1) }
func (m *RoomMetrics) IncMalformed()         { atomic.AddInt64(&m.InputsMalformed, 1) }
func (m *RoomMetrics) IncChanFullDiscarded() { atomic.AddInt64(&m.ChanFullDiscarded, 1) }
func (m *RoomMetrics) IncMerges()            { atomic.AddInt64(&m.Merges, 1) }
func (m *RoomMetrics) IncAttacksDropped()    { atomic.AddInt64(&m.AttacksDropped, 1) }
func (m *RoomMetrics) IncRoundsReset()       { atomic.AddInt64(&m.RoundsReset, 1) }
func (m *RoomMetrics) IncCompacted()         { atomic.AddInt64(&m.SlotsCompacted, 1) }
func (m *RoomMetrics) IncOverBudget()        { atomic.AddInt64(&m.TicksOverBudget, 1) }

func (m *RoomMetrics) AddAttack(garbage int) {
	atomic.AddInt64(&m.AttacksSent, 1)
	atomic.AddInt64(&m.GarbageInjected, int64(garbage))
}

func (m *RoomMetrics) AddBroadcast(n int) { atomic.AddInt64(&m.BytesBroadcast, int64(n)) }

func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"avg_tick_ms":         avgMs,
		"ticks_over_budget":   atomic.LoadInt64(&m.TicksOverBudget),
		"inputs_accepted":     atomic.LoadInt64(&m.InputsAccepted),
		"inputs_ignored":      atomic.LoadInt64(&m.InputsIgnored),
		"inputs_malformed":    atomic.LoadInt64(&m.InputsMalformed),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"merges":              atomic.LoadInt64(&m.Merges),
		"attacks_sent":        atomic.LoadInt64(&m.AttacksSent),
		"attacks_dropped":     atomic.LoadInt64(&m.AttacksDropped),
		"garbage_injected":    atomic.LoadInt64(&m.GarbageInjected),
		"rounds_reset":        atomic.LoadInt64(&m.RoundsReset),
		"slots_compacted":     atomic.LoadInt64(&m.SlotsCompacted),
		"bytes_broadcast":     atomic.LoadInt64(&m.BytesBroadcast),
	}
}
