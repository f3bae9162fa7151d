package server

import (
	"encoding/json"
	"net/http"
	"time"

	"suikaarena/config"
)

// adminConfig 管理接口的载荷；POST 时为 nil 的字段保持不变
type adminConfig struct {
	MinTier      *int     `json:"minTier,omitempty"`
	Base         *int     `json:"base,omitempty"`
	PerTier      *int     `json:"perTier,omitempty"`
	TickBudgetMs *float64 `json:"tickBudgetMs,omitempty"`
}

func (m *RoomManager) roomFromQuery(r *http.Request) (string, *Room) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = m.cfg.Server.DefaultRoom
	}
	return roomID, m.GetOrCreateRoom(roomID)
}

// HandleAdminConfig 提供房间攻击规则与 Tick 预算的读取与更新（热更新）
// GET /admin/config?room=room-1  返回当前配置
// POST /admin/config?room=room-1 以 JSON 载荷更新部分字段
func (m *RoomManager) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	roomID, room := m.roomFromQuery(r)
	if room == nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rules := room.AttackRules()
		budget := float64(room.TickBudget()) / float64(time.Millisecond)
		cur := adminConfig{
			MinTier:      &rules.MinTier,
			Base:         &rules.Base,
			PerTier:      &rules.PerTier,
			TickBudgetMs: &budget,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(cur)
		return
	case http.MethodPost:
		var body adminConfig
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		rules := room.AttackRules()
		if body.MinTier != nil {
			rules.MinTier = *body.MinTier
		}
		if body.Base != nil {
			rules.Base = *body.Base
		}
		if body.PerTier != nil {
			rules.PerTier = *body.PerTier
		}
		if rules.MinTier < 0 || rules.Base < 0 || rules.PerTier < 0 {
			http.Error(w, "attack rules must be non-negative", http.StatusBadRequest)
			return
		}
		if body.TickBudgetMs != nil {
			if *body.TickBudgetMs < 0 {
				http.Error(w, "tickBudgetMs must be non-negative", http.StatusBadRequest)
				return
			}
			room.SetTickBudget(time.Duration(*body.TickBudgetMs * float64(time.Millisecond)))
		}
		room.SetAttackRules(rules)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
		Log.Infof("config updated: room=%s attack=%s budget=%v", roomID, formatRules(rules), room.TickBudget())
		return
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
}

func formatRules(a config.AttackConfig) string {
	b, _ := json.Marshal(a)
	return string(b)
}

// HandleMetrics 输出指定房间的运行指标；只查询，不创建房间
// GET /metrics?room=room-1
func (m *RoomManager) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = m.cfg.Server.DefaultRoom
	}
	room, ok := m.GetRoom(roomID)
	if !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	payload := map[string]any{
		"room":    roomID,
		"tick":    room.TickSeq(),
		"metrics": room.Metrics().Snapshot(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
