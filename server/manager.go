package server

import (
	"sync"

	"suikaarena/config"
)

// RoomManager 管理多个房间的生命周期
type RoomManager struct {
	mu     sync.RWMutex
	cfg    config.Config
	rooms  map[string]*Room
	closed bool
}

var (
	defaultManager *RoomManager
	once           sync.Once
)

// NewRoomManager 以给定配置创建管理器（测试或嵌入使用）
func NewRoomManager(cfg config.Config) *RoomManager {
	return &RoomManager{cfg: cfg, rooms: make(map[string]*Room)}
}

// InitRoomManager 以给定配置初始化单例；只有第一次调用生效
func InitRoomManager(cfg config.Config) *RoomManager {
	once.Do(func() {
		defaultManager = NewRoomManager(cfg)
	})
	return defaultManager
}

// GetRoomManager 单例房间管理器，未初始化时使用默认配置
func GetRoomManager() *RoomManager {
	return InitRoomManager(config.Default())
}

// Config 创建新房间时使用的配置
func (m *RoomManager) Config() config.Config { return m.cfg }

// GetOrCreateRoom 获取或创建房间，并确保开始 Tick；管理器关闭后返回 nil
func (m *RoomManager) GetOrCreateRoom(id string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	r, ok := m.rooms[id]
	if !ok {
		r = NewRoom(id, m.cfg)
		m.rooms[id] = r
		r.StartTicker()
		Log.Infof("room created: %s", id)
	}
	return r
}

// GetRoom 只查询，不创建
func (m *RoomManager) GetRoom(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// RoomIDs 当前所有房间
func (m *RoomManager) RoomIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown 关闭所有房间，返回时所有 Tick 协程均已退出
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, r := range rooms {
		wg.Add(1)
		go func(r *Room) {
			defer wg.Done()
			r.Shutdown()
		}(r)
	}
	wg.Wait()
}
