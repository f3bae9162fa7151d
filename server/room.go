package server

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"suikaarena/config"
	"suikaarena/game"
)

var ErrRoomClosed = errors.New("server: room closed")

// pendingAttack 一次待路由的合成攻击；from 记录槽位指针而不是下标，压缩后下标会变
type pendingAttack struct {
	from *PlayerSlot
	tier int
}

// Room 房间：名单中的每个玩家一块棋盘，单线程 Tick 推进。
// 除 OnInput/JoinPlayer/OnPlayerLeave/OnRoundStart 等入站方法外，
// 所有状态只在 Tick 协程中修改。
type Room struct {
	ID string

	cfg      game.Config
	newBoard BoardFactory
	slots    []*PlayerSlot

	inputChan chan Input
	joinChan  chan *PlayerSlot
	joinMu    sync.Mutex
	leaveChan chan PlayerID
	roundChan chan []PlayerID

	// 可通过管理接口热更新
	mu         sync.RWMutex
	attack     config.AttackConfig
	tickBudget time.Duration

	rng     *rand.Rand
	seed    int32 // 当前回合的共享种子
	pending []pendingAttack

	tickSeq  atomic.Uint64
	interval time.Duration
	metrics  *RoomMetrics
	log      *zap.SugaredLogger

	tickerStarted atomic.Bool
	closed        atomic.Bool
	quit          chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
}

// NewRoom 创建房间，初始化数据结构（不启动 Tick）
func NewRoom(id string, cfg config.Config) *Room {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Room{
		ID:         id,
		cfg:        cfg.Game,
		newBoard:   SimulationBoard,
		inputChan:  make(chan Input, cfg.Server.InputBuffer), // 足够缓冲，避免网络读阻塞影响 Tick
		joinChan:   make(chan *PlayerSlot, cfg.Server.JoinBuffer),
		leaveChan:  make(chan PlayerID, cfg.Server.JoinBuffer),
		roundChan:  make(chan []PlayerID, 4),
		attack:     cfg.Attack,
		tickBudget: cfg.Server.TickBudget,
		rng:        rng,
		seed:       rng.Int31(),
		interval:   cfg.Server.TickInterval,
		metrics:    &RoomMetrics{},
		log:        Log.With("room", id),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// JoinPlayer 申请加入房间，下一次 Tick 开始时生效并通知其下标
func (r *Room) JoinPlayer(id PlayerID, conn Conn) (*PlayerSlot, error) {
	// 与 Shutdown 互斥：关闭之后不会再有请求进入 joinChan
	r.joinMu.Lock()
	defer r.joinMu.Unlock()
	if r.closed.Load() {
		return nil, ErrRoomClosed
	}
	slot := &PlayerSlot{ID: id, Session: uuid.NewString(), Conn: conn}
	select {
	case r.joinChan <- slot:
		return slot, nil
	default:
		return nil, errors.New("server: room join queue full")
	}
}

// OnInput 入站输入（不立即执行），等下一次 Tick 处理
func (r *Room) OnInput(in Input) {
	// 不阻塞：输入拥塞时丢弃，保证 Tick 准时
	select {
	case r.inputChan <- in:
	default:
		r.metrics.IncChanFullDiscarded()
	}
}

// OnPlayerLeave 大厅通知玩家离开：关闭其连接，压缩阶段移除槽位
func (r *Room) OnPlayerLeave(id PlayerID) {
	select {
	case r.leaveChan <- id:
	case <-r.quit:
	}
}

// OnRoundStart 大厅开始新回合：名单内的玩家全部换新棋盘，名单外的断开
func (r *Room) OnRoundStart(players []PlayerID) {
	ids := append([]PlayerID(nil), players...)
	select {
	case r.roundChan <- ids:
	case <-r.quit:
	}
}

// ProcessInputs 处理当前帧之前积累的所有入站请求（非阻塞 drain）。
// 先处理加入，保证同一连接的首条输入能找到槽位。
func (r *Room) ProcessInputs() {
	r.drainJoins()
	r.drainLobby()
	for {
		select {
		case in := <-r.inputChan:
			r.applyInput(in)
		default:
			return
		}
	}
}

func (r *Room) drainJoins() {
	for {
		select {
		case slot := <-r.joinChan:
			r.addSlot(slot)
		default:
			return
		}
	}
}

func (r *Room) drainLobby() {
	for {
		select {
		case id := <-r.leaveChan:
			r.closePlayer(id)
		case ids := <-r.roundChan:
			r.startRound(ids)
		default:
			return
		}
	}
}

func (r *Room) addSlot(slot *PlayerSlot) {
	slot.Board = r.newBoard(r.cfg, r.seed)
	r.slots = append(r.slots, slot)
	slot.Conn.Enqueue(indexMessage(len(r.slots) - 1))
	r.log.Infof("player joined: id=%s session=%s index=%d", slot.ID, slot.Session, len(r.slots)-1)
}

func (r *Room) closePlayer(id PlayerID) {
	for _, s := range r.slots {
		if s.ID == id {
			s.Conn.Close()
		}
	}
}

func (r *Room) startRound(ids []PlayerID) {
	keep := make(map[PlayerID]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	r.seed = r.rng.Int31()
	for _, s := range r.slots {
		if keep[s.ID] {
			s.Board.ResetSeed(r.seed)
		} else {
			s.Conn.Close()
		}
	}
	r.pending = nil
	r.log.Infof("round started by lobby: players=%d seed=%d", len(ids), r.seed)
}

func (r *Room) applyInput(in Input) {
	slot := r.slotBySession(in.Session)
	if slot == nil || !in.apply(slot.Board) {
		r.metrics.IncIgnored()
		return
	}
	r.metrics.IncAccepted()
}

func (r *Room) slotBySession(session string) *PlayerSlot {
	for _, s := range r.slots {
		if s.Session == session {
			return s
		}
	}
	return nil
}

// Tick 推进一帧：处理入站 → 步进 → 压缩 → 回合判定 → 广播 → 路由攻击
func (r *Room) Tick() {
	r.tickSeq.Add(1)
	r.ProcessInputs()
	r.stepBoards()
	r.compact()
	r.checkRoundEnd()
	r.Broadcast()
	r.routeAttacks()
}

// stepBoards 推进所有在线玩家的棋盘，合成通知记为待路由的攻击；返回仍存活的数量
func (r *Room) stepBoards() int {
	active := 0
	for _, s := range r.slots {
		if !s.Conn.IsOpen() {
			continue
		}
		slot := s
		if slot.Board.StepIfActive(func(e game.MergeEvent) {
			r.metrics.IncMerges()
			r.pending = append(r.pending, pendingAttack{from: slot, tier: e.Tier})
		}) {
			active++
		}
	}
	return active
}

// compact 移除连接已关闭的槽位：与末尾交换后截断，被移动的槽位重新通知下标
func (r *Room) compact() {
	for i := 0; i < len(r.slots); {
		s := r.slots[i]
		if s.Conn.IsOpen() {
			i++
			continue
		}
		last := len(r.slots) - 1
		r.slots[i] = r.slots[last]
		r.slots[last] = nil
		r.slots = r.slots[:last]
		s.Board.Free()
		r.metrics.IncCompacted()
		r.log.Infof("player removed: id=%s session=%s", s.ID, s.Session)
		if i < last {
			r.slots[i].Conn.Enqueue(indexMessage(i))
		}
		// 换过来的槽位在下一轮循环里同样要检查
	}
}

// checkRoundEnd 名单至少两人且存活不超过一人时，所有人以新种子重开
func (r *Room) checkRoundEnd() {
	if len(r.slots) < 2 {
		return
	}
	active := 0
	for _, s := range r.slots {
		if s.Board.IsActive() {
			active++
		}
	}
	if active > 1 {
		return
	}
	r.seed = r.rng.Int31()
	for _, s := range r.slots {
		s.Board.ResetSeed(r.seed)
	}
	r.metrics.IncRoundsReset()
	r.log.Infof("round over: players=%d seed=%d", len(r.slots), r.seed)
}

// Broadcast 将所有棋盘的快照按名单顺序广播给每个在线连接（JSON 字符串数组）
func (r *Room) Broadcast() {
	if len(r.slots) == 0 {
		return
	}
	snapshot := make([]string, len(r.slots))
	for i, s := range r.slots {
		snapshot[i] = s.Board.Serialize()
	}
	b, err := json.Marshal(snapshot)
	if err != nil {
		r.log.Errorf("marshal snapshot: %v", err)
		return
	}
	for _, s := range r.slots {
		if s.Conn.IsOpen() {
			s.Conn.Enqueue(b)
			r.metrics.AddBroadcast(len(b))
		}
	}
}

// routeAttacks 把本帧的合成攻击随机投给攻击者以外的一名玩家
func (r *Room) routeAttacks() {
	pending := r.pending
	r.pending = nil
	if len(pending) == 0 {
		return
	}
	rules := r.AttackRules()
	for _, a := range pending {
		count, tier, ok := rules.Garbage(a.tier)
		if !ok {
			continue
		}
		from := r.indexOf(a.from)
		if from < 0 || len(r.slots) < 2 {
			r.metrics.IncAttacksDropped()
			continue
		}
		to := r.rng.Intn(len(r.slots) - 1)
		if to >= from {
			to++
		}
		target := r.slots[to]
		for i := 0; i < count; i++ {
			target.Board.InjectGarbage(tier)
		}
		r.metrics.AddAttack(count)
		r.log.Debugf("attack: from=%d to=%d tier=%d garbage=%d", from, to, tier, count)
	}
}

func (r *Room) indexOf(slot *PlayerSlot) int {
	for i, s := range r.slots {
		if s == slot {
			return i
		}
	}
	return -1
}

// AttackRules 当前攻击规则
func (r *Room) AttackRules() config.AttackConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.attack
}

// SetAttackRules 热更新攻击规则，下一次路由时生效
func (r *Room) SetAttackRules(a config.AttackConfig) {
	r.mu.Lock()
	r.attack = a
	r.mu.Unlock()
}

// TickBudget 单帧耗时预算；0 表示不检查
func (r *Room) TickBudget() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tickBudget
}

func (r *Room) SetTickBudget(d time.Duration) {
	r.mu.Lock()
	r.tickBudget = d
	r.mu.Unlock()
}

// TickSeq 已执行的 Tick 数
func (r *Room) TickSeq() uint64 { return r.tickSeq.Load() }

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

// Width 棋盘宽度，解析输入坐标时使用
func (r *Room) Width() float64 { return r.cfg.BoardWidth }
