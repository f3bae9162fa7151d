package game

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"suikaarena/physics"
)

// MergeEvent 一次合成；Tier 为参与合成的两个球的等级
type MergeEvent struct {
	Tier int
	X    float64
	Y    float64
}

// MergeSink 接收 Step 期间产生的合成通知（服务端据此路由攻击）
type MergeSink func(MergeEvent)

// Simulation 单个玩家的一局游戏：合成规则、垃圾球、随机器与溢出判定。
// 不是并发安全的，由所属房间的 Tick 协程独占驱动。
type Simulation struct {
	cfg       Config
	container *Container

	// 可合成球的索引（按碰撞体句柄），垃圾球不登记
	mergeable map[physics.Handle]*Ball

	largestTier   int
	rng           int32
	seed          int32
	scatter       *rand.Rand // 垃圾球横向位置
	nx            float64
	active        bool
	danger        int
	cooldown      int
	garbageHeight float64

	sink MergeSink
	log  *zap.SugaredLogger
}

// NewSimulation 按配置创建一局，随机种子取 cfg.Seed
func NewSimulation(cfg Config) *Simulation {
	s := &Simulation{cfg: cfg, rng: cfg.Seed, log: zap.NewNop().Sugar()}
	s.ResetSeed(cfg.Seed)
	return s
}

// SetLogger 生成球失败等异常写入该日志；nil 表示丢弃
func (s *Simulation) SetLogger(log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s.log = log
}

func (s *Simulation) Config() Config { return s.cfg }

// Step 推进一个 Tick：物理步进 → 处理碰撞合成 → 冷却与溢出计数
func (s *Simulation) Step(sink MergeSink) {
	s.sink = sink
	defer func() { s.sink = nil }()

	if err := s.container.Step(); err != nil {
		return
	}
	s.container.DrainCollisions(func(a, b physics.Handle, started bool) {
		if !started {
			return
		}
		// 每个事件处理时重新查表：同一 Tick 里已经合成掉的球不会再次参与
		b1, ok1 := s.mergeable[a]
		b2, ok2 := s.mergeable[b]
		if !ok1 || !ok2 || b1.Tier() != b2.Tier() {
			return
		}
		s.Merge(b1, b2)
	})

	if s.active {
		s.cooldown++
		if s.IsAlive() {
			s.danger = 0
		} else {
			s.danger++
			if s.danger >= s.cfg.DangerTicks {
				s.danger = s.cfg.DangerTicks
				s.active = false
			}
		}
	}
	s.garbageHeight = s.cfg.GarbageBase
}

// StepIfActive 仅在对局仍在进行时推进，返回推进后是否仍然存活
func (s *Simulation) StepIfActive(sink MergeSink) bool {
	if !s.active {
		return false
	}
	s.Step(sink)
	return s.active
}

// IsAlive 没有任何球越过顶线 (y>0) 且仍在上升/静止
func (s *Simulation) IsAlive() bool {
	for _, b := range s.container.Balls() {
		p, err := b.Position()
		if err != nil || p.Y <= 0 {
			continue
		}
		v, err := b.Velocity()
		if err != nil {
			continue
		}
		if v.Y > 0 || (s.cfg.DeathOnRest && v.Y == 0) {
			return false
		}
	}
	return true
}

func (s *Simulation) IsActive() bool { return s.active }

func (s *Simulation) Danger() int { return s.danger }

func (s *Simulation) Nx() float64 { return s.nx }

func (s *Simulation) LargestTier() int { return s.largestTier }

// SetNx 更新下一个球的预览位置（裁剪到棋盘宽度内）
func (s *Simulation) SetNx(x float64) {
	s.nx = clamp(x, -s.cfg.BoardWidth/2, s.cfg.BoardWidth/2)
}

// NextTier 由随机器状态决定下一个球的等级，最大的几个等级不会直接出现
func (s *Simulation) NextTier() int {
	allowed := clampInt(s.largestTier-1, 2, s.cfg.Tiers()-5)
	return int(absInt32(s.rng) % int64(allowed+1))
}

// PlaceBall 在顶线 (x, 0) 落下下一个球；冷却未到时忽略
func (s *Simulation) PlaceBall(x float64) bool {
	if s.cooldown < s.cfg.PlacementCooldown {
		return false
	}
	tier := s.NextTier()
	x = s.fitX(x, tier)
	if _, err := s.CreateBall(x, 0, tier); err != nil {
		return false
	}
	s.cooldown = 0
	s.nx = x
	s.rng = Hash(s.rng)
	return true
}

// fitX 保证球完整地落在左右墙之间
func (s *Simulation) fitX(x float64, tier int) float64 {
	half := s.cfg.BoardWidth/2 - s.cfg.Radius(tier)
	return clamp(x, -half, half)
}

// CreateBall 直接生成一个可合成的球
func (s *Simulation) CreateBall(x, y float64, tier int) (*Ball, error) {
	b, err := s.container.AddBall(x, y, tier, true)
	if err != nil {
		return nil, err
	}
	s.mergeable[b.Handle()] = b
	if tier > s.largestTier {
		s.largestTier = tier
	}
	return b, nil
}

// CreateGarbage 生成一个垃圾球（不登记到合成索引）
func (s *Simulation) CreateGarbage(x, y float64, tier int) (*Ball, error) {
	return s.container.AddBall(x, y, tier, false)
}

// Merge 合成两个同级球；等级不同属于逻辑错误，直接 panic
func (s *Simulation) Merge(a, b *Ball) {
	if a.Tier() != b.Tier() {
		panic(fmt.Sprintf("game: cannot merge balls of different tiers, got %d and %d", a.Tier(), b.Tier()))
	}
	pa, errA := a.Position()
	pb, errB := b.Position()
	if errA != nil || errB != nil {
		panic(fmt.Sprintf("game: cannot merge disposed balls (%v, %v)", errA, errB))
	}
	tier := a.Tier()

	// 位置取较低的那个；同高时取句柄较小的
	at := pa
	if pb.Y < pa.Y || (pb.Y == pa.Y && b.Handle() < a.Handle()) {
		at = pb
	}
	s.dispose(a)
	s.dispose(b)

	// 最高级合成后两个一起消失
	if tier+1 < s.cfg.Tiers() {
		if _, err := s.CreateBall(at.X, at.Y, tier+1); err != nil {
			s.log.Warnf("merge tier %d at (%.2f, %.2f): %v", tier, at.X, at.Y, err)
		}
	}
	if s.sink != nil {
		s.sink(MergeEvent{Tier: tier, X: at.X, Y: at.Y})
	}
	s.ClearNearbyGarbage(at.X, at.Y, s.explosionRadius(tier))
}

func (s *Simulation) explosionRadius(tier int) float64 {
	next := tier + 1
	if next >= s.cfg.Tiers() {
		next = s.cfg.Tiers() - 1
	}
	return s.cfg.Radius(next) * s.cfg.ExplosionScale
}

func (s *Simulation) dispose(b *Ball) {
	delete(s.mergeable, b.Handle())
	_ = b.Dispose()
}

// ClearNearbyGarbage 清除 (cx, cy) 附近的垃圾球：距离 <= r + 球半径。返回清除数量
func (s *Simulation) ClearNearbyGarbage(cx, cy, r float64) int {
	n := 0
	for _, b := range s.container.Balls() {
		if b.Active() {
			continue
		}
		p, err := b.Position()
		if err != nil {
			continue
		}
		if math.Hypot(p.X-cx, p.Y-cy) <= r+b.Radius() {
			s.dispose(b)
			n++
		}
	}
	return n
}

// InjectGarbage 在随机横坐标处堆一个垃圾球，同一 Tick 内多次调用会向上叠放
func (s *Simulation) InjectGarbage(tier int) {
	r := s.cfg.Radius(tier)
	if r == 0 {
		return
	}
	s.garbageHeight += r * 3
	half := s.cfg.BoardWidth/2 - r
	x := s.scatter.Float64()*2*half - half
	if _, err := s.CreateGarbage(x, s.garbageHeight, tier); err != nil {
		s.log.Warnf("inject garbage tier %d: %v", tier, err)
	}
	s.garbageHeight += r * 3
}

// Balls 当前存活的球
func (s *Simulation) Balls() []*Ball { return s.container.Balls() }

func (s *Simulation) BallCount() int { return s.container.BallCount() }

// MergeableCount 合成索引中的球数（即非垃圾球）
func (s *Simulation) MergeableCount() int { return len(s.mergeable) }

// Serialize 输出紧凑快照："{nx} {next} {球编码串} {danger}"
func (s *Simulation) Serialize() string {
	var sb strings.Builder
	w, h := s.cfg.BoardWidth, s.cfg.BoardHeight
	for _, b := range s.container.Balls() {
		p, err := b.Position()
		if err != nil {
			continue
		}
		sb.WriteString(EncodeBall(BallState{X: p.X, Y: p.Y, Tier: b.Tier(), Active: b.Active()}, w, h))
	}
	return strings.Join([]string{
		strconv.FormatFloat(s.nx, 'f', -1, 64),
		strconv.Itoa(s.NextTier()),
		sb.String(),
		strconv.Itoa(s.danger),
	}, " ")
}

// Deserialize 按本局的棋盘尺寸解析快照
func (s *Simulation) Deserialize(raw string) (Snapshot, error) {
	return Deserialize(raw, s.cfg.BoardWidth, s.cfg.BoardHeight)
}

// Reset 重建棋盘（物理状态全新），随机器状态延续
func (s *Simulation) Reset() {
	rng := s.rng
	s.ResetSeed(s.seed)
	s.rng = rng
}

// ResetSeed 重建棋盘并以 seed 重新初始化随机器，同一局的所有玩家共用一个 seed
func (s *Simulation) ResetSeed(seed int32) {
	if s.container != nil {
		s.container.Free()
	}
	s.container = NewContainer(s.cfg)
	s.mergeable = make(map[physics.Handle]*Ball)
	s.largestTier = 0
	s.seed = seed
	s.rng = seed
	s.scatter = rand.New(rand.NewSource(int64(seed)))
	s.nx = 0
	s.active = true
	s.danger = 0
	s.cooldown = s.cfg.PlacementCooldown
	s.garbageHeight = s.cfg.GarbageBase
}

// Free 永久释放资源；之后不允许再使用
func (s *Simulation) Free() {
	s.active = false
	if s.container != nil {
		s.container.Free()
	}
	s.mergeable = nil
}
