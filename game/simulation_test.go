package game

import (
	"math"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	s := NewSimulation(DefaultConfig())
	t.Cleanup(s.Free)
	return s
}

// mustBall 用法：mustBall(t)(s.CreateBall(...))
func mustBall(t *testing.T) func(*Ball, error) *Ball {
	t.Helper()
	return func(b *Ball, err error) *Ball {
		t.Helper()
		if err != nil {
			t.Fatalf("create ball: %v", err)
		}
		return b
	}
}

func TestEqualTiersMergeOnContact(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateBall(0, 0, 0))
	mustBall(t)(s.CreateBall(0, 0, 0))

	s.Step(nil)

	balls := s.Balls()
	if len(balls) != 1 {
		t.Fatalf("want 1 ball after merge, got %d", len(balls))
	}
	if balls[0].Tier() != 1 || !balls[0].Active() {
		t.Fatalf("want active tier 1, got tier %d active=%v", balls[0].Tier(), balls[0].Active())
	}
	if s.MergeableCount() != 1 {
		t.Fatalf("merge index should hold only the result, got %d", s.MergeableCount())
	}
	if s.LargestTier() != 1 {
		t.Fatalf("largest tier: want 1 got %d", s.LargestTier())
	}
}

func TestMergeLandsAtLowerBall(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateBall(0.5, -4.5, 2))
	mustBall(t)(s.CreateBall(0, -5, 2))

	var got []MergeEvent
	s.Step(func(e MergeEvent) { got = append(got, e) })

	if len(got) != 1 {
		t.Fatalf("want one merge notification, got %d", len(got))
	}
	if got[0].Tier != 2 || got[0].X != 0 || got[0].Y != -5 {
		t.Fatalf("unexpected merge event %+v", got[0])
	}
	balls := s.Balls()
	if len(balls) != 1 || balls[0].Tier() != 3 {
		t.Fatalf("want a single tier 3 ball, got %d balls", len(balls))
	}
	p, err := balls[0].Position()
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if p.X != 0 || p.Y != -5 {
		t.Fatalf("merged ball at %+v, want (0,-5)", p)
	}
}

func TestTopTierMergeAnnihilates(t *testing.T) {
	s := newTestSim(t)
	top := s.cfg.Tiers() - 1
	mustBall(t)(s.CreateBall(0, -15, top))
	mustBall(t)(s.CreateBall(1, -15, top))

	var tiers []int
	s.Step(func(e MergeEvent) { tiers = append(tiers, e.Tier) })

	if s.BallCount() != 0 {
		t.Fatalf("top tier merge should leave nothing, got %d balls", s.BallCount())
	}
	if len(tiers) != 1 || tiers[0] != top {
		t.Fatalf("want one notification for tier %d, got %v", top, tiers)
	}
}

func TestMergeMismatchedTiersPanics(t *testing.T) {
	s := newTestSim(t)
	a := mustBall(t)(s.CreateBall(-3, -10, 0))
	b := mustBall(t)(s.CreateBall(3, -10, 1))

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic merging tiers 0 and 1")
		}
	}()
	s.Merge(a, b)
}

func TestDifferentTiersDoNotMerge(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateBall(0, -10, 0))
	mustBall(t)(s.CreateBall(0.2, -10, 1))

	s.Step(nil)
	if s.BallCount() != 2 {
		t.Fatalf("want 2 balls, got %d", s.BallCount())
	}
}

func TestGarbageNeverMerges(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateGarbage(0, -10, 0))
	mustBall(t)(s.CreateGarbage(0, -10, 0))
	mustBall(t)(s.CreateBall(0.3, -10, 0))

	var merges int
	s.Step(func(MergeEvent) { merges++ })

	if merges != 0 {
		t.Fatalf("garbage must not merge, got %d merges", merges)
	}
	if s.BallCount() != 3 {
		t.Fatalf("want 3 balls, got %d", s.BallCount())
	}
	if s.MergeableCount() != 1 {
		t.Fatalf("only the active ball is mergeable, got %d", s.MergeableCount())
	}
}

func TestClearNearbyGarbageRadius(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateGarbage(3, -10, 0)) // 半径 0.5，距原点 3
	mustBall(t)(s.CreateBall(0, -10, 0))

	if n := s.ClearNearbyGarbage(0, -10, 2.4); n != 0 {
		t.Fatalf("radius 2.4 should not reach, cleared %d", n)
	}
	if n := s.ClearNearbyGarbage(0, -10, 2.5); n != 1 {
		t.Fatalf("radius 2.5 touches the edge, want 1 cleared got %d", n)
	}
	if s.BallCount() != 1 || s.MergeableCount() != 1 {
		t.Fatalf("active ball must survive, got %d balls", s.BallCount())
	}
	if n := s.ClearNearbyGarbage(0, -10, 1e9); n != 0 {
		t.Fatalf("active balls are never cleared, got %d", n)
	}
}

func TestMergeClearsNearbyGarbage(t *testing.T) {
	s := newTestSim(t)
	mustBall(t)(s.CreateBall(0, -10, 0))
	mustBall(t)(s.CreateBall(0, -10, 0))
	mustBall(t)(s.CreateGarbage(1, -10, 0)) // 在爆炸半径内
	mustBall(t)(s.CreateGarbage(0, -20, 0)) // 太远

	s.Step(nil)

	if s.BallCount() != 2 {
		t.Fatalf("want merged ball plus far garbage, got %d balls", s.BallCount())
	}
	var garbage int
	for _, b := range s.Balls() {
		if !b.Active() {
			garbage++
			p, _ := b.Position()
			if p.Y > -19 {
				t.Fatalf("near garbage survived at %+v", p)
			}
		}
	}
	if garbage != 1 {
		t.Fatalf("want 1 garbage left, got %d", garbage)
	}
}

func TestInjectGarbageStacks(t *testing.T) {
	s := newTestSim(t)
	s.InjectGarbage(0)
	s.InjectGarbage(0)

	balls := s.Balls()
	if len(balls) != 2 {
		t.Fatalf("want 2 garbage balls, got %d", len(balls))
	}
	for i, want := range []float64{1.5, 4.5} {
		p, err := balls[i].Position()
		if err != nil {
			t.Fatalf("position: %v", err)
		}
		if math.Abs(p.Y-want) > 1e-9 {
			t.Fatalf("garbage %d at height %.3f, want %.3f", i, p.Y, want)
		}
		if math.Abs(p.X) > s.cfg.BoardWidth/2-0.5 {
			t.Fatalf("garbage %d x=%.3f outside the walls", i, p.X)
		}
		if balls[i].Active() {
			t.Fatalf("injected ball must be garbage")
		}
	}

	s.Step(nil)
	s.InjectGarbage(0)
	balls = s.Balls()
	p, _ := balls[len(balls)-1].Position()
	if math.Abs(p.Y-1.5) > 1e-9 {
		t.Fatalf("stack height should reset each tick, got %.3f", p.Y)
	}

	before := s.BallCount()
	s.InjectGarbage(-1)
	s.InjectGarbage(s.cfg.Tiers())
	if s.BallCount() != before {
		t.Fatalf("out of range tiers should be ignored")
	}
}

func TestInjectAndClearAllGarbage(t *testing.T) {
	s := newTestSim(t)
	for i := 0; i < 100; i++ {
		before := s.BallCount()
		s.InjectGarbage(i % 4)
		if s.BallCount() != before+1 {
			t.Fatalf("inject %d: count %d -> %d", i, before, s.BallCount())
		}
	}
	if n := s.ClearNearbyGarbage(0, 0, 1e9); n != 100 {
		t.Fatalf("want 100 cleared, got %d", n)
	}
	if s.BallCount() != 0 {
		t.Fatalf("board should be empty, got %d", s.BallCount())
	}
}

func TestDangerCountsToLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gravity = 0
	s := NewSimulation(cfg)
	defer s.Free()

	mustBall(t)(s.CreateBall(0, 1, 0))
	for i := 1; i < cfg.DangerTicks; i++ {
		if !s.StepIfActive(nil) {
			t.Fatalf("lost too early at tick %d", i)
		}
		if s.Danger() != i {
			t.Fatalf("tick %d: danger %d", i, s.Danger())
		}
	}
	if s.StepIfActive(nil) {
		t.Fatalf("expected loss after %d ticks", cfg.DangerTicks)
	}
	if s.IsActive() || s.Danger() != cfg.DangerTicks {
		t.Fatalf("want inactive with danger %d, got active=%v danger=%d", cfg.DangerTicks, s.IsActive(), s.Danger())
	}
	if s.StepIfActive(nil) || s.Danger() != cfg.DangerTicks {
		t.Fatalf("inactive board must not advance")
	}
}

func TestDangerResetsWhenClear(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gravity = 0
	s := NewSimulation(cfg)
	defer s.Free()

	b := mustBall(t)(s.CreateBall(0, 1, 0))
	for i := 0; i < 10; i++ {
		s.Step(nil)
	}
	if s.Danger() != 10 {
		t.Fatalf("want danger 10, got %d", s.Danger())
	}
	s.dispose(b)
	s.Step(nil)
	if s.Danger() != 0 {
		t.Fatalf("danger should reset once the line is clear, got %d", s.Danger())
	}
}

func TestRestingAboveLineWithoutDeathOnRest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gravity = 0
	cfg.DeathOnRest = false
	s := NewSimulation(cfg)
	defer s.Free()

	mustBall(t)(s.CreateBall(0, 1, 0))
	for i := 0; i < cfg.DangerTicks*2; i++ {
		s.Step(nil)
	}
	if !s.IsActive() || s.Danger() != 0 {
		t.Fatalf("resting ball should not count, active=%v danger=%d", s.IsActive(), s.Danger())
	}
}

func TestPlacementCooldown(t *testing.T) {
	s := newTestSim(t)
	if !s.PlaceBall(0) {
		t.Fatalf("first placement should be allowed")
	}
	for i := 1; i < s.cfg.PlacementCooldown; i++ {
		s.Step(nil)
		if s.PlaceBall(0) {
			t.Fatalf("placement allowed after only %d ticks", i)
		}
	}
	s.Step(nil)
	if !s.PlaceBall(0) {
		t.Fatalf("placement should be allowed after %d ticks", s.cfg.PlacementCooldown)
	}
	if s.BallCount() != 2 {
		t.Fatalf("want 2 placed balls, got %d", s.BallCount())
	}
}

func TestPlaceBallAdvancesRandomizer(t *testing.T) {
	s := newTestSim(t)
	if s.NextTier() != 0 {
		t.Fatalf("seed 0 should start with tier 0, got %d", s.NextTier())
	}
	s.PlaceBall(100)
	if s.rng != Hash(0) {
		t.Fatalf("rng should advance by one hash, got %d", s.rng)
	}
	b := s.Balls()[0]
	p, _ := b.Position()
	if want := s.cfg.BoardWidth/2 - b.Radius(); p.X != want || s.Nx() != want {
		t.Fatalf("placement should be clamped inside the walls, got x=%.3f nx=%.3f", p.X, s.Nx())
	}
	if p.Y != 0 {
		t.Fatalf("balls drop from the top line, got y=%.3f", p.Y)
	}
}

func TestNextTierRange(t *testing.T) {
	s := newTestSim(t)
	for _, largest := range []int{0, 3, 5, 10} {
		s.largestTier = largest
		allowed := clampInt(largest-1, 2, s.cfg.Tiers()-5)
		v := int32(12345)
		for i := 0; i < 500; i++ {
			s.rng = v
			if n := s.NextTier(); n < 0 || n > allowed {
				t.Fatalf("largest %d: tier %d outside [0,%d]", largest, n, allowed)
			}
			v = Hash(v)
		}
		s.rng = math.MinInt32
		if n := s.NextTier(); n < 0 || n > allowed {
			t.Fatalf("min int32 rng gave tier %d", n)
		}
	}
}

func TestSetNxClamps(t *testing.T) {
	s := newTestSim(t)
	s.SetNx(100)
	if s.Nx() != s.cfg.BoardWidth/2 {
		t.Fatalf("nx should clamp to %.1f, got %.3f", s.cfg.BoardWidth/2, s.Nx())
	}
	s.SetNx(-2.5)
	if s.Nx() != -2.5 {
		t.Fatalf("want -2.5 got %.3f", s.Nx())
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	s := newTestSim(t)
	s.SetNx(1.25)
	mustBall(t)(s.CreateBall(-3, -10, 2))
	mustBall(t)(s.CreateGarbage(4, -20, 1))

	snap, err := s.Deserialize(s.Serialize())
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if snap.Nx != 1.25 || snap.Next != s.NextTier() || snap.Danger != 0 {
		t.Fatalf("header mismatch: %+v", snap)
	}
	if len(snap.Balls) != 2 {
		t.Fatalf("want 2 balls, got %d", len(snap.Balls))
	}
	xTol := s.cfg.BoardWidth / 128
	yTol := s.cfg.BoardHeight * 9 / 8 / 256
	want := []BallState{{X: -3, Y: -10, Tier: 2, Active: true}, {X: 4, Y: -20, Tier: 1}}
	for i, w := range want {
		got := snap.Balls[i]
		if got.Tier != w.Tier || got.Active != w.Active {
			t.Fatalf("ball %d: want %+v got %+v", i, w, got)
		}
		if math.Abs(got.X-w.X) > xTol || math.Abs(got.Y-w.Y) > yTol {
			t.Fatalf("ball %d: position %+v too far from %+v", i, got, w)
		}
	}
}

func TestSameSeedSameBoard(t *testing.T) {
	a := newTestSim(t)
	b := newTestSim(t)
	xs := []float64{-4, 2.5, 0, -1, 5, 3, -6}
	for tick := 0; tick < 300; tick++ {
		if tick%25 == 0 {
			x := xs[(tick/25)%len(xs)]
			a.PlaceBall(x)
			b.PlaceBall(x)
		}
		if tick == 120 {
			a.InjectGarbage(1)
			b.InjectGarbage(1)
		}
		a.Step(nil)
		b.Step(nil)
	}
	if a.Serialize() != b.Serialize() {
		t.Fatalf("boards diverged:\n%s\n%s", a.Serialize(), b.Serialize())
	}
}

func TestResetAndFree(t *testing.T) {
	s := NewSimulation(DefaultConfig())
	s.PlaceBall(0)
	s.InjectGarbage(2)
	rng := s.rng

	s.Reset()
	if s.BallCount() != 0 || s.MergeableCount() != 0 {
		t.Fatalf("reset should empty the board")
	}
	if !s.IsActive() || s.Danger() != 0 || s.LargestTier() != 0 {
		t.Fatalf("reset should restore a fresh round")
	}
	if s.rng != rng {
		t.Fatalf("reset keeps the randomizer state")
	}
	if !s.PlaceBall(0) {
		t.Fatalf("placement ready right after reset")
	}

	s.ResetSeed(7)
	if s.rng != 7 || s.BallCount() != 0 {
		t.Fatalf("reset with seed: rng=%d balls=%d", s.rng, s.BallCount())
	}

	s.PlaceBall(0)
	balls := s.Balls()
	s.Free()
	if s.IsActive() {
		t.Fatalf("freed board must be inactive")
	}
	if !balls[0].Disposed() {
		t.Fatalf("balls of a freed board are disposed")
	}
	if s.StepIfActive(nil) {
		t.Fatalf("freed board must not step")
	}
	s.Free()
}

func TestSpawnFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	s := NewSimulation(DefaultConfig())
	s.SetLogger(zap.New(core).Sugar())
	s.Free()

	s.InjectGarbage(0)
	s.InjectGarbage(1)
	if logs.Len() != 2 {
		t.Fatalf("inject on a freed board: want 2 warnings, got %d", logs.Len())
	}
	if s.BallCount() != 0 {
		t.Fatalf("nothing spawned on a freed board")
	}
}

func TestBallDisposeOnce(t *testing.T) {
	s := newTestSim(t)
	b := mustBall(t)(s.CreateBall(0, -5, 0))
	if err := b.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if err := b.Dispose(); err != ErrDisposed {
		t.Fatalf("second dispose: want ErrDisposed got %v", err)
	}
	if _, err := b.Position(); err != ErrDisposed {
		t.Fatalf("position after dispose: want ErrDisposed got %v", err)
	}
	if b.State() != Disposed || b.State().String() != "disposed" {
		t.Fatalf("unexpected state %s", b.State())
	}
}

func TestContainerWalls(t *testing.T) {
	c := NewContainer(DefaultConfig())
	defer c.Free()
	walls := c.Walls()
	if len(walls) != 3 {
		t.Fatalf("want 3 walls, got %d", len(walls))
	}
	floor := walls[2]
	if floor.Y+floor.HY != -24 {
		t.Fatalf("floor top should sit at -height, got %.2f", floor.Y+floor.HY)
	}
	if walls[0].X+walls[0].HX != -7 || walls[1].X-walls[1].HX != 7 {
		t.Fatalf("side walls should bound [-7, 7]")
	}
	if c.BallCount() != 0 {
		t.Fatalf("new container holds no balls")
	}
	c.Free()
	if !c.Freed() {
		t.Fatalf("container should report freed")
	}
	if err := c.Step(); err == nil {
		t.Fatalf("stepping a freed container should fail")
	}
	if _, err := c.AddBall(0, 0, 0, true); err == nil {
		t.Fatalf("adding to a freed container should fail")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	cfg := DefaultConfig()
	cfg.TierDiameters = cfg.TierDiameters[:6]
	if cfg.Validate() == nil {
		t.Fatalf("6 tiers should be rejected")
	}
	cfg = DefaultConfig()
	cfg.TickRate = 0
	if cfg.Validate() == nil {
		t.Fatalf("zero tick rate should be rejected")
	}
	if r := DefaultConfig().Radius(99); r != 0 {
		t.Fatalf("radius of an unknown tier should be 0, got %.2f", r)
	}
}
