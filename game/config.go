package game

import (
	"errors"
	"fmt"
)

// Config 单局棋盘的物理与规则参数（与 YAML 配置的 game 段一一对应）
type Config struct {
	BoardWidth  float64 `yaml:"board_width"`
	BoardHeight float64 `yaml:"board_height"`
	Gravity     float64 `yaml:"gravity"`
	TickRate    int     `yaml:"tick_rate"`

	// 各等级球的直径（米），等级数 = len(TierDiameters)
	TierDiameters []float64 `yaml:"tier_diameters"`

	Friction        float64 `yaml:"friction"`
	Restitution     float64 `yaml:"restitution"`
	WallFriction    float64 `yaml:"wall_friction"`
	WallRestitution float64 `yaml:"wall_restitution"`

	PlacementCooldown int `yaml:"placement_cooldown"` // 两次落球之间至少间隔的 Tick 数
	DangerTicks       int `yaml:"danger_ticks"`       // 连续溢出多少 Tick 判负

	// true：球心越线且竖直速度 >= 0 即算溢出；false：仅速度 > 0
	DeathOnRest bool `yaml:"death_on_rest"`

	GarbageBase    float64 `yaml:"garbage_base"`    // 垃圾球堆叠的起始高度
	ExplosionScale float64 `yaml:"explosion_scale"` // 合成时清除垃圾的半径系数

	Seed int32 `yaml:"seed"`
}

// DefaultConfig 默认参数：14x24 的棋盘，11 个等级
func DefaultConfig() Config {
	return Config{
		BoardWidth:        14,
		BoardHeight:       24,
		Gravity:           48,
		TickRate:          60,
		TierDiameters:     []float64{1, 1.5, 2.1, 2.4, 3.0, 3.6, 3.8, 5.1, 6.1, 6.9, 8.1},
		Friction:          0.5,
		Restitution:       0.1,
		WallFriction:      0,
		WallRestitution:   0.1,
		PlacementCooldown: 20,
		DangerTicks:       60,
		DeathOnRest:       true,
		GarbageBase:       0,
		ExplosionScale:    1,
	}
}

// Tiers 等级数量
func (c Config) Tiers() int { return len(c.TierDiameters) }

// Radius 指定等级的半径，越界等级返回 0
func (c Config) Radius(tier int) float64 {
	if tier < 0 || tier >= len(c.TierDiameters) {
		return 0
	}
	return c.TierDiameters[tier] / 2
}

// TickSeconds 固定步长（秒）
func (c Config) TickSeconds() float64 {
	return 1 / float64(c.TickRate)
}

// Validate 检查参数是否能构成合法棋盘
func (c Config) Validate() error {
	if c.BoardWidth <= 0 || c.BoardHeight <= 0 {
		return errors.New("game: board size must be positive")
	}
	if c.TickRate <= 0 {
		return errors.New("game: tick rate must be positive")
	}
	// 随机器区间 [2, T-5] 非空，且等级需放进 4 bit
	if n := c.Tiers(); n < 7 || n > 1<<tierBits {
		return fmt.Errorf("game: tier count %d out of range [7, %d]", n, 1<<tierBits)
	}
	for i, d := range c.TierDiameters {
		if d <= 0 {
			return fmt.Errorf("game: tier %d diameter must be positive", i)
		}
	}
	if c.PlacementCooldown < 0 || c.DangerTicks <= 0 {
		return errors.New("game: placement cooldown and danger ticks must be non-negative / positive")
	}
	return nil
}
