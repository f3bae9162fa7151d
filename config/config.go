package config

import (
	"errors"
	"fmt"
	"time"

	"suikaarena/game"
)

// Config 服务进程的完整配置，对应 YAML 的三个段
type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   game.Config  `yaml:"game"`
	Attack AttackConfig `yaml:"attack"`
}

// ServerConfig 网络、日志与 Tick 循环参数
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	LogFile     string `yaml:"log_file"` // 空串表示输出到 stderr
	LogLevel    string `yaml:"log_level"`
	DefaultRoom string `yaml:"default_room"`

	TickInterval time.Duration `yaml:"tick_interval"`
	TickBudget   time.Duration `yaml:"tick_budget"` // 单次 Tick 超过该耗时记为超时

	SendBuffer  int `yaml:"send_buffer"`  // 每个连接的发送队列长度
	InputBuffer int `yaml:"input_buffer"` // 房间输入通道容量
	JoinBuffer  int `yaml:"join_buffer"`
}

// AttackConfig 合成攻击规则：tier >= MinTier 时向对手投放
// Base + (tier-MinTier)*PerTier 个等级为 tier-MinTier 的垃圾球
type AttackConfig struct {
	MinTier int `yaml:"min_tier" json:"minTier"`
	Base    int `yaml:"base" json:"base"`
	PerTier int `yaml:"per_tier" json:"perTier"`
}

// Garbage 返回一次 tier 级合成产生的垃圾数量与等级；ok=false 表示不构成攻击
func (a AttackConfig) Garbage(tier int) (count, garbageTier int, ok bool) {
	if tier < a.MinTier {
		return 0, 0, false
	}
	d := tier - a.MinTier
	count = a.Base + d*a.PerTier
	if count <= 0 {
		return 0, 0, false
	}
	return count, d, true
}

// Default 硬编码的默认配置，与 defaults/suika.yaml 保持一致
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:         ":8080",
			LogFile:      "app.log",
			LogLevel:     "debug",
			DefaultRoom:  "room-1",
			TickInterval: 16 * time.Millisecond,
			TickBudget:   12 * time.Millisecond,
			SendBuffer:   64,
			InputBuffer:  256,
			JoinBuffer:   64,
		},
		Game: game.DefaultConfig(),
		Attack: AttackConfig{
			MinTier: 4,
			Base:    3,
			PerTier: 3,
		},
	}
}

// Validate 检查配置能否启动服务
func (c Config) Validate() error {
	if err := c.Game.Validate(); err != nil {
		return err
	}
	s := c.Server
	if s.TickInterval <= 0 {
		return errors.New("config: server.tick_interval must be positive")
	}
	if s.SendBuffer <= 0 || s.InputBuffer <= 0 || s.JoinBuffer <= 0 {
		return errors.New("config: server buffers must be positive")
	}
	if c.Attack.MinTier < 0 || c.Attack.Base < 0 || c.Attack.PerTier < 0 {
		return fmt.Errorf("config: attack rules must be non-negative, got %+v", c.Attack)
	}
	return nil
}
