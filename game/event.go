package game

import (
	"errors"
	"fmt"
	"strconv"
)

// EventKind 游戏输入事件的类型
type EventKind uint8

const (
	EventReceive EventKind = iota // 空事件，只用于推进 Tick
	EventPlace                    // 落球
	EventPlacing                  // 更新预览位置
)

func (k EventKind) String() string {
	switch k {
	case EventPlace:
		return "place"
	case EventPlacing:
		return "placing"
	default:
		return "receive"
	}
}

// 输入报文前缀
const (
	prefixPlacing = '?'
	prefixPlace   = '!'
	inputBits     = 8
)

var ErrMalformedInput = errors.New("game: malformed input")

// GameEvent 一条输入事件，创建后不再修改
type GameEvent struct {
	ID     uint64    // 生产者内单调递增
	Tick   uint64    // 生效的 Tick
	Target int       // 目标棋盘
	Kind   EventKind
	X      uint32    // 量化后的横坐标（place/placing）
}

// QuantizeX 将横坐标编码为输入报文使用的 8 位整数
func QuantizeX(x, width float64) uint32 {
	return EncodeRange(x, -width/2, width/2, inputBits)
}

// DequantizeX QuantizeX 的逆运算
func DequantizeX(v uint32, width float64) float64 {
	return DecodeRange(v, -width/2, width/2, inputBits)
}

// Wire 事件的输入报文形式；receive 事件没有报文
func (e GameEvent) Wire() (string, bool) {
	var prefix byte
	switch e.Kind {
	case EventPlace:
		prefix = prefixPlace
	case EventPlacing:
		prefix = prefixPlacing
	default:
		return "", false
	}
	return string(prefix) + strconv.FormatUint(uint64(e.X), 36), true
}

// EncodeInput 直接由坐标构造输入报文
func EncodeInput(kind EventKind, x, width float64) (string, error) {
	s, ok := GameEvent{Kind: kind, X: QuantizeX(x, width)}.Wire()
	if !ok {
		return "", fmt.Errorf("%w: kind %s has no wire form", ErrMalformedInput, kind)
	}
	return s, nil
}

// ParseInput 解析 "?<b36>" / "!<b36>"，返回事件类型与解码后的横坐标
func ParseInput(msg string, width float64) (EventKind, float64, error) {
	if len(msg) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedInput, msg)
	}
	var kind EventKind
	switch msg[0] {
	case prefixPlace:
		kind = EventPlace
	case prefixPlacing:
		kind = EventPlacing
	default:
		return 0, 0, fmt.Errorf("%w: prefix %q", ErrMalformedInput, msg[0])
	}
	v, err := strconv.ParseUint(msg[1:], 36, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if v >= 1<<inputBits {
		return 0, 0, fmt.Errorf("%w: x code %d out of range", ErrMalformedInput, v)
	}
	return kind, DequantizeX(uint32(v), width), nil
}
