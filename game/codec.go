package game

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// 球编码：20 位整数，4 位 base36 定宽
//
//	bits 19:13  x（7 位，[-w/2, w/2]）
//	bits 12:5   y（8 位，[-h, h/8]，顶线以上留出余量以表示溢出）
//	bit  4      active
//	bits 3:0    tier
const (
	xBits         = 7
	yBits         = 8
	tierBits      = 4
	ballCodeWidth = 4

	xShift      = 13
	yShift      = 5
	activeShift = 4
)

var ErrMalformedSnapshot = errors.New("game: malformed snapshot")

// BallState 快照中的一个球
type BallState struct {
	X      float64
	Y      float64
	Tier   int
	Active bool
}

// Snapshot 一块棋盘的可见状态
type Snapshot struct {
	Nx     float64
	Next   int
	Balls  []BallState
	Danger int
}

func yRange(height float64) (float64, float64) {
	return -height, height / 8
}

// EncodeBall 编码单个球
func EncodeBall(b BallState, width, height float64) string {
	ylo, yhi := yRange(height)
	x := EncodeRange(b.X, -width/2, width/2, xBits)
	y := EncodeRange(b.Y, ylo, yhi, yBits)
	v := x<<xShift | y<<yShift | uint32(b.Tier)&(1<<tierBits-1)
	if b.Active {
		v |= 1 << activeShift
	}
	s := strconv.FormatUint(uint64(v), 36)
	if len(s) < ballCodeWidth {
		s = strings.Repeat("0", ballCodeWidth-len(s)) + s
	}
	return s
}

// DecodeBall EncodeBall 的逆运算
func DecodeBall(code string, width, height float64) (BallState, error) {
	if len(code) != ballCodeWidth {
		return BallState{}, fmt.Errorf("%w: ball code %q", ErrMalformedSnapshot, code)
	}
	v, err := strconv.ParseUint(code, 36, 32)
	if err != nil || v >= 1<<(xBits+yBits+1+tierBits) {
		return BallState{}, fmt.Errorf("%w: ball code %q", ErrMalformedSnapshot, code)
	}
	u := uint32(v)
	ylo, yhi := yRange(height)
	return BallState{
		X:      DecodeRange(u>>xShift&(1<<xBits-1), -width/2, width/2, xBits),
		Y:      DecodeRange(u>>yShift&(1<<yBits-1), ylo, yhi, yBits),
		Tier:   int(u & (1<<tierBits - 1)),
		Active: u>>activeShift&1 == 1,
	}, nil
}

// Deserialize 解析 "{nx} {next} {balls} {danger}"
func Deserialize(raw string, width, height float64) (Snapshot, error) {
	parts := strings.Split(raw, " ")
	if len(parts) != 4 {
		return Snapshot{}, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedSnapshot, len(parts))
	}
	nx, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: nx: %v", ErrMalformedSnapshot, err)
	}
	next, err := strconv.Atoi(parts[1])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: next: %v", ErrMalformedSnapshot, err)
	}
	danger, err := strconv.Atoi(parts[3])
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: danger: %v", ErrMalformedSnapshot, err)
	}
	codes := parts[2]
	if len(codes)%ballCodeWidth != 0 {
		return Snapshot{}, fmt.Errorf("%w: ball section length %d", ErrMalformedSnapshot, len(codes))
	}
	balls := make([]BallState, 0, len(codes)/ballCodeWidth)
	for i := 0; i < len(codes); i += ballCodeWidth {
		b, err := DecodeBall(codes[i:i+ballCodeWidth], width, height)
		if err != nil {
			return Snapshot{}, err
		}
		balls = append(balls, b)
	}
	return Snapshot{Nx: nx, Next: next, Balls: balls, Danger: danger}, nil
}
