package game

import "math"

// Hash Jenkins 32 位整数哈希，落球随机器每放一个球推进一次
func Hash(a int32) int32 {
	u := uint32(a)
	u = u + 0x7ed55d16 + (u << 12)
	u = u ^ 0xc761c23c ^ uint32(int32(u)>>19)
	u = u + 0x165667b1 + (u << 5)
	u = (u + 0xd3a2646c) ^ (u << 9)
	u = u + 0xfd7046c5 + (u << 3)
	u = u ^ 0xb55a4f09 ^ uint32(int32(u)>>16)
	return int32(u)
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func absInt32(x int32) int64 {
	v := int64(x)
	if v < 0 {
		return -v
	}
	return v
}

// EncodeRange 将 [lo, hi] 内的 x 量化为 k 位整数（四舍五入，越界先裁剪）
func EncodeRange(x, lo, hi float64, k uint) uint32 {
	steps := float64(uint32(1)<<k - 1)
	x = clamp(x, lo, hi) - lo
	return uint32(math.Round(x / (hi - lo) * steps))
}

// DecodeRange EncodeRange 的逆运算，误差不超过 (hi-lo)/2^k
func DecodeRange(v uint32, lo, hi float64, k uint) float64 {
	steps := float64(uint32(1)<<k - 1)
	return float64(v)/steps*(hi-lo) + lo
}
