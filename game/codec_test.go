package game

import (
	"errors"
	"math"
	"testing"
)

func TestHashKnownValues(t *testing.T) {
	cases := []struct {
		in, want int32
	}{
		{0, -1800283865},
		{1, -1266253386},
		{-1, -26951294},
		{12345, -1438564288},
	}
	for _, c := range cases {
		if got := Hash(c.in); got != c.want {
			t.Errorf("Hash(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestRangeEncodingBounds(t *testing.T) {
	const lo, hi = -7.0, 7.0
	for _, k := range []uint{7, 8} {
		maxErr := (hi - lo) / float64(uint32(1)<<k)
		for x := lo; x <= hi; x += 0.013 {
			got := DecodeRange(EncodeRange(x, lo, hi, k), lo, hi, k)
			if math.Abs(got-x) > maxErr {
				t.Fatalf("k=%d x=%.3f decoded %.4f error above %.4f", k, x, got, maxErr)
			}
		}
		if v := EncodeRange(100, lo, hi, k); v != uint32(1)<<k-1 {
			t.Fatalf("k=%d: above range should clamp to max code, got %d", k, v)
		}
		if v := EncodeRange(-100, lo, hi, k); v != 0 {
			t.Fatalf("k=%d: below range should clamp to 0, got %d", k, v)
		}
	}
}

func TestBallCodeIsFixedWidth(t *testing.T) {
	cfg := DefaultConfig()
	cases := []BallState{
		{X: -7, Y: -24, Tier: 0, Active: false}, // 全零
		{X: 7, Y: 3, Tier: 15, Active: true},    // 全一
		{X: 0, Y: -12, Tier: 5, Active: true},
	}
	for _, b := range cases {
		code := EncodeBall(b, cfg.BoardWidth, cfg.BoardHeight)
		if len(code) != 4 {
			t.Fatalf("code %q for %+v is not 4 chars", code, b)
		}
	}
	if code := EncodeBall(cases[0], cfg.BoardWidth, cfg.BoardHeight); code != "0000" {
		t.Fatalf("lowest ball should encode to 0000, got %q", code)
	}
}

func TestBallCodeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	w, h := cfg.BoardWidth, cfg.BoardHeight
	xStep := w / (1 << xBits)
	yStep := (h + h/8) / (1 << yBits)
	for tier := 0; tier < 16; tier++ {
		for _, active := range []bool{true, false} {
			in := BallState{X: -6.3 + float64(tier)*0.8, Y: -23 + float64(tier)*1.6, Tier: tier, Active: active}
			out, err := DecodeBall(EncodeBall(in, w, h), w, h)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Tier != in.Tier || out.Active != in.Active {
				t.Fatalf("tier/active mismatch: in %+v out %+v", in, out)
			}
			if math.Abs(out.X-in.X) > xStep || math.Abs(out.Y-in.Y) > yStep {
				t.Fatalf("position beyond one quantisation step: in %+v out %+v", in, out)
			}
		}
	}
}

func TestDecodeBallRejectsGarbage(t *testing.T) {
	for _, code := range []string{"", "abc", "abcde", "zz!z", "zzzz"} {
		if _, err := DecodeBall(code, 14, 24); !errors.Is(err, ErrMalformedSnapshot) {
			t.Errorf("DecodeBall(%q): expected ErrMalformedSnapshot, got %v", code, err)
		}
	}
}

func TestDeserializeMalformed(t *testing.T) {
	cases := map[string]string{
		"too few fields":  "0 1 0000",
		"too many fields": "0 1 0000 0 9",
		"bad nx":          "x 1 0000 0",
		"bad next":        "0 y 0000 0",
		"bad danger":      "0 1 0000 z",
		"ragged balls":    "0 1 00000 0",
	}
	for name, raw := range cases {
		if _, err := Deserialize(raw, 14, 24); !errors.Is(err, ErrMalformedSnapshot) {
			t.Errorf("%s: expected ErrMalformedSnapshot, got %v", name, err)
		}
	}
}

func TestDeserializeEmptyBoard(t *testing.T) {
	snap, err := Deserialize("-1.5 2  0", 14, 24)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if snap.Nx != -1.5 || snap.Next != 2 || len(snap.Balls) != 0 || snap.Danger != 0 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestInputRoundTrip(t *testing.T) {
	const width = 14.0
	step := width / (1 << inputBits)
	for _, kind := range []EventKind{EventPlace, EventPlacing} {
		for x := -7.0; x <= 7.0; x += 0.37 {
			msg, err := EncodeInput(kind, x, width)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			gotKind, gotX, err := ParseInput(msg, width)
			if err != nil {
				t.Fatalf("parse %q: %v", msg, err)
			}
			if gotKind != kind || math.Abs(gotX-x) > step {
				t.Fatalf("%q: want (%s, %.3f) got (%s, %.3f)", msg, kind, x, gotKind, gotX)
			}
		}
	}
	if _, err := EncodeInput(EventReceive, 0, width); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("receive has no wire form, got %v", err)
	}
}

func TestParseInputRejects(t *testing.T) {
	for _, msg := range []string{"", "!", "?", "x10", "!zz", "?-1", "!7t", "!@#"} {
		if _, _, err := ParseInput(msg, 14); !errors.Is(err, ErrMalformedInput) {
			t.Errorf("ParseInput(%q): expected ErrMalformedInput, got %v", msg, err)
		}
	}
}
