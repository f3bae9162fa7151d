package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"suikaarena/game"
)

// BotConfig 压测/演示机器人的参数
type BotConfig struct {
	URL   string // ws://host:port/ws
	Room  string
	Name  string
	Moves int // 落球次数，<=0 表示一直玩到连接断开
	Every int // 两次落球之间间隔的帧数
	Seed  int64
	Game  game.Config
}

// Bot 通过 WebSocket 加入房间，随机选点落球，同时在本地预测自己的棋盘
type Bot struct {
	cfg    BotConfig
	log    *zap.SugaredLogger
	board  *PredictedBoard
	rng    *rand.Rand
	send   func(string) error
	index  int
	frames int
	placed int
	last   game.Snapshot
	err    error
}

func NewBot(cfg BotConfig, log *zap.SugaredLogger) *Bot {
	if cfg.Every <= 0 {
		cfg.Every = cfg.Game.PlacementCooldown + 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	b := &Bot{
		cfg:   cfg,
		log:   log.With("bot", cfg.Name),
		board: NewPredictedBoard(cfg.Game),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		index: -1,
	}
	b.board.SetSink(func(wire string) {
		if b.send == nil || b.err != nil {
			return
		}
		b.err = b.send(wire)
	})
	return b
}

func (b *Bot) Index() int { return b.index }

func (b *Bot) Placed() int { return b.placed }

func (b *Bot) Frames() int { return b.frames }

// LastSnapshot 最近一次服务端广播中自己的棋盘
func (b *Bot) LastSnapshot() game.Snapshot { return b.last }

func (b *Bot) Board() *PredictedBoard { return b.board }

func (b *Bot) dialURL() (string, error) {
	u, err := url.Parse(b.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("bot: bad url %q: %w", b.cfg.URL, err)
	}
	q := u.Query()
	if b.cfg.Room != "" {
		q.Set("room", b.cfg.Room)
	}
	q.Set("player", b.cfg.Name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run 连接并一直运行，直到完成 Moves 次落球、ctx 取消或连接断开
func (b *Bot) Run(ctx context.Context) error {
	defer b.board.Free()
	target, err := b.dialURL()
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("bot: dial %s: %w", target, err)
	}
	defer ws.Close()
	b.log.Infof("connected: %s", target)

	b.send = func(msg string) error {
		_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		return ws.WriteMessage(websocket.TextMessage, []byte(msg))
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-stop:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Infof("server closed connection")
				return nil
			}
			return fmt.Errorf("bot: read: %w", err)
		}
		finished, err := b.handle(string(data))
		if err != nil {
			return err
		}
		if finished {
			b.log.Infof("done: placed=%d frames=%d", b.placed, b.frames)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		}
	}
}

// handle 处理一条服务端消息；返回 true 表示已完成全部落球
func (b *Bot) handle(msg string) (bool, error) {
	switch {
	case strings.HasPrefix(msg, "!"):
		n, err := strconv.Atoi(msg[1:])
		if err != nil || n < 0 {
			b.log.Debugf("bad index message %q", msg)
			return false, nil
		}
		b.index = n
		if b.board.IsInitialized() {
			b.board.SetID(n)
		} else {
			// 种子不在协议里，本地预测只用于预览
			b.board.Initialize(int32(b.cfg.Seed), n)
		}
		b.log.Debugf("index=%d", n)
		return false, nil
	case strings.HasPrefix(msg, "["):
		return b.onFrame(msg)
	default:
		b.log.Debugf("unknown message %q", msg)
		return false, nil
	}
}

func (b *Bot) onFrame(msg string) (bool, error) {
	if b.index < 0 {
		return false, nil
	}
	var boards []string
	if err := json.Unmarshal([]byte(msg), &boards); err != nil {
		return false, fmt.Errorf("bot: decode frame: %w", err)
	}
	if b.index >= len(boards) {
		return false, nil
	}
	snap, err := game.Deserialize(boards[b.index], b.cfg.Game.BoardWidth, b.cfg.Game.BoardHeight)
	if err != nil {
		return false, fmt.Errorf("bot: own board: %w", err)
	}
	b.last = snap
	b.frames++

	if err := b.board.Advance(); err != nil {
		return false, err
	}
	if local := b.board.Simulation().BallCount(); local != len(snap.Balls) {
		b.log.Debugf("prediction drift: local=%d server=%d", local, len(snap.Balls))
	}

	if b.frames%b.cfg.Every == 0 && !b.done() {
		half := b.cfg.Game.BoardWidth / 2
		x := b.rng.Float64()*2*half - half
		if err := b.place(x); err != nil {
			return false, err
		}
	}
	return b.done(), nil
}

func (b *Bot) place(x float64) error {
	if err := b.board.RequestPlacing(x); err != nil {
		return err
	}
	if err := b.board.RequestPlace(x); err != nil {
		return err
	}
	if b.err != nil {
		err := b.err
		b.err = nil
		return fmt.Errorf("bot: write: %w", err)
	}
	b.placed++
	return nil
}

func (b *Bot) done() bool { return b.cfg.Moves > 0 && b.placed >= b.cfg.Moves }

var ErrNoURL = errors.New("client: bot url is required")

// Validate 检查机器人参数
func (c BotConfig) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}
	if c.Name == "" {
		return errors.New("client: bot name is required")
	}
	return c.Game.Validate()
}
