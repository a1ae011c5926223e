package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"doodlesync/client"
	"doodlesync/discovery"
	"doodlesync/draw"
	"doodlesync/logging"
	"doodlesync/paint"
	"doodlesync/protocol"
	"doodlesync/round"
	"doodlesync/sched"
	"doodlesync/server"
	"doodlesync/transport"
)

type options struct {
	mode     string
	addr     string
	lobby    string
	player   string
	avatar   int
	logFile  string
	level    string
	out      string
	tool     draw.Tool
	discover bool
	start    bool
	resume   bool
}

// doodlesync 入口：relay 服务，或作为画手机器人 / 无界面观察者接入
func main() {
	var o options
	flag.StringVar(&o.mode, "mode", "relay", "relay | draw | watch")
	flag.StringVar(&o.addr, "addr", ":8080", "relay listen address, or relay base URL for draw/watch (e.g. http://127.0.0.1:8080)")
	flag.StringVar(&o.lobby, "lobby", "1", "lobby id")
	flag.StringVar(&o.player, "player", "", "player name (draw/watch)")
	flag.IntVar(&o.avatar, "avatar", 0, "avatar index")
	flag.StringVar(&o.logFile, "log", "doodlesync.log", "log file; empty logs to stderr")
	flag.StringVar(&o.level, "level", "info", "log level: debug/info/warn/error")
	flag.StringVar(&o.out, "out", "canvas.png", "watch: snapshot file (.png or .pdf)")
	toolName := flag.String("tool", "brush", "draw: tool for the bot's strokes: brush | eraser")
	flag.BoolVar(&o.discover, "discover", false, "relay: advertise via mDNS; draw/watch: find the relay via mDNS")
	flag.BoolVar(&o.start, "start", false, "draw: ask the relay to start the game after joining")
	flag.BoolVar(&o.resume, "resume", false, "draw/watch: resume a game in progress via REST")
	flag.Parse()

	tool, err := draw.ParseTool(*toolName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	o.tool = tool

	if o.logFile == "" {
		err = logging.InitConsole(o.level)
	} else {
		err = logging.InitLogger(o.logFile, o.level)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer logging.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch o.mode {
	case "relay":
		err = runRelay(ctx, o)
	case "draw", "watch":
		err = runPlayer(ctx, o)
	default:
		err = fmt.Errorf("unknown mode %q", o.mode)
	}
	if err != nil {
		logging.Log.Errorw("exit", "mode", o.mode, "err", err)
		fmt.Fprintln(os.Stderr, err)
		logging.SyncLogger()
		os.Exit(1)
	}
}

func runRelay(ctx context.Context, o options) error {
	lobbies := server.NewManager(server.DefaultLobbyConfig(), nil)
	defer lobbies.Shutdown()
	// 先预创建默认大厅，便于快速试跑
	_ = lobbies.GetOrCreate(o.lobby)

	s := server.NewServer(lobbies, server.NewSessions())
	go s.RunJanitor(ctx, time.Minute, 2*time.Minute)

	srv := &http.Server{Addr: o.addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", o.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if o.discover {
		adv, err := discovery.Advertise("", port, "lobby="+o.lobby)
		if err != nil {
			logging.Log.Warnw("mdns advertise failed", "err", err)
		} else {
			defer adv.Shutdown()
		}
	}

	errc := make(chan error, 1)
	go func() {
		logging.Log.Infof("doodlesync relay listening on %s", ln.Addr())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logging.Log.Info("Shutting down...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func runPlayer(ctx context.Context, o options) error {
	if o.player == "" {
		o.player = o.mode + "-" + strconv.FormatInt(time.Now().Unix()%10000, 10)
	}
	base, err := relayBase(ctx, o)
	if err != nil {
		return err
	}

	cfg := client.DefaultConfig()
	cfg.BaseURL = base
	cfg.Lobby = o.lobby
	cfg.Player = o.player
	cfg.Avatar = o.avatar
	cfg.Resume = o.resume

	rest := client.NewREST(base, &http.Client{Timeout: 5 * time.Second})
	sid, err := rest.CreateSession(ctx, o.player, o.avatar)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	cfg.SessionID = sid

	loop := sched.NewLoop(0)
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	go loop.Run(loopCtx)

	ch, err := transport.Dial(ctx, cfg.WSURL(), transport.Options{
		Lobby:     o.lobby,
		Player:    o.player,
		SessionID: sid,
		OnClose: func(err error) {
			if err != nil {
				logging.Log.Warnw("relay connection lost", "err", err)
			}
		},
	})
	if err != nil {
		return err
	}

	c := client.New(cfg, loop, ch, rest, consoleNotifier{player: o.player})
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()
	if o.start {
		if err := c.StartGame(); err != nil {
			logging.Log.Warnw("start game failed", "err", err)
		}
	}

	if o.mode == "draw" {
		return drawBot(ctx, c, ch, o.tool)
	}
	return watch(ctx, c, ch, o.out)
}

func relayBase(ctx context.Context, o options) (string, error) {
	if !o.discover {
		if strings.HasPrefix(o.addr, "http://") || strings.HasPrefix(o.addr, "https://") {
			return o.addr, nil
		}
		host := o.addr
		if strings.HasPrefix(host, ":") {
			host = "127.0.0.1" + host
		}
		return "http://" + host, nil
	}
	relays, err := discovery.Browse(ctx, 3*time.Second)
	if err != nil {
		return "", err
	}
	if len(relays) == 0 {
		return "", errors.New("no relay found via mDNS")
	}
	logging.Log.Infow("relay discovered", "instance", relays[0].Instance, "url", relays[0].URL())
	return "http://" + relays[0].Addr, nil
}

// consoleNotifier 把对局提示打到终端
type consoleNotifier struct{ player string }

func (n consoleNotifier) Info(m round.Message) {
	if m.User != "" {
		fmt.Printf("[%s] %s %s\n", n.player, m.User, m.Text)
		return
	}
	fmt.Printf("[%s] %s\n", n.player, m.Text)
}

func (n consoleNotifier) Warn(text string) { fmt.Printf("[%s] warning: %s\n", n.player, text) }
func (n consoleNotifier) Exit(reason string) { fmt.Printf("[%s] %s\n", n.player, reason) }

// drawBot 轮到自己时画一个螺旋，然后等待下一回合
func drawBot(ctx context.Context, c *client.Client, ch *transport.WS, tool draw.Tool) error {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	drawn := ""
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch.Done():
			return errors.New("relay connection closed")
		case <-c.Exited():
			return errors.New(c.ExitReason())
		case <-t.C:
		}
		v := c.View()
		if v.Phase == round.GameOver {
			logging.Log.Infow("game over", "scores", v.Scores)
			return nil
		}
		if v.Phase != round.DrawerActive || v.Word == drawn {
			continue
		}
		drawn = v.Word
		logging.Log.Infow("drawing", "word", v.Word)
		if err := spiral(ctx, c, tool); err != nil {
			return nil
		}
	}
}

func spiral(ctx context.Context, c *client.Client, tool draw.Tool) error {
	cx, cy := 400.0, 300.0
	for i, col := range draw.Palette[:4] {
		_ = c.SetColor(col)
		c.SelectTool(tool)
		c.PointerDown(protocol.Point{X: cx, Y: cy})
		for step := 0; step < 90; step++ {
			a := float64(step) * math.Pi / 15
			r := float64(step)*2 + float64(i)*40
			c.PointerMove(protocol.Point{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
			select {
			case <-ctx.Done():
				c.PointerUp()
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
			}
		}
		c.PointerUp()
	}
	c.SelectTool(draw.ToolFill)
	_ = c.SetColor("#fbee4e")
	c.PointerDown(protocol.Point{X: 20, Y: 20})
	c.PointerUp()
	return nil
}

// watch 无界面猜词者：每个回合结束以及退出时把画布写入文件
func watch(ctx context.Context, c *client.Client, ch *transport.WS, out string) error {
	t := time.NewTicker(500 * time.Millisecond)
	defer t.Stop()
	defer func() {
		if err := snapshot(c, out); err != nil {
			logging.Log.Warnw("snapshot failed", "out", out, "err", err)
		}
	}()
	last := round.WaitingForGameStart
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ch.Done():
			return errors.New("relay connection closed")
		case <-c.Exited():
			return errors.New(c.ExitReason())
		case <-t.C:
		}
		v := c.View()
		if v.Phase == round.RoundOver && last != round.RoundOver {
			if err := snapshot(c, out); err != nil {
				logging.Log.Warnw("snapshot failed", "out", out, "err", err)
			}
			logging.Log.Infow("round over", "word", v.Overlay.Word, "metrics", c.Metrics())
		}
		last = v.Phase
		if v.Phase == round.GameOver {
			return nil
		}
	}
}

func snapshot(c *client.Client, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	img := c.Snapshot()
	if img == nil {
		f.Close()
		return errors.New("canvas unavailable")
	}
	if strings.EqualFold(filepath.Ext(out), ".pdf") {
		err = paint.WritePDF(f, img, "doodlesync canvas")
	} else {
		err = paint.WritePNG(f, img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
