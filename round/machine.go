// Package round 实现回合/轮次状态机：决定谁在画、驱动倒计时和环境重置
package round

import (
	"fmt"
	"time"

	"doodlesync/logging"
	"doodlesync/protocol"
	"doodlesync/sched"
)

// Phase 由当前状态推导出的阶段
type Phase int

const (
	WaitingForGameStart Phase = iota
	WaitingForDrawer
	DrawerActive
	GuesserActive
	AwaitingServer
	RoundOver
	GameOver
)

func (p Phase) String() string {
	switch p {
	case WaitingForGameStart:
		return "waiting-for-game-start"
	case WaitingForDrawer:
		return "waiting-for-drawer"
	case DrawerActive:
		return "drawer-active"
	case GuesserActive:
		return "guesser-active"
	case AwaitingServer:
		return "awaiting-server"
	case RoundOver:
		return "round-over"
	case GameOver:
		return "game-over"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Stage 画布侧的角色切换
type Stage interface {
	BecomeDrawer(resumed bool)
	BecomeGuesser(resumed bool)
	ResetEnvironment()
	ClearCanvas()
}

// Notifier 面向用户的提示；Exit 是唯一会让用户离开对局的路径
type Notifier interface {
	Info(msg Message)
	Warn(text string)
	Exit(reason string)
}

// DrawerAcker 收到词后回执服务端
type DrawerAcker interface {
	AckDrawer()
}

// Message 对局内的聊天式提示
type Message struct {
	Kind string `json:"kind"` // new-round / correctly / incorrectly / close / game-over
	User string `json:"user,omitempty"`
	Text string `json:"text"`
}

// Overlay 回合结束遮罩的内容
type Overlay struct {
	Word    string
	Caption string
}

type Config struct {
	OverlayDuration  time.Duration // 遮罩显示时长
	WordOverlay      time.Duration // 画手词提示时长
	ServerTimeout    time.Duration // 倒计时结束后等待服务端的告警间隔
	GameStartTimeout time.Duration // 进入页面后等待第一条游戏状态的时长
	TickInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		OverlayDuration:  5 * time.Second,
		WordOverlay:      5 * time.Second,
		ServerTimeout:    10 * time.Second,
		GameStartTimeout: 20 * time.Second,
		TickInterval:     time.Second,
	}
}

const (
	warnServerText = "Looks like there is a problem. Waiting a little longer..."
	exitServerText = "We have a problem with the connection. Leaving the game."
	exitStartText  = "The game did not start. Leaving the game."
)

// Machine 回合状态机；所有方法必须在同一个事件循环上调用
type Machine struct {
	cfg    Config
	sched  sched.Scheduler
	stage  Stage
	notify Notifier
	acker  DrawerAcker

	session *RoundSession

	started    bool
	gameOver   bool
	closed     bool
	resumed    bool
	firstRound bool

	state          protocol.GameState
	totalRounds    int
	timePerDrawing int
	scores         []Score
	messages       []Message

	overlay      *Signal
	overlayInfo  Overlay
	overlayTimer sched.Timer
	startTimer   sched.Timer
}

func NewMachine(cfg Config, s sched.Scheduler, stage Stage, notify Notifier, acker DrawerAcker) *Machine {
	def := DefaultConfig()
	if cfg.OverlayDuration <= 0 {
		cfg.OverlayDuration = def.OverlayDuration
	}
	if cfg.WordOverlay <= 0 {
		cfg.WordOverlay = def.WordOverlay
	}
	if cfg.ServerTimeout <= 0 {
		cfg.ServerTimeout = def.ServerTimeout
	}
	if cfg.GameStartTimeout <= 0 {
		cfg.GameStartTimeout = def.GameStartTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	return &Machine{
		cfg:        cfg,
		sched:      s,
		stage:      stage,
		notify:     notify,
		acker:      acker,
		session:    newSession(1),
		firstRound: true,
	}
}

// Start 进入对局页面：准备猜词者环境并开始等待第一条游戏状态
func (m *Machine) Start() {
	if m.closed {
		return
	}
	m.stage.BecomeGuesser(false)
	stopTimer(&m.startTimer)
	m.startTimer = m.sched.AfterFunc(m.cfg.GameStartTimeout, func() {
		m.startTimer = nil
		if !m.started && !m.closed {
			logging.Log.Warnw("no game state received", "timeout", m.cfg.GameStartTimeout)
			m.notify.Exit(exitStartText)
		}
	})
}

// OnGameState 订阅推送的新回合状态
func (m *Machine) OnGameState(gs protocol.GameState) {
	if m.closed || m.gameOver {
		return
	}
	m.resumed = false
	if !m.applyState(gs) {
		return
	}
	m.stage.ClearCanvas()
	m.handleCountdown(gs.RoundTime, true)
}

// Resume 断线恢复：RoundTime 为剩余秒数，不扣遮罩时间，立即开始倒计时
func (m *Machine) Resume(gs protocol.GameState, info protocol.DrawerInfo) {
	if m.closed || m.gameOver {
		return
	}
	m.resumed = true
	if !m.applyState(gs) {
		return
	}
	m.handleCountdown(gs.RoundTime, false)

	if info.IsDrawer {
		m.session.hasWord = true
		m.session.isDrawer = true
		m.session.word = info.WordToDraw
		m.stage.BecomeDrawer(true)
		return
	}
	m.stage.BecomeGuesser(true)
}

// applyState 记录状态；返回 false 表示游戏已结束
func (m *Machine) applyState(gs protocol.GameState) bool {
	stopTimer(&m.startTimer)
	if !m.started {
		m.started = true
		m.totalRounds = gs.RemainingRounds
	}
	m.state = gs
	m.scores = SortScores(gs.PlayerScores)

	if gs.RemainingRounds == 0 {
		m.finish()
		return false
	}
	return true
}

func (m *Machine) handleCountdown(roundTime int, fromSubscription bool) {
	s := m.session
	s.stopCountdown()

	pure := roundTime
	if fromSubscription {
		pure = PureRoundTime(m.firstRound, roundTime, m.cfg.OverlayDuration)
		m.timePerDrawing = pure
	} else if m.timePerDrawing == 0 {
		m.timePerDrawing = roundTime
	}
	wait := OverlayWait(m.firstRound, m.cfg.OverlayDuration)
	m.firstRound = false
	s.remaining = pure

	if !fromSubscription {
		s.waitingForDrawer = false
		m.pushMessage(Message{Kind: "new-round", Text: "New drawing. Get ready to guess!"})
		m.startRoundTimer(s)
		return
	}

	s.waitingForDrawer = true
	s.countdownStart = m.sched.AfterFunc(wait, func() {
		s.countdownStart = nil
		s.waitingForDrawer = false
		m.stage.ClearCanvas()
		m.pushMessage(Message{Kind: "new-round", Text: "New drawing. Get ready to guess!"})
		m.startRoundTimer(s)
	})
}

func (m *Machine) startRoundTimer(s *RoundSession) {
	s.ticker = m.sched.Every(m.cfg.TickInterval, func() {
		if s.remaining > 0 {
			s.remaining--
			return
		}
		m.waitForServer(s)
	})
}

// waitForServer 倒计时归零但还没有收到回合切换：先告警，再退出
func (m *Machine) waitForServer(s *RoundSession) {
	stopTimer(&s.ticker)
	s.awaitingServer = true
	logging.Log.Infow("round time is up, waiting for server", "remainingRounds", m.state.RemainingRounds)

	delay := m.cfg.ServerTimeout
	s.warnTimer = m.sched.AfterFunc(delay, func() {
		s.warnTimer = nil
		if s.awaitingServer {
			m.notify.Warn(warnServerText)
		}
		s.exitTimer = m.sched.AfterFunc(delay, func() {
			s.exitTimer = nil
			if s.awaitingServer {
				logging.Log.Warnw("server did not respond after round end", "waited", 2*delay)
				m.notify.Exit(exitServerText)
			}
		})
	})
}

// OnWordAssigned 画手收到要画的词；每次都回 ack，重复消息不再激活；遮罩显示期间推迟激活
func (m *Machine) OnWordAssigned(word string) {
	if m.closed || m.gameOver {
		return
	}
	// 中继在确认前会一直重发，断线恢复后也是如此
	if m.acker != nil {
		m.acker.AckDrawer()
	}
	s := m.session
	if s.hasWord {
		logging.Log.Debugw("duplicate word message ignored")
		return
	}
	s.hasWord = true

	if m.overlay == nil {
		m.becomeDrawer(s, word)
	} else {
		m.overlay.Wait(func() {
			// 期间发生过环境重置则放弃
			if m.session != s || m.closed || m.gameOver {
				return
			}
			m.becomeDrawer(s, word)
		})
	}
}

func (m *Machine) becomeDrawer(s *RoundSession, word string) {
	s.isDrawer = true
	s.word = word
	m.stage.BecomeDrawer(m.resumed)

	s.wordOverlay = true
	stopTimer(&s.wordTimer)
	s.wordTimer = m.sched.AfterFunc(m.cfg.WordOverlay, func() {
		s.wordTimer = nil
		s.wordOverlay = false
	})
}

// OnGuessOutcome 猜词结果通知
func (m *Machine) OnGuessOutcome(o protocol.GuessOutcome) {
	if m.closed || m.gameOver {
		return
	}
	m.session.stopServerWait()

	switch o.Status {
	case protocol.GuessCorrect:
		m.pushMessage(Message{Kind: "correctly", User: o.UserThatGuessed,
			Text: fmt.Sprintf("guessed the word correctly! The word was %s.", o.Word)})
		m.resetEnvironment()
		m.showOverlay(Overlay{Word: o.Word, Caption: o.UserThatGuessed + " has guessed correctly. The word was:"})
	case protocol.GuessIncorrect:
		if o.Close {
			m.pushMessage(Message{Kind: "close", User: o.UserThatGuessed, Text: "is close!"})
			return
		}
		m.pushMessage(Message{Kind: "incorrectly", User: o.UserThatGuessed,
			Text: "guessed the word incorrectly."})
	case protocol.GuessTimeout:
		m.showOverlay(Overlay{Word: o.Word, Caption: "Oops! Time is up. The word was:"})
		m.resetEnvironment()
	default:
		logging.Log.Warnw("unknown guess status", "status", o.Status)
	}
}

func (m *Machine) showOverlay(info Overlay) {
	m.overlayInfo = info
	if m.overlay == nil {
		m.overlay = NewSignal()
	}
	stopTimer(&m.overlayTimer)
	m.overlayTimer = m.sched.AfterFunc(m.cfg.OverlayDuration, m.closeOverlay)
}

func (m *Machine) closeOverlay() {
	m.overlayTimer = nil
	sig := m.overlay
	m.overlay = nil
	m.overlayInfo = Overlay{}
	if sig != nil {
		sig.Fire()
	}
}

// resetEnvironment 退出画手模式，丢弃笔画与词，取消本回合全部定时器
func (m *Machine) resetEnvironment() {
	old := m.session
	old.stopAll()
	m.session = newSession(old.gen + 1)
	m.stage.ResetEnvironment()
}

func (m *Machine) finish() {
	m.gameOver = true
	m.resetEnvironment()
	stopTimer(&m.overlayTimer)
	m.overlay = nil
	m.overlayInfo = Overlay{}
	m.pushMessage(Message{Kind: "game-over", Text: "The game is over."})
	logging.Log.Infow("game over", "totalRounds", m.totalRounds)
}

// Close 断开：重置环境并取消所有定时器；之后的输入全部忽略
func (m *Machine) Close() {
	if m.closed {
		return
	}
	m.resetEnvironment()
	stopTimer(&m.overlayTimer)
	stopTimer(&m.startTimer)
	m.overlay = nil
	m.closed = true
}

func (m *Machine) pushMessage(msg Message) {
	m.messages = append(m.messages, msg)
	m.notify.Info(msg)
}

// Phase 当前阶段
func (m *Machine) Phase() Phase {
	s := m.session
	switch {
	case m.gameOver || m.closed:
		return GameOver
	case !m.started:
		return WaitingForGameStart
	case m.overlay != nil:
		return RoundOver
	case s.awaitingServer:
		return AwaitingServer
	case s.waitingForDrawer:
		return WaitingForDrawer
	case s.isDrawer:
		return DrawerActive
	}
	return GuesserActive
}

func (m *Machine) IsDrawer() bool { return m.session.isDrawer }
func (m *Machine) Word() string { return m.session.word }
func (m *Machine) WordOverlayShown() bool { return m.session.wordOverlay }
func (m *Machine) Remaining() int { return m.session.remaining }
func (m *Machine) AwaitingServer() bool { return m.session.awaitingServer }
func (m *Machine) State() protocol.GameState { return m.state }
func (m *Machine) TotalRounds() int { return m.totalRounds }
func (m *Machine) TimePerDrawing() int { return m.timePerDrawing }
func (m *Machine) Scores() []Score { return m.scores }
func (m *Machine) Messages() []Message { return m.messages }

// Overlay 当前遮罩；第二个返回值表示是否显示
func (m *Machine) Overlay() (Overlay, bool) { return m.overlayInfo, m.overlay != nil }

// Progress 当前倒计时进度
func (m *Machine) Progress() (float64, Band) {
	return Progress(m.session.remaining, m.timePerDrawing)
}

// DrawingsInRound 本轮已经轮到的画手数
func (m *Machine) DrawingsInRound() int { return m.state.CurrentDrawerIndex + 1 }
