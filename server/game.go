package server

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"doodlesync/logging"
	"doodlesync/protocol"
)

// turn 一位画手的一次绘画
type turn struct {
	drawer     PlayerID
	word       string
	roundTime  int // 秒，含遮罩
	deadline   time.Time
	acked      bool
	wordSentAt time.Time
}

func (t *turn) remainingSeconds(now time.Time) int {
	left := t.deadline.Sub(now).Seconds()
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left))
}

// game 一局游戏：轮数、当前画手、得分
type game struct {
	remainingRounds int
	drawerIndex     int
	firstTurn       bool
	turn            *turn
	scores          map[PlayerID]int
	over            bool
}

func (l *Lobby) startGame(m *Member, now time.Time) {
	if l.game != nil && !l.game.over {
		logging.Log.Debugw("start ignored, game running", "lobby", l.ID, "player", m.ID)
		return
	}
	if online := l.onlineCount(); online < l.cfg.MinPlayers {
		logging.Log.Infow("start ignored, not enough players", "lobby", l.ID, "online", online, "need", l.cfg.MinPlayers)
		return
	}
	rounds := l.cfg.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	g := &game{
		remainingRounds: rounds,
		drawerIndex:     -1,
		firstTurn:       true,
		scores:          make(map[PlayerID]int, len(l.order)),
	}
	for _, id := range l.order {
		g.scores[id] = 0
	}
	l.game = g
	logging.Log.Infow("game started", "lobby", l.ID, "by", m.ID, "rounds", rounds, "players", len(l.order))
	l.advance(now)
}

// advance 轮到下一位在线画手；一轮结束扣减剩余轮数，归零则结束
func (l *Lobby) advance(now time.Time) {
	g := l.game
	g.turn = nil
	for {
		if len(l.order) == 0 {
			l.finishGame()
			return
		}
		g.drawerIndex++
		if g.drawerIndex >= len(l.order) {
			g.drawerIndex = 0
			g.remainingRounds--
		}
		if g.remainingRounds <= 0 {
			l.finishGame()
			return
		}
		// 离线的画手直接跳过，每跳过一整圈都会扣减轮数，循环必然结束
		if m := l.members[l.order[g.drawerIndex]]; m.Online() {
			l.beginTurn(m, now)
			return
		}
	}
}

func (l *Lobby) beginTurn(drawer *Member, now time.Time) {
	g := l.game
	rt := l.cfg.roundTime(g.firstTurn)
	g.firstTurn = false
	g.turn = &turn{
		drawer:    drawer.ID,
		word:      l.words.Pick(),
		roundTime: rt,
		deadline:  now.Add(time.Duration(rt) * time.Second),
	}
	l.history = nil

	l.publish(protocol.GameStateTopic(l.ID), l.stateFor(rt))
	l.sendWord(now)
	logging.Log.Infow("turn started", "lobby", l.ID, "drawer", drawer.ID, "remainingRounds", g.remainingRounds, "roundTime", rt)
}

func (l *Lobby) sendWord(now time.Time) {
	t := l.game.turn
	m := l.members[t.drawer]
	if m == nil || !m.Online() {
		return
	}
	t.wordSentAt = now
	l.sendTo(m, protocol.QueueWord, protocol.WordAssignment{Word: t.word})
}

func (l *Lobby) handleAck(m *Member) {
	if g := l.game; g != nil && g.turn != nil && g.turn.drawer == m.ID {
		g.turn.acked = true
	}
}

func (l *Lobby) finishGame() {
	g := l.game
	g.over = true
	g.turn = nil
	l.history = nil
	l.publish(protocol.GameStateTopic(l.ID), l.stateFor(0))
	logging.Log.Infow("game over", "lobby", l.ID, "scores", g.scores)
}

func (l *Lobby) stateFor(roundTime int) protocol.GameState {
	g := l.game
	gs := protocol.GameState{
		RoundTime:       roundTime,
		RemainingRounds: max(g.remainingRounds, 0),
		Players:         l.players(),
		PlayerScores:    make(map[string]int, len(g.scores)),
	}
	if g.over {
		gs.RemainingRounds = 0
	}
	if g.drawerIndex >= 0 {
		gs.CurrentDrawerIndex = g.drawerIndex
	}
	if g.turn != nil {
		gs.DrawerName = string(g.turn.drawer)
	}
	for id, s := range g.scores {
		gs.PlayerScores[string(id)] = s
	}
	return gs
}

func (l *Lobby) handleGuess(m *Member, body json.RawMessage, now time.Time) {
	g := l.game
	if g == nil || g.turn == nil || g.turn.drawer == m.ID {
		return
	}
	var in protocol.Guess
	if err := json.Unmarshal(body, &in); err != nil {
		l.metrics.IncMalformed()
		return
	}
	guess := strings.ToLower(strings.TrimSpace(in.Guess))
	if guess == "" {
		return
	}

	t := g.turn
	dist := levenshtein.ComputeDistance(guess, strings.ToLower(t.word))
	switch {
	case dist == 0:
		left := min(t.remainingSeconds(now), l.cfg.DrawSeconds)
		g.scores[m.ID] += 100 + left
		g.scores[t.drawer] += 50
		l.metrics.IncCorrect()
		l.publish(protocol.GuessTopic(l.ID), protocol.GuessOutcome{
			Status: protocol.GuessCorrect, UserThatGuessed: string(m.ID), Word: t.word,
		})
		l.advance(now)
	case dist <= l.cfg.CloseDistance:
		l.metrics.IncClose()
		l.publish(protocol.GuessTopic(l.ID), protocol.GuessOutcome{
			Status: protocol.GuessIncorrect, UserThatGuessed: string(m.ID), Word: in.Guess, Close: true,
		})
	default:
		l.publish(protocol.GuessTopic(l.ID), protocol.GuessOutcome{
			Status: protocol.GuessIncorrect, UserThatGuessed: string(m.ID), Word: in.Guess,
		})
	}
}

// UpdateGame 回合超时与词重发
func (l *Lobby) UpdateGame(now time.Time) {
	g := l.game
	if g == nil || g.turn == nil {
		return
	}
	t := g.turn
	if !now.Before(t.deadline) {
		l.metrics.IncTimedOut()
		l.publish(protocol.GuessTopic(l.ID), protocol.GuessOutcome{Status: protocol.GuessTimeout, Word: t.word})
		l.advance(now)
		return
	}
	if !t.acked && now.Sub(t.wordSentAt) >= l.cfg.wordResend() {
		l.sendWord(now)
	}
}
