package protocol

// GuessStatus 猜词结果
type GuessStatus string

const (
	GuessCorrect   GuessStatus = "correctly"
	GuessIncorrect GuessStatus = "incorrectly"
	GuessTimeout   GuessStatus = "timeout"
)

// Player 大厅中的玩家
type Player struct {
	Username string `json:"username"`
	Avatar   int    `json:"avatar"`
}

// GameState 回合/游戏状态快照（topic 广播给所有人）
type GameState struct {
	DrawerName         string         `json:"drawerName"`
	RoundTime          int            `json:"roundTime"` // 秒，含遮罩时间
	RemainingRounds    int            `json:"remainingRounds"`
	CurrentDrawerIndex int            `json:"currentDrawerIndex"`
	Players            []Player       `json:"players"`
	PlayerScores       map[string]int `json:"playerScores,omitempty"`
}

// WordAssignment 只发给画手的私有消息
type WordAssignment struct {
	Word string `json:"word"`
}

// GuessOutcome 猜词结果通知；Close 表示编辑距离很近但不正确
type GuessOutcome struct {
	Status          GuessStatus `json:"status"`
	UserThatGuessed string      `json:"userThatGuessed"`
	Word            string      `json:"word"`
	Close           bool        `json:"close,omitempty"`
}

// Guess 猜词者发出的文本
type Guess struct {
	Guess string `json:"guess"`
}

// DrawerInfo 断线恢复时查询自己是否为画手
type DrawerInfo struct {
	IsDrawer   bool   `json:"isDrawer"`
	WordToDraw string `json:"wordToDraw,omitempty"`
}
