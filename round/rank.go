package round

import "sort"

// Badge 计分板徽章
type Badge string

const (
	BadgeGold     Badge = "gold"
	BadgeSilver   Badge = "silver"
	BadgeNegative Badge = "negative"
	BadgeDefault  Badge = "default"
)

// Score 玩家得分
type Score struct {
	Name  string
	Score int
}

// Ranked 排名结果；相同分数名次相同，名次连续（1,1,2）
type Ranked struct {
	Score
	Rank  int
	Badge Badge
}

// SortScores 按分数降序，同分按名字
func SortScores(scores map[string]int) []Score {
	out := make([]Score, 0, len(scores))
	for name, s := range scores {
		out = append(out, Score{Name: name, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Rank 稠密排名并计算徽章
func Rank(scores map[string]int) []Ranked {
	sorted := SortScores(scores)
	out := make([]Ranked, 0, len(sorted))
	rank := 0
	for i, s := range sorted {
		if i == 0 || s.Score != sorted[i-1].Score {
			rank++
		}
		out = append(out, Ranked{Score: s, Rank: rank, Badge: badgeFor(s.Score, sorted)})
	}
	return out
}

// Podium 前三名（可能多于三人）
func Podium(ranked []Ranked) []Ranked {
	var out []Ranked
	for _, r := range ranked {
		if r.Rank <= 3 {
			out = append(out, r)
		}
	}
	return out
}

// badgeFor 最高分金色，第二个分数（非去重）银色，负分单独标记
func badgeFor(score int, sorted []Score) Badge {
	if len(sorted) == 0 {
		return BadgeDefault
	}
	second := 0
	if len(sorted) > 1 {
		second = sorted[1].Score
	}
	switch {
	case score == sorted[0].Score:
		return BadgeGold
	case score == second:
		return BadgeSilver
	case score < 0:
		return BadgeNegative
	}
	return BadgeDefault
}
