package server

import (
	"math/rand"
	"sync"
	"time"
)

// WordSource 为每个回合挑选要画的词
type WordSource interface {
	Pick() string
}

var defaultWords = []string{
	"apple", "bicycle", "castle", "dolphin", "elephant", "guitar", "house",
	"island", "kite", "lighthouse", "mountain", "octopus", "penguin", "rainbow",
	"rocket", "snowman", "sunflower", "tree", "umbrella", "volcano", "whale",
}

// WordBank 随机词库，不会连续给出同一个词
type WordBank struct {
	mu    sync.Mutex
	words []string
	rnd   *rand.Rand
	last  string
}

func NewWordBank(words []string, seed int64) *WordBank {
	if len(words) == 0 {
		words = defaultWords
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &WordBank{words: words, rnd: rand.New(rand.NewSource(seed))}
}

func (b *WordBank) Pick() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	w := b.words[b.rnd.Intn(len(b.words))]
	if w == b.last && len(b.words) > 1 {
		w = b.words[(b.rnd.Intn(len(b.words)-1)+indexOf(b.words, w)+1)%len(b.words)]
	}
	b.last = w
	return w
}

func indexOf(words []string, w string) int {
	for i, x := range words {
		if x == w {
			return i
		}
	}
	return 0
}
