package problem

import (
	"math/rand"
	"sync"
)

// Randomizer draws and shuffles problems for a session. One instance is
// shared by every connection goroutine, so access to the generator is
// serialized; *rand.Rand is not safe for concurrent use.
type Randomizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomizer builds a randomizer around rng; pass a seeded rand.Rand
// in tests for reproducibility. A nil rng falls back to a time-seeded one.
func NewRandomizer(rng *rand.Rand) *Randomizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Randomizer{rng: rng}
}

// Draw samples min(k, len(pool)) problems uniformly without replacement.
// The pool itself is left untouched.
func (r *Randomizer) Draw(pool []Problem, k int) []Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draw(pool, k)
}

func (r *Randomizer) draw(pool []Problem, k int) []Problem {
	if k > len(pool) {
		k = len(pool)
	}
	if k <= 0 {
		return nil
	}

	idx := r.rng.Perm(len(pool))[:k]
	out := make([]Problem, 0, k)
	for _, i := range idx {
		out = append(out, pool[i])
	}
	return out
}

// Randomize returns a copy of p with options uniformly shuffled and the
// answer index remapped to follow the original correct option.
//
// The remap matches by the text value of the original correct slot. When
// two options share the same text the first occurrence wins, so the
// returned index can name a different slot than the one that moved. Such
// options are interchangeable to the player, so the match is still fair.
func (r *Randomizer) Randomize(p Problem) Problem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.randomize(p)
}

func (r *Randomizer) randomize(p Problem) Problem {
	correctText := p.Options[p.Answer]

	shuffled := make([]string, len(p.Options))
	copy(shuffled, p.Options)
	r.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	answer := 0
	for i, opt := range shuffled {
		if opt == correctText {
			answer = i
			break
		}
	}

	return Problem{
		Text:    p.Text,
		Options: shuffled,
		Answer:  answer,
		Level:   p.Level,
	}
}

// DrawRandomized is the per-session pipeline: sample k problems and
// shuffle each one's options. The generator is held for the whole draw
// so interleaved sessions each get an internally consistent sample.
func (r *Randomizer) DrawRandomized(pool []Problem, k int) []Problem {
	r.mu.Lock()
	defer r.mu.Unlock()

	drawn := r.draw(pool, k)
	out := make([]Problem, 0, len(drawn))
	for _, p := range drawn {
		out = append(out, r.randomize(p))
	}
	return out
}
