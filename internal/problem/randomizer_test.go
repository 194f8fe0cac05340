package problem

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRandomizer(seed int64) *Randomizer {
	return NewRandomizer(rand.New(rand.NewSource(seed)))
}

func makePool(n int) []Problem {
	pool := make([]Problem, n)
	for i := range pool {
		pool[i] = Problem{
			Text:    string(rune('a' + i)),
			Options: []string{"w", "x", "y", "z"},
			Answer:  i % 4,
		}
	}
	return pool
}

func TestDrawBounds(t *testing.T) {
	r := newTestRandomizer(1)

	for _, size := range []int{0, 1, 5, 20} {
		pool := makePool(size)
		drawn := r.Draw(pool, 5)

		want := size
		if want > 5 {
			want = 5
		}
		require.Len(t, drawn, want, "pool size %d", size)

		seen := make(map[string]bool)
		for _, p := range drawn {
			assert.False(t, seen[p.Text], "duplicate problem drawn from pool size %d", size)
			seen[p.Text] = true
		}
	}
}

func TestDrawLeavesPoolIntact(t *testing.T) {
	r := newTestRandomizer(2)
	pool := makePool(10)

	first := pool[0].Text
	r.Draw(pool, 10)
	assert.Equal(t, first, pool[0].Text)
	assert.Len(t, pool, 10)
}

func TestRandomizeAnswerIntegrity(t *testing.T) {
	r := newTestRandomizer(3)

	p := Problem{
		Text:    "capital of France?",
		Options: []string{"Lyon", "Paris", "Nice", "Lille"},
		Answer:  1,
	}

	for i := 0; i < 100; i++ {
		got := r.Randomize(p)
		require.Len(t, got.Options, 4)
		assert.Equal(t, "Paris", got.Options[got.Answer], "trial %d", i)
		// Original must stay untouched.
		assert.Equal(t, 1, p.Answer)
		assert.Equal(t, []string{"Lyon", "Paris", "Nice", "Lille"}, p.Options)
	}
}

func TestRandomizeShufflesEventually(t *testing.T) {
	r := newTestRandomizer(4)

	p := Problem{
		Text:    "q",
		Options: []string{"a", "b", "c", "d"},
		Answer:  0,
	}

	moved := false
	for i := 0; i < 50; i++ {
		if got := r.Randomize(p); got.Options[0] != "a" {
			moved = true
			break
		}
	}
	assert.True(t, moved, "50 shuffles never changed option order")
}

// Duplicate option texts make the remap ambiguous: the index is resolved
// by first occurrence of the correct text, so it may name a different
// slot than the one that moved. This pins the behavior down rather than
// hiding it.
func TestRandomizeDuplicateOptionsMatchByValue(t *testing.T) {
	r := newTestRandomizer(5)

	p := Problem{
		Text:    "q",
		Options: []string{"same", "same", "other", "else"},
		Answer:  1,
	}

	for i := 0; i < 100; i++ {
		got := r.Randomize(p)
		require.Equal(t, "same", got.Options[got.Answer])

		// First occurrence wins.
		first := -1
		for j, opt := range got.Options {
			if opt == "same" {
				first = j
				break
			}
		}
		assert.Equal(t, first, got.Answer)
	}
}

// One randomizer is shared by every connection goroutine; concurrent
// rounds draw from it at the same time. Run with -race.
func TestDrawRandomizedConcurrent(t *testing.T) {
	r := newTestRandomizer(7)
	pool := makePool(20)

	var wg sync.WaitGroup
	results := make([][]Problem, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				results[g] = r.DrawRandomized(pool, 5)
			}
		}(g)
	}
	wg.Wait()

	for g, out := range results {
		require.Len(t, out, 5, "goroutine %d", g)
		for _, p := range out {
			require.Len(t, p.Options, 4)
			assert.Contains(t, []string{"w", "x", "y", "z"}, p.Options[p.Answer])
		}
	}
}

func TestDrawRandomized(t *testing.T) {
	r := newTestRandomizer(6)
	pool := makePool(20)

	out := r.DrawRandomized(pool, 5)
	require.Len(t, out, 5)
	for _, p := range out {
		assert.Contains(t, p.Options, p.Options[p.Answer])
		assert.Len(t, p.Options, 4)
	}
}
