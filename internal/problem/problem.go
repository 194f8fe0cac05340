// Package problem supplies quiz problems to battle rounds: a Source pulls
// the pool for a topic, and the Randomizer samples and shuffles problems
// for one session.
package problem

import (
	"context"
	"fmt"
)

// Problem is one multiple-choice quiz item as loaded from the source.
// Immutable once loaded; Randomize works on copies.
type Problem struct {
	Text    string   `json:"problem"`
	Options []string `json:"options"`
	// Answer indexes Options at the correct choice.
	Answer int `json:"answer"`
	// Level is an optional difficulty rank; 0 means unranked.
	Level int `json:"level,omitempty"`
}

// Validate checks that the problem can be served: Randomize indexes
// Options at Answer, so a bad index from a corrupted pool must be caught
// at the source instead of panicking mid-pairing.
func (p Problem) Validate() error {
	if len(p.Options) == 0 {
		return fmt.Errorf("problem %q has no options", p.Text)
	}
	if p.Answer < 0 || p.Answer >= len(p.Options) {
		return fmt.Errorf("problem %q: answer index %d out of range for %d options", p.Text, p.Answer, len(p.Options))
	}
	return nil
}

// UnknownTopicError reports a topic with no problem pool. The topic name
// is part of the user-visible error message.
type UnknownTopicError struct {
	Topic string
}

func (e *UnknownTopicError) Error() string {
	return fmt.Sprintf("challenge '%s' has no problems", e.Topic)
}

// Source returns the problem pool for a topic. maxLevel bounds problem
// difficulty when positive; 0 disables the bound. Implementations return
// *UnknownTopicError when the topic has no pool at all.
type Source interface {
	Problems(ctx context.Context, topic string, maxLevel int) ([]Problem, error)
}
