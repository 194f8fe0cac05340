package problem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// FileSource serves problems from a JSON file mapping topic names to
// problem pools:
//
//	{"biology": [{"problem": "...", "options": [...], "answer": 2}, ...]}
//
// The file is read once at construction; pools are immutable afterwards.
type FileSource struct {
	pools map[string][]Problem
}

var _ Source = (*FileSource)(nil)

// NewFileSource loads path and indexes its pools by topic.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems file: %w", err)
	}

	pools := make(map[string][]Problem)
	if err := json.Unmarshal(data, &pools); err != nil {
		return nil, fmt.Errorf("parse problems file: %w", err)
	}
	for topic, pool := range pools {
		for i, p := range pool {
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("problems file %s: topic %s entry %d: %w", path, topic, i, err)
			}
		}
	}
	return &FileSource{pools: pools}, nil
}

// Problems returns the pool for topic, filtered to Level <= maxLevel when
// maxLevel is positive.
func (f *FileSource) Problems(_ context.Context, topic string, maxLevel int) ([]Problem, error) {
	pool, ok := f.pools[topic]
	if !ok {
		return nil, &UnknownTopicError{Topic: topic}
	}

	if maxLevel <= 0 {
		out := make([]Problem, len(pool))
		copy(out, pool)
		return out, nil
	}

	var out []Problem
	for _, p := range pool {
		if p.Level == 0 || p.Level <= maxLevel {
			out = append(out, p)
		}
	}
	return out, nil
}
