package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory for database-less runs and
// tests. Unknown usernames are created on first sight, like the real one.
type MemoryDirectory struct {
	mu    sync.Mutex
	users map[string]User
}

var _ Directory = (*MemoryDirectory)(nil)

// NewMemoryDirectory seeds a directory; the map keys are usernames and
// the values display names. A nil map is fine.
func NewMemoryDirectory(names map[string]string) *MemoryDirectory {
	users := make(map[string]User, len(names))
	for username, name := range names {
		users[username] = User{ID: uuid.New(), Username: username, Name: name}
	}
	return &MemoryDirectory{users: users}
}

func (d *MemoryDirectory) GetOrCreate(_ context.Context, username string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[username]; ok {
		return u, nil
	}
	u := User{ID: uuid.New(), Username: username, Name: defaultName}
	d.users[username] = u
	return u, nil
}
