// Package user exposes the narrow slice of the account system the battle
// core needs: resolving a username to a display name, creating the record
// when it does not exist yet.
package user

import (
	"context"

	"github.com/google/uuid"
)

// User is the directory's view of an account.
type User struct {
	ID       uuid.UUID
	Username string
	// Name is the display name shown to the opponent.
	Name string
}

// Directory resolves or creates users by username.
type Directory interface {
	GetOrCreate(ctx context.Context, username string) (User, error)
}
