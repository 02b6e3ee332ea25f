package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

type User struct {
	ID    string
	Name  string
	Email string
}

type Repository interface {
	FindByID(ctx context.Context, id string) (*User, error)
}
