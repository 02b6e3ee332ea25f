package id

import "github.com/google/uuid"

// UUIDGenerator issues time-ordered v7 ids, falling back to v4 if the clock source fails.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string {
	if v, err := uuid.NewV7(); err == nil {
		return v.String()
	}
	return uuid.NewString()
}
