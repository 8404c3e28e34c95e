package domain

import "time"

// Identity is a provider-side account. The task core never mutates
// identities; it only resolves them for authorization.
type Identity struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// User is the application account row, keyed by the provider-issued
// identity id. Created on registration, never mutated afterwards.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}
