package domain

import "time"

// Collection is a named, manually ordered subset of one reader's library.
// Membership lives in the collection's scope, not on the struct.
type Collection struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}
