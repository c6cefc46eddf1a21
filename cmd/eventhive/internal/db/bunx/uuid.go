package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string for session primary keys.
// Sessions sort by creation time in the index without a separate column.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
