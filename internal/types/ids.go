package types

import (
	"time"

	"github.com/google/uuid"
)

// NewStrategyID generates a UUIDv7 strategy identifier.
// Time-ordered IDs make creation order and id order agree.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewStrategyID() StrategyID {
	return StrategyID(uuid.Must(uuid.NewV7()).String())
}

// ParseStrategyID validates and converts a string to StrategyID.
func ParseStrategyID(s string) (StrategyID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return StrategyID(s), nil
}

// StrategyIDTime extracts the creation timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func StrategyIDTime(id StrategyID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
