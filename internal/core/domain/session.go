package domain

import (
	"time"
)

// Session binds one uploaded table, and later its latest cleaning result,
// to an opaque id. A fresh session is issued for every upload.
type Session struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	Format          FileFormat `json:"format"`
	FileSize        int64      `json:"file_size"`
	FileHash        string     `json:"file_hash"`
	Table           *Table     `json:"table"`
	DetectedColumns []string   `json:"detected_columns"`
	CreatedAt       time.Time  `json:"created_at"`
	LastActivity    time.Time  `json:"last_activity"`
	ExpiresAt       time.Time  `json:"expires_at"`
}

// Touch records activity and pushes the idle expiry forward
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	s.LastActivity = now
	s.ExpiresAt = now.Add(ttl)
}

// IsExpired checks if the session has been idle past its expiry
func (s *Session) IsExpired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return now.After(s.ExpiresAt)
}
