package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is the account profile as the messaging surface sees it. Account
// management itself lives elsewhere; this package only reads.
type User struct {
	ID        int64     `json:"id"`
	UUID      uuid.UUID `json:"uuid"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"-"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
