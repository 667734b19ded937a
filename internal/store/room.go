package store

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Room: catalogue entry for a whiteboard. The websocket core never reads it;
// the id is what clients pass as roomId.
type Room struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Slug      string    `json:"slug" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" gorm:"not null"`
	AdminID   string    `json:"adminId" gorm:"not null;index;column:admin_id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository: room catalogue persistence
type Repository interface {
	Create(ctx context.Context, room *Room) (*Room, error)
	FindBySlug(ctx context.Context, slug string) (*Room, error)
	ListByAdmin(ctx context.Context, adminID string) ([]Room, error)
}

// NewRoom: fills id, slug and creation time for a room named name
func NewRoom(name, adminID string) *Room {
	id := uuid.NewString()
	return &Room{
		ID:        id,
		Slug:      Slugify(name) + "-" + id[:8],
		Name:      strings.TrimSpace(name),
		AdminID:   adminID,
		CreatedAt: time.Now().UTC(),
	}
}

// Slugify: lowercase ascii letters and digits joined by single dashes
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "room"
	}
	return slug
}
