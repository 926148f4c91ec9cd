// AngelaMos | 2026
// entity.go

package content

import (
	"encoding/json"
	"time"
)

type Sound struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	PackID       *int64    `db:"pack_id"`
	Filename     string    `db:"filename"`
	Description  string    `db:"description"`
	License      string    `db:"license"`
	NumDownloads int       `db:"num_downloads"`
	NumComments  int       `db:"num_comments"`
	IsIndexDirty bool      `db:"is_index_dirty"`
	CreatedAt    time.Time `db:"created_at"`
}

// DeletedSound is the tombstone left behind when a sound row is removed.
// Data holds a snapshot of the sound taken just before removal.
type DeletedSound struct {
	ID        int64           `db:"id"`
	SoundID   int64           `db:"sound_id"`
	UserID    *int64          `db:"user_id"`
	Data      json.RawMessage `db:"data"`
	CreatedAt time.Time       `db:"created_at"`
}

// SoundRemoval describes what RemoveSounds took away.
type SoundRemoval struct {
	SoundIDs         []int64
	Tombstoned       int64
	DownloadsRemoved int64
}

// SocialRemoval counts the rows RemoveSocialContent deleted.
type SocialRemoval struct {
	Comments       int64 `json:"comments"`
	Posts          int64 `json:"posts"`
	ForeignPosts   int64 `json:"foreign_posts"`
	Threads        int64 `json:"threads"`
	Downloads      int64 `json:"downloads"`
	PackDownloads  int64 `json:"pack_downloads"`
	ForeignPackDLs int64 `json:"foreign_pack_downloads"`
	Packs          int64 `json:"packs"`
}
