// AngelaMos | 2026
// entity.go

package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidTransition = errors.New("invalid deletion request status transition")

// Status is the lifecycle stage of a deletion request. Stages only move
// forward; USER_WAS_DELETED is terminal.
type Status string

const (
	StatusReceived       Status = "re"
	StatusWaitingForUser Status = "wa"
	StatusTriggered      Status = "tr"
	StatusUserWasDeleted Status = "de"
)

var statusRank = map[Status]int{
	StatusReceived:       0,
	StatusWaitingForUser: 1,
	StatusTriggered:      2,
	StatusUserWasDeleted: 3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusUserWasDeleted
}

func (s Status) Label() string {
	switch s {
	case StatusReceived:
		return "RECEIVED"
	case StatusWaitingForUser:
		return "WAITING_FOR_USER_CONFIRMATION"
	case StatusTriggered:
		return "DELETION_TRIGGERED"
	case StatusUserWasDeleted:
		return "USER_WAS_DELETED"
	default:
		return string(s)
	}
}

// CanMoveTo reports whether a request in s may be set to next. Staying in
// the same status is allowed.
func (s Status) CanMoveTo(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	if s.Terminal() {
		return next == s
	}
	return to >= from
}

type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}

// StatusHistory is stored as a JSONB array.
type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

func (h *StatusHistory) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*h = StatusHistory{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan status history: unsupported type %T", src)
	}
	return json.Unmarshal(data, h)
}

// Request records who asked for an account to be deleted and how far the
// deletion got. The target ids are plain values so the entry outlives the
// account row.
type Request struct {
	ID            int64         `db:"id"`
	UserFromID    *int64        `db:"user_from_id"`
	UserToID      *int64        `db:"user_to_id"`
	UsernameFrom  string        `db:"username_from"`
	UsernameTo    string        `db:"username_to"`
	Status        Status        `db:"status"`
	StatusHistory StatusHistory `db:"status_history"`
	DeletedUserID *int64        `db:"deleted_user_id"`
	Reason        string        `db:"reason"`
	CreatedAt     time.Time     `db:"created_at"`
	LastUpdated   time.Time     `db:"last_updated"`
}

// RecordStatus appends the current status to the history when it differs
// from persisted, the status last written to storage. An empty persisted
// means the request is new.
func (r *Request) RecordStatus(persisted Status, at time.Time) error {
	if persisted != "" && !persisted.CanMoveTo(r.Status) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, persisted, r.Status)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, r.Status)
	}
	if persisted == r.Status {
		return nil
	}

	r.StatusHistory = append(r.StatusHistory, StatusChange{Status: r.Status, At: at})
	r.LastUpdated = at
	return nil
}

// StaleRequest is an open request joined with the current state of its
// target account.
type StaleRequest struct {
	Request
	TargetExists     bool   `db:"target_exists"`
	TargetAnonymized bool   `db:"target_anonymized"`
	TombstoneID      *int64 `db:"tombstone_id"`
}

// ShouldBeCompleted reports whether the target is already gone from the
// site even though the request never reached USER_WAS_DELETED.
func (s *StaleRequest) ShouldBeCompleted() bool {
	if s.TargetAnonymized {
		return true
	}
	return !s.TargetExists && s.TombstoneID != nil
}

type ListParams struct {
	Page     int
	PageSize int
	Status   Status
	UserToID int64
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		p.PageSize = 20
	}
}

func (p *ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}
