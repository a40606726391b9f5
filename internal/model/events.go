package model

import "time"

// ChangeType identifies what changed in the record store
type ChangeType string

const (
	ChangePostCreated   ChangeType = "post_created"
	ChangeLikeChanged   ChangeType = "like_changed"
	ChangePolicyUpdated ChangeType = "policy_updated"
	ChangeForcedLogout  ChangeType = "forced_logout"
)

// ChangeEvent is delivered to subscribers when records change
type ChangeEvent struct {
	Type   ChangeType `json:"type"`
	Handle Handle     `json:"handle,omitempty"`
	PostID PostID     `json:"post_id,omitempty"`
	At     time.Time  `json:"at"`
}
