package redis

import (
	"fmt"

	"github.com/mcoot/kidfeed/internal/model"
)

// Key prefix for all feed data
const keyPrefix = "kidfeed"

// Key generation functions for each entity type

// accountKey returns the Redis key for an Account
func accountKey(handle model.Handle) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, handle)
}

// postCountKey returns the Redis key for an account's post counter
func postCountKey(handle model.Handle) string {
	return fmt.Sprintf("%s:post_count:%s", keyPrefix, handle)
}

// policyKey returns the Redis key for a child's Policy HASH
func policyKey(child model.Handle) string {
	return fmt.Sprintf("%s:policy:%s", keyPrefix, child)
}

// postKey returns the Redis key for a Post
func postKey(id model.PostID) string {
	return fmt.Sprintf("%s:post:%s", keyPrefix, id)
}

// timelineKey returns the Redis key for the ZSET of posts scored by creation time
func timelineKey() string {
	return fmt.Sprintf("%s:idx:timeline", keyPrefix)
}

// likesKey returns the Redis key for the SET of handles that liked a post
func likesKey(id model.PostID) string {
	return fmt.Sprintf("%s:likes:%s", keyPrefix, id)
}

// userLikesKey returns the Redis key for the SET of posts a handle has liked
func userLikesKey(handle model.Handle) string {
	return fmt.Sprintf("%s:idx:user_likes:%s", keyPrefix, handle)
}

// eventsChannel is the pub/sub channel carrying change events
func eventsChannel() string {
	return fmt.Sprintf("%s:events", keyPrefix)
}

// Policy hash fields
const (
	fieldBudget   = "session_budget_minutes"
	fieldFilter   = "content_filter_enabled"
	fieldApproval = "post_approval_required"
	fieldViewOnly = "view_only"
)
