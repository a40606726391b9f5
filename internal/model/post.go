package model

import "time"

// PostID uniquely identifies a post
type PostID string

// Post is a published feed entry
type Post struct {
	ID                PostID
	AuthorHandle      Handle
	AuthorDisplayName string
	Content           string
	AvatarSnapshot    AvatarID // author's avatar when the post was published
	Likes             int
	CreatedAt         time.Time
}

// MaxPostLength bounds post content in runes
const MaxPostLength = 500
