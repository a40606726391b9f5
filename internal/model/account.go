package model

import (
	"regexp"
	"strings"
	"time"
)

// Handle uniquely identifies an account across the system
type Handle string

// Role distinguishes parent accounts from child accounts
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// DefaultBio is used when an account is created without a bio
const DefaultBio = "Hey there! I am new here."

var handlePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,32}$`)

// Account represents a registered user.
// Role is fixed at creation; storage never rewrites it.
type Account struct {
	Handle         Handle
	DisplayName    string
	Bio            string
	Role           Role
	ProfilePicture AvatarID
	PostCount      int
	CreatedAt      time.Time

	PasswordHash string // bcrypt hash

	// Parent only
	PinHash string

	// Child only: the parent whose PIN approves posts and who may change the policy
	ParentHandle Handle
}

func (a *Account) IsParent() bool {
	return a.Role == RoleParent
}

func (a *Account) IsChild() bool {
	return a.Role == RoleChild
}

// NormalizeHandle trims surrounding whitespace from a handle
func NormalizeHandle(s string) Handle {
	return Handle(strings.TrimSpace(s))
}

// ValidHandle reports whether h is an acceptable account handle
func ValidHandle(h Handle) bool {
	return handlePattern.MatchString(string(h))
}
