package model

// AvatarID names one of the fixed profile pictures
type AvatarID string

const (
	// AvatarDefault is assigned to parent accounts
	AvatarDefault AvatarID = "default"
	// AvatarChildDefault is assigned to new child accounts
	AvatarChildDefault AvatarID = "cat"
)

// Avatar is a selectable profile picture
type Avatar struct {
	ID    AvatarID
	Emoji string
	Name  string
}

var avatars = []Avatar{
	{ID: "cat", Emoji: "🐱", Name: "Cat"},
	{ID: "dog", Emoji: "🐶", Name: "Dog"},
	{ID: "bear", Emoji: "🐻", Name: "Bear"},
	{ID: "fox", Emoji: "🦊", Name: "Fox"},
	{ID: "panda", Emoji: "🐼", Name: "Panda"},
	{ID: "koala", Emoji: "🐨", Name: "Koala"},
	{ID: "tiger", Emoji: "🐯", Name: "Tiger"},
	{ID: "lion", Emoji: "🦁", Name: "Lion"},
	{ID: "unicorn", Emoji: "🦄", Name: "Unicorn"},
	{ID: "dragon", Emoji: "🐉", Name: "Dragon"},
	{ID: "robot", Emoji: "🤖", Name: "Robot"},
	{ID: "alien", Emoji: "👽", Name: "Alien"},
	{ID: "owl", Emoji: "🦉", Name: "Owl"},
	{ID: "t-rex", Emoji: "🦖", Name: "T-Rex"},
}

// Avatars returns the avatar catalogue in display order
func Avatars() []Avatar {
	out := make([]Avatar, len(avatars))
	copy(out, avatars)
	return out
}

// ValidAvatar reports whether id is in the catalogue
func ValidAvatar(id AvatarID) bool {
	for _, a := range avatars {
		if a.ID == id {
			return true
		}
	}
	return false
}
