// Package classifier decides whether post text is shown to filtered accounts.
package classifier

import "strings"

// Visibility of a piece of content in a filtered feed
type Visibility string

const (
	Visible Visibility = "visible"
	Hidden  Visibility = "hidden"
)

// DefaultBlockList is the fixed list of words hidden from filtered feeds
var DefaultBlockList = []string{"bad", "hate", "stupid", "dumb"}

// Classifier matches text case-insensitively against a block-list.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	blocked []string
}

// New creates a Classifier for the given words
func New(words []string) *Classifier {
	blocked := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			blocked = append(blocked, w)
		}
	}
	return &Classifier{blocked: blocked}
}

// Default returns a Classifier using DefaultBlockList
func Default() *Classifier {
	return New(DefaultBlockList)
}

// IsAppropriate reports whether text contains none of the blocked words.
// Matching is by substring, so "badge" is blocked by "bad".
func (c *Classifier) IsAppropriate(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range c.blocked {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// Classify maps text to its feed visibility
func (c *Classifier) Classify(text string) Visibility {
	if c.IsAppropriate(text) {
		return Visible
	}
	return Hidden
}
