package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mcoot/kidfeed/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		o.println(string(data))
	} else {
		o.println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) println(s string) {
	_, _ = fmt.Fprintln(o.w, s)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.AuthResponse:
		o.printAuth(v)
	case response.Profile:
		o.printProfile(v)
	case response.Account:
		o.printAccount(v)
	case response.Policy:
		o.printPolicy(v)
	case response.SessionStatus:
		o.printSession(v)
	case response.Feed:
		o.printFeed(v)
	case response.SubmitResponse:
		o.printSubmit(v)
	case response.Like:
		o.printLike(v)
	case response.LogoutResponse:
		o.printLogout(v)
	case []response.Avatar:
		o.printAvatars(v)
	case response.Health:
		o.printf("Status: %s\n", v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printAccount(a response.Account) {
	o.printf("Account: %s (@%s)\n", a.DisplayName, a.Username)
	o.printf("Type: %s\n", a.AccountType)
	o.printf("Avatar: %s\n", a.ProfilePicture)
	o.printf("Posts: %d\n", a.PostCount)
	if a.ParentUsername != "" {
		o.printf("Parent: @%s\n", a.ParentUsername)
	}
	o.printf("Bio: %s\n", a.Bio)
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printAccount(a.Account)
	o.printSession(a.Session)
	o.printf("Token: %s\n", a.SessionToken)
}

func (o *Output) printProfile(p response.Profile) {
	o.printAccount(p.Account)
	o.printSession(p.Session)
	if p.Policy != nil {
		o.printPolicy(*p.Policy)
	}
	if p.PendingPost != nil {
		o.printf("Waiting for approval: %q\n", p.PendingPost.Content)
	}
}

func (o *Output) printPolicy(p response.Policy) {
	o.printf("Time limit: %d minutes\n", p.SessionBudgetMinutes)
	o.printf("Content filter: %s\n", onOff(p.ContentFilterEnabled))
	o.printf("Post approval: %s\n", onOff(p.PostApprovalRequired))
	o.printf("View only: %s\n", onOff(p.ViewOnly))
}

func (o *Output) printSession(s response.SessionStatus) {
	switch {
	case !s.Limited:
		o.println("Session: unlimited")
	case s.State == "expired":
		o.println("Session: time is up")
	default:
		o.printf("Session: %d minutes left\n", s.RemainingMinutes)
	}
}

func (o *Output) printFeed(f response.Feed) {
	if len(f.Posts) == 0 {
		o.println("No posts yet")
		return
	}
	for _, p := range f.Posts {
		liked := ""
		if p.LikedByMe {
			liked = " (liked)"
		}
		o.printf("[%s] %s (@%s) · %s\n", p.ID, p.AuthorDisplayName, p.AuthorUsername, p.Age)
		o.printf("  %s\n", p.Content)
		o.printf("  ♥ %d%s\n", p.Likes, liked)
	}
}

func (o *Output) printSubmit(s response.SubmitResponse) {
	if s.Post == nil {
		o.println("Post is waiting for a parent's approval")
		return
	}
	o.printf("Published post %s\n", s.Post.ID)
}

func (o *Output) printLike(l response.Like) {
	if l.Liked {
		o.printf("Liked (%d likes)\n", l.Likes)
	} else {
		o.printf("Unliked (%d likes)\n", l.Likes)
	}
}

func (o *Output) printLogout(l response.LogoutResponse) {
	o.println("Logged out")
	if l.AbandonedPost != nil {
		o.printf("Unapproved post discarded: %q\n", l.AbandonedPost.Content)
	}
}

func (o *Output) printAvatars(avatars []response.Avatar) {
	for _, a := range avatars {
		o.printf("%s  %-10s %s\n", a.Emoji, a.ID, a.Name)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
