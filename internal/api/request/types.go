package request

// SignupRequest is the request body for creating an account
type SignupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	AccountType string `json:"account_type"`
	// Parent accounts
	Pin string `json:"pin,omitempty"`
	// Child accounts
	ParentUsername string `json:"parent_username,omitempty"`
	ParentPin      string `json:"parent_pin,omitempty"`
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateAvatarRequest is the request body for changing a profile picture
type UpdateAvatarRequest struct {
	Avatar string `json:"avatar"`
}

// CreatePostRequest is the request body for submitting a post
type CreatePostRequest struct {
	Content string `json:"content"`
}

// ApprovePostRequest carries the parent's PIN
type ApprovePostRequest struct {
	Pin string `json:"pin"`
}

// UpdatePolicyRequest is a partial policy update. Omitted fields are unchanged.
type UpdatePolicyRequest struct {
	SessionBudgetMinutes *int  `json:"session_budget_minutes,omitempty"`
	ContentFilterEnabled *bool `json:"content_filter_enabled,omitempty"`
	PostApprovalRequired *bool `json:"post_approval_required,omitempty"`
	ViewOnly             *bool `json:"view_only,omitempty"`
}
