package dto

// AuthResponse represents the response after successful authentication
type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         UserResponse `json:"user"`

	// RedirectTo is the role's dashboard route the client should land on.
	RedirectTo string `json:"redirect_to"`
}

// UserResponse represents user data in API responses (excludes sensitive fields)
type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// MessageResponse is the generic success envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// OTPIssuedResponse is returned after an OTP is generated and dispatched.
// ResendAfterSeconds tells the client how long the resend countdown runs.
type OTPIssuedResponse struct {
	Message            string `json:"message"`
	ResendAfterSeconds int    `json:"resend_after_seconds"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}
