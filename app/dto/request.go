package dto

// LoginRequest represents the data needed to login.
// Login only requires presence; the invalid-credentials response never
// reveals which field was wrong.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// RequestRegistrationOTPRequest starts the registration flow for an email.
type RequestRegistrationOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// VerifyRegistrationOTPRequest confirms the 6-digit code sent to the email.
type VerifyRegistrationOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	OTP   string `json:"otp" validate:"required,otp"`
}

// ResendRegistrationOTPRequest asks for a fresh registration code.
type ResendRegistrationOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// CompleteRegistrationRequest finishes registration once the email is verified.
type CompleteRegistrationRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Password        string `json:"password" validate:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `json:"accept_terms" validate:"required"`
}
