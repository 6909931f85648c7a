package dto

// ForgotPasswordRequest starts the password reset flow (unauthenticated).
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// VerifyResetOTPRequest confirms the 6-digit reset code for the email.
type VerifyResetOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	OTP   string `json:"otp" validate:"required,otp"`
}

// ResendResetOTPRequest asks for a fresh reset code.
type ResendResetOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

// ResetPasswordRequest sets the new password after OTP verification.
type ResetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email,max=255"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=128"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword"`
}
