package consumer

// Message types published by the portal on the portal.events exchange.
const (
	TypeRegistrationOTP  = "registration_otp"
	TypePasswordResetOTP = "password_reset_otp"
)

// OTPEmailMessage is the payload for one-time code emails
type OTPEmailMessage struct {
	Type           string `json:"type"`
	Email          string `json:"email"`
	Code           string `json:"code"`
	ExpiresMinutes int    `json:"expires_minutes"`
}
