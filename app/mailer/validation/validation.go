package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	MaxEmailLength     = 255
	MaxMessageBodySize = 1024 * 1024 // 1MB
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	otpRegex   = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateEmail checks the recipient address before handing it to a provider
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email exceeds maximum length of %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidateOTPCode checks that a one-time code is exactly six digits
func ValidateOTPCode(code string) error {
	if code == "" {
		return fmt.Errorf("code is required")
	}
	if !otpRegex.MatchString(code) {
		return fmt.Errorf("code must be a 6-digit number")
	}
	return nil
}

// ValidateMessageBodySize rejects oversized broker payloads
func ValidateMessageBodySize(body []byte) error {
	if len(body) > MaxMessageBodySize {
		return fmt.Errorf("message body exceeds maximum size of %d bytes", MaxMessageBodySize)
	}
	return nil
}

// MaskEmail masks an email address for logging (PII)
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		if len(email) > 3 {
			return email[:2] + "***@***"
		}
		return "***"
	}

	localPart := parts[0]
	domainPart := parts[1]

	var maskedLocal string
	if len(localPart) > 2 {
		maskedLocal = localPart[:2] + "***"
	} else {
		maskedLocal = "***"
	}

	return maskedLocal + "@" + domainPart
}
