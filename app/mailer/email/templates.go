package email

import (
	"fmt"
	"html/template"
	"strings"
)

// RenderRegistrationOTPTemplate renders the registration verification email
func RenderRegistrationOTPTemplate(code string, expiresMinutes int) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Verify Your Email</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="color: #4CAF50;">Verify Your Email Address</h1>
		<p>Hello,</p>
		<p>Thank you for signing up for the patient portal! Enter the code below to verify your email address:</p>
		<div style="text-align: center; margin: 30px 0;">
			<span style="font-size: 32px; letter-spacing: 8px; font-weight: bold; background-color: #f5f5f5; padding: 12px 24px; border-radius: 5px; display: inline-block;">{{.Code}}</span>
		</div>
		<p>This code will expire in {{.ExpiresMinutes}} minutes.</p>
		<p>If you didn't create an account, please ignore this email.</p>
		<hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
		<p style="color: #999; font-size: 12px;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`

	return renderOTP("registration_otp", tmpl, code, expiresMinutes)
}

// RenderPasswordResetOTPTemplate renders the password reset email
func RenderPasswordResetOTPTemplate(code string, expiresMinutes int) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<title>Reset Your Password</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<h1 style="color: #2196F3;">Reset Your Password</h1>
		<p>Hello,</p>
		<p>We received a request to reset your password. Enter the code below to continue:</p>
		<div style="text-align: center; margin: 30px 0;">
			<span style="font-size: 32px; letter-spacing: 8px; font-weight: bold; background-color: #f5f5f5; padding: 12px 24px; border-radius: 5px; display: inline-block;">{{.Code}}</span>
		</div>
		<p>This code will expire in {{.ExpiresMinutes}} minutes.</p>
		<p>If you didn't request a password reset, please ignore this email. Your password will remain unchanged.</p>
		<hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
		<p style="color: #999; font-size: 12px;">This is an automated message, please do not reply.</p>
	</div>
</body>
</html>`

	return renderOTP("password_reset_otp", tmpl, code, expiresMinutes)
}

func renderOTP(name, tmpl, code string, expiresMinutes int) (string, error) {
	t, err := template.New(name).Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	data := struct {
		Code           string
		ExpiresMinutes int
	}{
		Code:           code,
		ExpiresMinutes: expiresMinutes,
	}

	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
