package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid email", "user@example.com", false},
		{"valid with plus", "user+tag@example.com", false},
		{"valid with dots", "first.last@sub.example.com", false},
		{"empty", "", true},
		{"missing at", "userexample.com", true},
		{"missing domain", "user@", true},
		{"missing tld", "user@example", true},
		{"spaces", "user name@example.com", true},
		{"too long", strings.Repeat("a", 250) + "@example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOTPCode(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{"valid code", "123456", false},
		{"leading zeros", "000042", false},
		{"empty", "", true},
		{"too short", "12345", true},
		{"too long", "1234567", true},
		{"letters", "12a456", true},
		{"unicode digits", "１２３４５６", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOTPCode(tt.code)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateMessageBodySize(t *testing.T) {
	assert.NoError(t, ValidateMessageBodySize([]byte(`{"type":"registration_otp"}`)))
	assert.NoError(t, ValidateMessageBodySize(make([]byte, MaxMessageBodySize)))
	assert.Error(t, ValidateMessageBodySize(make([]byte, MaxMessageBodySize+1)))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"normal address", "johndoe@example.com", "jo***@example.com"},
		{"short local part", "ab@example.com", "***@example.com"},
		{"empty", "", ""},
		{"not an email", "garbage", "ga***@***"},
		{"very short garbage", "ab", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskEmail(tt.email))
		})
	}
}
