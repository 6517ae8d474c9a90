package handlers

import (
	"testing"

	"github.com/BradenHooton/erpauth/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{
			name: "valid signup",
			req: &SignupRequest{
				FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com",
				Password: "Str0ng!Passw0rd", PasswordConfirm: "Str0ng!Passw0rd",
			},
		},
		{
			name:    "json names in messages",
			req:     &LoginRequest{Email: "grace@example.com"},
			wantErr: "Invalid input: password is required",
		},
		{
			name:    "bad email",
			req:     &ForgotPasswordRequest{Email: "nope"},
			wantErr: "Invalid input: email must be a valid email address",
		},
		{
			name:    "confirmation mismatch",
			req:     &ResetPasswordRequest{Password: "Str0ng!Passw0rd", PasswordConfirm: "other"},
			wantErr: "Invalid input: password_confirm must match password",
		},
		{
			name:    "every failing field is reported",
			req:     &LoginRequest{},
			wantErr: "Invalid input: email is required; password is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, models.KindValidation, models.KindOf(err))
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}
