package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckPasswordPolicy(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		attrs   []string
		wantErr string
	}{
		{name: "valid", pwd: "Pr3dict!ons", attrs: []string{"jane", "jane@alama.io"}},
		{name: "too short", pwd: "Ab1!", wantErr: pwdMinLenText},
		{name: "whitespace", pwd: "Pr3dict ons", wantErr: pwdNoSpaceText},
		{name: "all numeric", pwd: "1234567890", wantErr: pwdNotAllNumText},
		{name: "similar to username", pwd: "Janedoe123", attrs: []string{"janedoe12"}, wantErr: pwdAttrSimText},
		{name: "similar to email", pwd: "jane@alama", attrs: []string{"x", "jane@alama.io"}, wantErr: pwdAttrSimText},
		{name: "empty attrs ignored", pwd: "Pr3dict!ons", attrs: []string{"", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckPasswordPolicy(tt.pwd, tt.attrs...)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	for _, r := range AllRoles {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("superuser").Valid())
	assert.False(t, Role("").Valid())
}
