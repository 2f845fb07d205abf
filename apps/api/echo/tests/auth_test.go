package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	testutil "github.com/trezcool/alama/tests"
)

func Test_authApi_register(t *testing.T) {
	resetDB()
	reqMsg := "this field is required"

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": reqMsg, "password": reqMsg}),
		},
		{
			name: "invalid fields", wantCode: http.StatusBadRequest,
			body: marshalObj(t, RegisterRequest{Username: "jane doe", Email: "lol", Password: "short"}),
			wantData: marshalObj(t, map[string]string{
				"username": "only alphanumeric characters and underscores are allowed",
				"email":    "email must be a valid email address",
				"password": "password must contain at least 8 characters",
			}),
		},
		{
			name: "password similar to username", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, RegisterRequest{Username: "janedoe12", Password: "janedoe123"}),
			wantData: marshalObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "registered", wantCode: http.StatusCreated,
			body:     []byte(`{"username": " Jane ", "email": "Jane@Alama.io", "password": "` + pwd + `", "role": "admin"}`),
			wantData: marshalObj(t, RegisterResponse{Username: "jane", Email: "jane@alama.io"}),
		},
		{
			name: "duplicate username", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, RegisterRequest{Username: "JANE", Email: "other@alama.io", Password: pwd}),
			wantData: marshalObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "duplicate email", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, RegisterRequest{Username: "john", Email: "jane@alama.io", Password: pwd}),
			wantData: marshalObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "without email", wantCode: http.StatusCreated,
			body:     marshalObj(t, RegisterRequest{Username: "john", Password: pwd}),
			wantData: marshalObj(t, RegisterResponse{Username: "john"}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
		tests[i].path = "/auth/register"
	}
	runTests(t, tests)

	// the role is never taken from the request
	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{UsernameOrEmail: "jane"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)
	assert.NoError(t, usr.CheckPassword(pwd))
}

func Test_authApi_login(t *testing.T) {
	resetDB()
	reqMsg := "this field is required"
	jane := testutil.CreateUser(t, usrRepo, "jane", "jane@alama.io", pwd, user.RoleTeacher, "7B")
	errCreds := marshalObj(t, httpErr{Error: "invalid username or password"})

	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"username": reqMsg, "email": reqMsg, "password": reqMsg}),
		},
		{name: "unknown user", wantCode: http.StatusUnauthorized, body: marshalObj(t, LoginRequest{Username: "john", Password: pwd}), wantData: errCreds},
		{name: "wrong password", wantCode: http.StatusUnauthorized, body: marshalObj(t, LoginRequest{Username: "jane", Password: "wrong-pwd"}), wantData: errCreds},
		{name: "by username", body: marshalObj(t, LoginRequest{Username: " JANE ", Password: pwd})},
		{name: "by email", body: marshalObj(t, LoginRequest{Email: "Jane@alama.io", Password: pwd})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/auth/login"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}

			// cannot guess the tokens.. check that they belong to jane
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp struct {
				Access  string    `json:"access"`
				Refresh string    `json:"refresh"`
				User    user.User `json:"user"`
			}
			unmarshal(t, rec, &resp)
			assert.Equal(t, jane.ID, resp.User.ID)
			assert.Equal(t, user.RoleTeacher, resp.User.Role)
			assert.Equal(t, "7B", resp.User.ClassName)

			claims, err := tokens.Verify(resp.Access)
			require.NoError(t, err)
			assert.Equal(t, jane.ID, claims.UserID)
			claims, err = tokens.VerifyRefresh(resp.Refresh)
			require.NoError(t, err)
			assert.Equal(t, jane.ID, claims.UserID)
		})
	}
}

func Test_authApi_refreshToken(t *testing.T) {
	resetDB()
	jane := testutil.CreateUser(t, usrRepo, "jane", "jane@alama.io", pwd, user.RoleStudent, "")
	ghost := testutil.CreateUser(t, usrRepo, "ghost", "ghost@alama.io", pwd, user.RoleStudent, "")

	janePair, err := tokens.Issue(jane)
	require.NoError(t, err)
	ghostPair, err := tokens.Issue(ghost)
	require.NoError(t, err)
	require.NoError(t, usrRepo.DeleteUser(context.Background(), ghost.ID))

	errInvalid := marshalObj(t, httpErr{Error: "invalid token"})
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"refresh": "this field is required"}),
		},
		{name: "garbage", wantCode: http.StatusUnauthorized, body: marshalObj(t, RefreshRequest{Refresh: "lol"}), wantData: errInvalid},
		{name: "access token", wantCode: http.StatusUnauthorized, body: marshalObj(t, RefreshRequest{Refresh: janePair.Access}), wantData: errInvalid},
		{
			name: "deleted user", wantCode: http.StatusNotFound,
			body: marshalObj(t, RefreshRequest{Refresh: ghostPair.Refresh}), wantData: marshalObj(t, httpErr{Error: "user not found"}),
		},
		{name: "refreshed", body: marshalObj(t, RefreshRequest{Refresh: `"` + janePair.Refresh + `"`})},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/auth/token/refresh"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp RefreshResponse
			unmarshal(t, rec, &resp)
			claims, err := tokens.Verify(resp.Access)
			require.NoError(t, err)
			assert.Equal(t, jane.ID, claims.UserID)
		})
	}
}

func Test_authApi_profile(t *testing.T) {
	resetDB()
	jane := testutil.CreateUser(t, usrRepo, "jane", "jane@alama.io", pwd, user.RoleStudent, "7B")

	auth.NowFunc = func() time.Time { return time.Now().Add(-2 * conf.Auth.AccessTokenTTL) }
	expired := getToken(t, jane)
	auth.NowFunc = time.Now // reset

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "invalid token", token: "lol", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "invalid token"})},
		{name: "expired token", token: expired, wantCode: http.StatusUnauthorized, wantData: marshalObj(t, httpErr{Error: "token expired"})},
		{name: "profile", token: getToken(t, jane), wantData: marshalObj(t, jane)},
	}
	for i := range tests {
		tests[i].method = http.MethodGet
		tests[i].path = "/auth/profile"
	}
	runTests(t, tests)
}

func Test_authApi_passwordReset(t *testing.T) {
	resetDB()
	jane := testutil.CreateUser(t, usrRepo, "jane", "jane@alama.io", pwd, user.RoleStudent, "")
	newPwd := "N3w-Secret!"

	forgot := func(tt httpTest) httpTest {
		tt.method, tt.path = http.MethodPost, "/auth/password/forgot"
		return tt
	}
	verify := func(tt httpTest) httpTest {
		tt.method, tt.path = http.MethodPost, "/auth/password/verify-otp"
		return tt
	}
	reset := func(tt httpTest) httpTest {
		tt.method, tt.path = http.MethodPost, "/auth/password/reset"
		return tt
	}

	runTests(t, []httpTest{
		forgot(httpTest{
			name: "forgot: required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "this field is required"}),
		}),
		forgot(httpTest{
			name: "forgot: invalid email", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, ForgotPasswordRequest{Email: "lol"}),
			wantData: marshalObj(t, map[string]string{"email": "email must be a valid email address"}),
		}),
		forgot(httpTest{
			name: "forgot: unknown email", wantCode: http.StatusNotFound,
			body:     marshalObj(t, ForgotPasswordRequest{Email: "john@alama.io"}),
			wantData: marshalObj(t, httpErr{Error: "no account is associated with this email"}),
		}),
		forgot(httpTest{
			name: "forgot: code sent",
			body: marshalObj(t, ForgotPasswordRequest{Email: " Jane@Alama.io "}),
			wantData: marshalObj(t, ForgotPasswordResponse{
				Message:          "A password reset code has been sent to your email.",
				ExpiresInMinutes: 10,
			}),
		}),
	})

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	assert.Equal(t, jane.Email, msg.To[0].Address)
	code := otpRegex.FindString(msg.TextContent)
	require.NotEmpty(t, code, msg.TextContent)
	assert.Contains(t, msg.HTMLContent, code)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	errInvalid := marshalObj(t, httpErr{Error: "invalid otp"})

	runTests(t, []httpTest{
		verify(httpTest{
			name: "verify: required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "this field is required", "otp": "this field is required"}),
		}),
		verify(httpTest{
			name: "verify: malformed otp", wantCode: http.StatusBadRequest,
			body: marshalObj(t, VerifyOTPRequest{Email: jane.Email, OTP: "12ab"}),
		}),
		verify(httpTest{
			name: "verify: wrong otp", wantCode: http.StatusBadRequest,
			body: marshalObj(t, VerifyOTPRequest{Email: jane.Email, OTP: wrong}), wantData: errInvalid,
		}),
		reset(httpTest{
			name: "reset: not verified", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, ResetPasswordRequest{Email: jane.Email, OTP: code, NewPassword: newPwd}),
			wantData: marshalObj(t, httpErr{Error: "otp has not been verified"}),
		}),
		verify(httpTest{
			name:     "verify: verified",
			body:     marshalObj(t, VerifyOTPRequest{Email: jane.Email, OTP: code}),
			wantData: marshalObj(t, VerifyOTPResponse{Verified: true}),
		}),
		verify(httpTest{
			name: "verify: already verified", wantCode: http.StatusBadRequest,
			body: marshalObj(t, VerifyOTPRequest{Email: jane.Email, OTP: code}), wantData: errInvalid,
		}),
		reset(httpTest{
			name: "reset: required fields", wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{
				"email":       "this field is required",
				"otp":         "this field is required",
				"newPassword": "this field is required",
			}),
		}),
		reset(httpTest{
			name: "reset: weak password", wantCode: http.StatusBadRequest,
			body:     marshalObj(t, ResetPasswordRequest{Email: jane.Email, OTP: code, NewPassword: "short"}),
			wantData: marshalObj(t, map[string]string{"newPassword": "password must contain at least 8 characters"}),
		}),
		reset(httpTest{
			name:     "reset: password changed",
			body:     marshalObj(t, ResetPasswordRequest{Email: jane.Email, OTP: code, NewPassword: newPwd}),
			wantData: marshalObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		}),
		reset(httpTest{
			name: "reset: code consumed", wantCode: http.StatusBadRequest,
			body: marshalObj(t, ResetPasswordRequest{Email: jane.Email, OTP: code, NewPassword: newPwd}), wantData: errInvalid,
		}),
	})

	runTests(t, []httpTest{
		{
			name: "login: old password", method: http.MethodPost, path: "/auth/login", wantCode: http.StatusUnauthorized,
			body: marshalObj(t, LoginRequest{Username: "jane", Password: pwd}), wantData: marshalObj(t, httpErr{Error: "invalid username or password"}),
		},
		{name: "login: new password", method: http.MethodPost, path: "/auth/login", body: marshalObj(t, LoginRequest{Username: "jane", Password: newPwd})},
	})
}
