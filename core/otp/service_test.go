package otp_test

import (
	"context"
	"io"
	"log"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/user"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	dummydb "github.com/trezcool/alama/storage/database/dummy"
	testutil "github.com/trezcool/alama/tests"
)

const (
	pwd    = "Pr3dict!ons"
	newPwd = "N3w-Secret!"
)

type fixture struct {
	svc    *otp.Service
	usrSvc *user.Service
	usr    user.User
}

func setup(t *testing.T, mailSvc func(*core.Config) core.EmailService) fixture {
	t.Helper()
	conf := testutil.NewConfig()
	db, err := dummydb.Open()
	require.NoError(t, err)

	userRepo := dummydb.NewUserRepository(db)
	usrSvc := user.NewService(userRepo)
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	svc := otp.NewService(conf, dummydb.NewOTPRepository(db), usrSvc, mailSvc(conf), logger)

	emailsvc.ResetSentMessages()
	t.Cleanup(func() { otp.NowFunc = time.Now })

	usr := testutil.CreateUser(t, userRepo, "jane", "jane@alama.io", pwd, user.RoleStudent, "")
	return fixture{svc: svc, usrSvc: usrSvc, usr: usr}
}

func TestService_Request(t *testing.T) {
	f := setup(t, emailsvc.NewConsoleServiceMock)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, "nobody@alama.io")
	assert.Equal(t, otp.ErrEmailNotFound, err)
	_, err = f.svc.Request(ctx, "")
	assert.Equal(t, otp.ErrEmailNotFound, err)

	code, err := f.svc.Request(ctx, " Jane@Alama.io ")
	require.NoError(t, err)
	assert.Len(t, code.Code, 6)
	assert.Equal(t, "jane@alama.io", code.Email)
	assert.Equal(t, 10*time.Minute, code.ExpiresAt.Sub(code.CreatedAt))
	assert.False(t, code.Verified)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "jane@alama.io", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, code.Code)
	assert.Contains(t, msg.HTMLContent, code.Code)
	assert.Equal(t, 10*time.Minute, f.svc.TTL())

	// a new request invalidates the previous code
	newCode, err := f.svc.Request(ctx, "jane@alama.io")
	require.NoError(t, err)
	if newCode.Code != code.Code {
		assert.Equal(t, otp.ErrInvalidCode, f.svc.Verify(ctx, "jane@alama.io", code.Code))
	}
	assert.NoError(t, f.svc.Verify(ctx, "jane@alama.io", newCode.Code))
}

func TestService_RequestMailFailure(t *testing.T) {
	f := setup(t, emailsvc.NewFailingServiceMock)
	ctx := context.Background()

	code, err := f.svc.Request(ctx, "jane@alama.io")
	assert.Equal(t, otp.ErrNotificationFailed, err)
	require.NotEmpty(t, code.Code)

	// the code is kept
	assert.NoError(t, f.svc.Verify(ctx, "jane@alama.io", code.Code))
}

func TestService_Verify(t *testing.T) {
	f := setup(t, emailsvc.NewConsoleServiceMock)
	ctx := context.Background()

	code, err := f.svc.Request(ctx, "jane@alama.io")
	require.NoError(t, err)

	wrong := "000000"
	if code.Code == wrong {
		wrong = "111111"
	}
	tests := []struct {
		name  string
		email string
		code  string
	}{
		{name: "wrong code", email: "jane@alama.io", code: wrong},
		{name: "short code", email: "jane@alama.io", code: "123"},
		{name: "other email", email: "john@alama.io", code: code.Code},
		{name: "empty email", email: "", code: code.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, otp.ErrInvalidCode, f.svc.Verify(ctx, tt.email, tt.code))
		})
	}

	require.NoError(t, f.svc.Verify(ctx, "JANE@alama.io", code.Code))
	// already verified
	assert.Equal(t, otp.ErrInvalidCode, f.svc.Verify(ctx, "jane@alama.io", code.Code))
}

func TestService_VerifyExpired(t *testing.T) {
	f := setup(t, emailsvc.NewConsoleServiceMock)
	ctx := context.Background()

	code, err := f.svc.Request(ctx, "jane@alama.io")
	require.NoError(t, err)

	otp.NowFunc = func() time.Time { return code.ExpiresAt.Add(time.Second) }
	assert.Equal(t, otp.ErrCodeExpired, f.svc.Verify(ctx, "jane@alama.io", code.Code))

	// still valid right at expiry
	otp.NowFunc = func() time.Time { return code.ExpiresAt }
	assert.NoError(t, f.svc.Verify(ctx, "jane@alama.io", code.Code))

	otp.NowFunc = func() time.Time { return code.ExpiresAt.Add(time.Second) }
	assert.Equal(t, otp.ErrCodeExpired, f.svc.Consume(ctx, "jane@alama.io", code.Code, newPwd))
}

func TestService_Consume(t *testing.T) {
	f := setup(t, emailsvc.NewConsoleServiceMock)
	ctx := context.Background()

	code, err := f.svc.Request(ctx, "jane@alama.io")
	require.NoError(t, err)

	assert.Equal(t, otp.ErrNotVerified, f.svc.Consume(ctx, "jane@alama.io", code.Code, newPwd))
	require.NoError(t, f.svc.Verify(ctx, "jane@alama.io", code.Code))

	err = f.svc.Consume(ctx, "jane@alama.io", code.Code, "short")
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, otp.ErrWeakPassword, vErr.Err)
	assert.Equal(t, "newPassword", vErr.Fields[0].Field)

	err = f.svc.Consume(ctx, "jane@alama.io", code.Code, "jane@alama.io")
	require.True(t, errors.As(err, &vErr))

	require.NoError(t, f.svc.Consume(ctx, "jane@alama.io", code.Code, newPwd))

	_, err = f.usrSvc.VerifyCredentials(ctx, "jane", newPwd)
	assert.NoError(t, err)
	_, err = f.usrSvc.VerifyCredentials(ctx, "jane", pwd)
	assert.Equal(t, user.ErrInvalidCredentials, err)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "Your password has been changed", msg.Subject)

	// codes are single use
	assert.Equal(t, otp.ErrInvalidCode, f.svc.Consume(ctx, "jane@alama.io", code.Code, newPwd))
	assert.Equal(t, otp.ErrInvalidCode, f.svc.Verify(ctx, "jane@alama.io", code.Code))
}

func TestService_ConcurrentConsume(t *testing.T) {
	f := setup(t, emailsvc.NewConsoleServiceMock)
	ctx := context.Background()

	code, err := f.svc.Request(ctx, "jane@alama.io")
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, "jane@alama.io", code.Code))

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.Consume(ctx, "jane@alama.io", code.Code, newPwd+strconv.Itoa(i))
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "code consumed twice")
			winner = i
			continue
		}
		assert.Equal(t, otp.ErrInvalidCode, err)
	}
	require.NotEqual(t, -1, winner)

	for i := 0; i < n; i++ {
		_, err := f.usrSvc.VerifyCredentials(ctx, "jane", newPwd+strconv.Itoa(i))
		if i == winner {
			assert.NoError(t, err)
		} else {
			assert.Equal(t, user.ErrInvalidCredentials, err)
		}
	}
}
