package otp

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

var (
	NowFunc          = time.Now     // mockable
	generateCodeFunc = generateCode // mockable

	// errors
	ErrNotFound           = errors.New("otp not found")
	ErrEmailNotFound      = errors.New("no account is associated with this email")
	ErrInvalidCode        = errors.New("invalid otp")
	ErrCodeExpired        = errors.New("otp has expired")
	ErrNotVerified        = errors.New("otp has not been verified")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrNotificationFailed = errors.New("failed to send the otp email")

	otpTemplate     = "password_reset_otp"
	successTemplate = "password_reset_success"
)

type (
	// Repository stores Codes. Implementations must make Replace atomic per email.
	Repository interface {
		// Replace deletes every Code of code.Email and stores code.
		Replace(ctx context.Context, code Code) error
		// Find returns the latest Code matching email & code, or ErrNotFound.
		Find(ctx context.Context, email, code string) (Code, error)
		// MarkVerified flags code as verified. ErrNotFound if it was replaced or deleted meanwhile.
		MarkVerified(ctx context.Context, code Code) error
		// Claim deletes every Code of code.Email, provided code is still stored, verified and unexpired at now.
		// ErrNotFound otherwise. Only one of concurrent claims of the same code succeeds.
		Claim(ctx context.Context, code Code, now time.Time) error
	}

	UserStore interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
		UpdatePassword(ctx context.Context, usr user.User, pwd string) (user.User, error)
	}

	Service struct {
		repo    Repository
		users   UserStore
		mailSvc core.EmailService
		logger  core.Logger
		ttl     time.Duration
	}

	mailData struct {
		Username         string
		Code             string
		ExpiresInMinutes int
	}
)

func NewService(conf *core.Config, repo Repository, users UserStore, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		ttl:     conf.OTP.TTL,
	}
}

// TTL is how long a code stays valid.
func (svc *Service) TTL() time.Duration {
	return svc.ttl
}

// Request issues a new code for email, invalidating the previous ones, and mails it to the owner.
// When mailing fails the code is kept but ErrNotificationFailed is returned.
func (svc *Service) Request(ctx context.Context, email string) (Code, error) {
	usr, err := svc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Code{}, ErrEmailNotFound
		}
		return Code{}, errors.Wrap(err, "finding user by email")
	}

	value, err := generateCodeFunc()
	if err != nil {
		return Code{}, errors.Wrap(err, "generating code")
	}
	now := NowFunc().UTC()
	code := Code{
		ID:        uuid.NewString(),
		Email:     usr.Email,
		Code:      value,
		CreatedAt: now,
		ExpiresAt: now.Add(svc.ttl),
	}
	if err := svc.repo.Replace(ctx, code); err != nil {
		return Code{}, errors.Wrap(err, "storing code")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Password reset code",
		TemplateName: otpTemplate,
		TemplateData: mailData{Username: usr.Username, Code: code.Code, ExpiresInMinutes: svc.expiresInMinutes()},
	}
	if err := svc.mailSvc.SendMessage(ctx, msg); err != nil {
		svc.logger.Error("sending otp email", errors.Wrap(err, "sending otp email"), usr)
		return code, ErrNotificationFailed
	}
	return code, nil
}

// Verify marks the unverified code matching email & code as verified.
func (svc *Service) Verify(ctx context.Context, email, code string) error {
	email = core.CleanString(email, true /* lower */)
	c, err := svc.find(ctx, email, code)
	if err != nil {
		return err
	}
	if c.Verified {
		return ErrInvalidCode
	}
	if c.Expired(NowFunc()) {
		return ErrCodeExpired
	}
	if err := svc.repo.MarkVerified(ctx, c); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidCode
		}
		return errors.Wrap(err, "marking code verified")
	}
	return nil
}

// Consume claims a verified code, deleting all codes of email, then sets newPassword for its owner.
func (svc *Service) Consume(ctx context.Context, email, code, newPassword string) error {
	email = core.CleanString(email, true /* lower */)
	c, err := svc.find(ctx, email, code)
	if err != nil {
		return err
	}
	if !c.Verified {
		return ErrNotVerified
	}
	if c.Expired(NowFunc()) {
		return ErrCodeExpired
	}

	usr, err := svc.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ErrEmailNotFound
		}
		return errors.Wrap(err, "finding user by email")
	}
	if err := user.CheckPasswordPolicy(newPassword, usr.Username, usr.Email); err != nil {
		return core.NewValidationError(ErrWeakPassword, core.FieldError{Field: "newPassword", Error: err.Error()})
	}

	if err := svc.repo.Claim(ctx, c, NowFunc()); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidCode
		}
		return errors.Wrap(err, "claiming code")
	}
	if usr, err = svc.users.UpdatePassword(ctx, usr, newPassword); err != nil {
		return errors.Wrap(err, "updating password")
	}

	// best effort
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Your password has been changed",
		TemplateName: successTemplate,
		TemplateData: mailData{Username: usr.Username},
	}
	if err := svc.mailSvc.SendMessage(ctx, msg); err != nil {
		svc.logger.Warn("sending password reset success email", errors.Wrap(err, "sending success email"), usr)
	}
	return nil
}

func (svc *Service) find(ctx context.Context, email, code string) (Code, error) {
	if email == "" || len(code) != codeDigits {
		return Code{}, ErrInvalidCode
	}
	c, err := svc.repo.Find(ctx, email, code)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Code{}, ErrInvalidCode
		}
		return Code{}, errors.Wrap(err, "finding code")
	}
	return c, nil
}

func (svc *Service) expiresInMinutes() int {
	return int(svc.ttl / time.Minute)
}
