package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/user"
)

type authApi struct {
	usrSvc   *user.Service
	otpSvc   *otp.Service
	tokens   *auth.TokenService
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, deps *Deps) {
	api := authApi{
		usrSvc:   deps.UserSvc,
		otpSvc:   deps.OTPSvc,
		tokens:   deps.Tokens,
		validate: deps.Validate,
	}

	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.POST("/token/refresh", api.refreshToken)
	g.GET("/profile", api.profile, requireRole(deps.Guard))

	pg := g.Group("/password")
	pg.POST("/forgot", api.forgotPassword)
	pg.POST("/verify-otp", api.verifyOTP)
	pg.POST("/reset", api.resetPassword)
}

// Handlers

// register creates a student account.
func (api *authApi) register(ctx echo.Context) error {
	var data RegisterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterRequest")
	}
	nu := user.NewUser{
		Username: data.Username,
		Email:    data.Email,
		Password: data.Password,
		Role:     user.RoleStudent,
	}
	if err := nu.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.Create(ctx.Request().Context(), nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{Username: usr.Username, Email: usr.Email})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.usrSvc.VerifyCredentials(ctx.Request().Context(), data.Identifier(), data.Password)
	if err != nil {
		return errors.Wrap(err, "verifying credentials")
	}
	pair, err := api.tokens.Issue(usr)
	if err != nil {
		return errors.Wrap(err, "issuing tokens")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Access: pair.Access, Refresh: pair.Refresh, User: usr})
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.tokens.VerifyRefresh(data.Refresh)
	if err != nil {
		return err
	}
	usr, err := api.usrSvc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	access, err := api.tokens.Refresh(claims, usr)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, RefreshResponse{Access: access})
}

func (api *authApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data ForgotPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ForgotPasswordRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.otpSvc.Request(ctx.Request().Context(), data.Email); err != nil {
		return errors.Wrap(err, "requesting otp")
	}
	return ctx.JSON(http.StatusOK, ForgotPasswordResponse{
		Message:          "A password reset code has been sent to your email.",
		ExpiresInMinutes: int(api.otpSvc.TTL().Minutes()),
	})
}

func (api *authApi) verifyOTP(ctx echo.Context) error {
	var data VerifyOTPRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.otpSvc.Verify(ctx.Request().Context(), data.Email, data.OTP); err != nil {
		return errors.Wrap(err, "verifying otp")
	}
	return ctx.JSON(http.StatusOK, VerifyOTPResponse{Verified: true})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data ResetPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPasswordRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.otpSvc.Consume(ctx.Request().Context(), data.Email, data.OTP, data.NewPassword); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
