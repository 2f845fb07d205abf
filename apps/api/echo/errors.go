package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/auth"
	"github.com/trezcool/alama/core/otp"
	"github.com/trezcool/alama/core/prediction"
	"github.com/trezcool/alama/core/scoring"
	"github.com/trezcool/alama/core/user"
)

var (
	errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

	// domain errors and the status they are reported with; their message is sent as is.
	errorStatuses = map[error]int{
		auth.ErrMissingToken:          http.StatusUnauthorized,
		auth.ErrTokenExpired:          http.StatusUnauthorized,
		auth.ErrInvalidToken:          http.StatusUnauthorized,
		user.ErrInvalidCredentials:    http.StatusUnauthorized,
		auth.ErrForbidden:             http.StatusForbidden,
		user.ErrSelfDeletion:          http.StatusForbidden,
		prediction.ErrNotOwner:        http.StatusForbidden,
		prediction.ErrNotSameClass:    http.StatusForbidden,
		user.ErrNotFound:              http.StatusNotFound,
		otp.ErrEmailNotFound:          http.StatusNotFound,
		prediction.ErrRecordNotFound:  http.StatusNotFound,
		prediction.ErrStudentNotFound: http.StatusNotFound,
		otp.ErrInvalidCode:            http.StatusBadRequest,
		otp.ErrCodeExpired:            http.StatusBadRequest,
		otp.ErrNotVerified:            http.StatusBadRequest,
		prediction.ErrNoClass:         http.StatusBadRequest,
	}

	// dependency failures: logged, reported with a 500 and their message.
	dependencyErrors = map[error]bool{
		scoring.ErrArtifactNotFound: true,
		scoring.ErrFeatureMismatch:  true,
		otp.ErrNotificationFailed:   true,
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}
		)

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if status, ok := errorStatuses[cause]; ok {
				code = status
				message = cause.Error()
				break
			}

			code = http.StatusInternalServerError
			message = http.StatusText(code)
			if dependencyErrors[cause] {
				message = cause.Error()
			}

			usr, _ := getContextUser(ctx)
			logger.Error(http.StatusText(code), errors.Wrap(err, ctx.Request().URL.Path), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead {
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
