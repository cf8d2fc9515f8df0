package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hey-chat/internal/domain"
)

const (
	codeValidation      = "VALIDATION_ERROR"
	codeEmailInUse      = "EMAIL_IN_USE"
	codeUsernameInUse   = "USERNAME_IN_USE"
	codeUnverified      = "UNVERIFIED_ACCOUNT"
	codeTokenExpired    = "TOKEN_EXPIRED"
	codeInvalidToken    = "INVALID_TOKEN"
	codeAlreadyVerified = "ALREADY_VERIFIED"
	codeInvalidOTP      = "INVALID_OTP"
	codeOTPExpired      = "OTP_EXPIRED"
	codeOTPNotRequested = "OTP_NOT_REQUESTED"
	codeRateLimited     = "RATE_LIMITED"
	codeNotFound        = "NOT_FOUND"
	codeInternal        = "INTERNAL_ERROR"
)

// apiError es la forma en que un error de dominio llega al cliente.
type apiError struct {
	status  int
	code    string
	message string
	fields  map[string]string
}

// respondOK escribe el sobre {success, message, ...payload}.
func respondOK(c *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{"success": true, "message": message}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

func respondAPIError(c *gin.Context, e apiError) {
	body := gin.H{"success": false, "message": e.message}
	if e.code != "" {
		body["code"] = e.code
	}
	if len(e.fields) > 0 {
		body["errors"] = e.fields
	}
	c.AbortWithStatusJSON(e.status, body)
}

// respondError traduce err a status y codigo; los errores no esperados se loguean y no se exponen.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	e, ok := classifyError(err)
	if !ok {
		logger.Error(op+" failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	respondAPIError(c, e)
}

func classifyError(err error) (apiError, bool) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return apiError{status: http.StatusBadRequest, code: codeValidation, message: "Validation failed", fields: verr.Fields}, true
	}
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		code := codeEmailInUse
		if conflict.Field == "username" {
			code = codeUsernameInUse
		}
		return apiError{status: http.StatusBadRequest, code: code, message: conflict.Message()}, true
	}

	switch {
	case errors.Is(err, domain.ErrInvalidEmail):
		return apiError{status: http.StatusBadRequest, code: codeValidation, message: "Validation failed", fields: map[string]string{"email": "must be a valid email"}}, true
	case errors.Is(err, domain.ErrAccountNotFound):
		return apiError{status: http.StatusNotFound, code: codeNotFound, message: "Account not found"}, true
	case errors.Is(err, domain.ErrInvalidCredentials):
		return apiError{status: http.StatusUnauthorized, message: "Invalid email or password"}, true
	case errors.Is(err, domain.ErrAccountUnverified):
		return apiError{status: http.StatusForbidden, code: codeUnverified, message: "Please verify your email before continuing"}, true
	case errors.Is(err, domain.ErrTokenExpired):
		return apiError{status: http.StatusUnauthorized, code: codeTokenExpired, message: "Token expired"}, true
	case errors.Is(err, domain.ErrTokenInvalid):
		return apiError{status: http.StatusUnauthorized, code: codeInvalidToken, message: "Invalid token"}, true
	case errors.Is(err, domain.ErrAlreadyVerified):
		return apiError{status: http.StatusBadRequest, code: codeAlreadyVerified, message: "Email already verified"}, true
	case errors.Is(err, domain.ErrOTPInvalid):
		return apiError{status: http.StatusBadRequest, code: codeInvalidOTP, message: "Invalid OTP"}, true
	case errors.Is(err, domain.ErrOTPExpired):
		return apiError{status: http.StatusBadRequest, code: codeOTPExpired, message: "OTP expired. A new OTP has been sent to your email"}, true
	case errors.Is(err, domain.ErrOTPNotRequested):
		return apiError{status: http.StatusBadRequest, code: codeOTPNotRequested, message: "No OTP has been requested for this account"}, true
	case errors.Is(err, domain.ErrRateLimited):
		return apiError{status: http.StatusTooManyRequests, code: codeRateLimited, message: "Too many requests, try again later"}, true
	}
	return apiError{status: http.StatusInternalServerError, code: codeInternal, message: "Internal server error"}, false
}

// bindJSON decodifica el body y convierte los errores de validacion de gin en ValidationError.
func bindJSON(c *gin.Context, dst any) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[jsonFieldName(fe.Field())] = fieldMessage(fe)
		}
		return &domain.ValidationError{Fields: fields}
	}
	return &domain.ValidationError{Fields: map[string]string{"body": "must be a valid JSON object"}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "numeric":
		return "must contain only digits"
	default:
		return "is invalid"
	}
}

func jsonFieldName(field string) string {
	if field == "" {
		return field
	}
	if strings.ToUpper(field) == field {
		return strings.ToLower(field)
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// bearerToken extrae el token del header Authorization.
func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}
