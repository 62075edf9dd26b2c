package domain

import "net/http"

// Error is a member of the closed error taxonomy shared with downstream
// systems. Callers branch on Code, so every authorization failure must carry
// one of the values below.
type Error struct {
	Code    string
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

// Is matches taxonomy members by code, so a WithMessage copy still satisfies
// errors.Is against its sentinel.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// WithMessage returns a copy carrying a contextualized message.
func (e *Error) WithMessage(message string) *Error {
	clone := *e
	clone.Message = message
	return &clone
}

// WithStatus returns a copy carrying a different HTTP status. Used for the
// inactive-account branch, which reuses the USER_NOT_FOUND code with 403.
func (e *Error) WithStatus(status int) *Error {
	clone := *e
	clone.Status = status
	return &clone
}

// Authentication and authorization failures.
var (
	ErrMissingToken           = &Error{Code: "auth/missing-token", Status: http.StatusUnauthorized, Message: "Missing token."}
	ErrMissingScheme          = &Error{Code: "auth/missing-scheme", Status: http.StatusUnauthorized, Message: "Missing or invalid authentication scheme."}
	ErrInvalidAccessToken     = &Error{Code: "auth/invalid-access-token", Status: http.StatusUnauthorized, Message: "Token is invalid."}
	ErrExpiredAccessToken     = &Error{Code: "auth/expired-access-token", Status: http.StatusUnauthorized, Message: "Token has expired."}
	ErrInvalidCredentials     = &Error{Code: "auth/invalid-credentials", Status: http.StatusBadRequest, Message: "Invalid credentials."}
	ErrInvalidPassword        = &Error{Code: "auth/invalid-password", Status: http.StatusBadRequest, Message: "Your password is invalid."}
	ErrPasswordMismatch       = &Error{Code: "auth/password-mismatch", Status: http.StatusBadRequest, Message: "The passwords do not match."}
	ErrInsufficientPermission = &Error{Code: "auth/insufficient-permission", Status: http.StatusForbidden, Message: "You do not have the necessary permissions to access this resource."}
	ErrAlreadyLoggedIn        = &Error{Code: "auth/already-logged-in", Status: http.StatusUnauthorized, Message: "This account is already logged in on another device."}
	ErrOTPNotValid            = &Error{Code: "auth/otp-not-valid", Status: http.StatusBadRequest, Message: "The OTP code is invalid."}
	ErrOTPExpired             = &Error{Code: "auth/otp-code-expired", Status: http.StatusBadRequest, Message: "OTP has expired. Please request a new one."}
)

// Principal lookup and lifecycle failures.
var (
	ErrUserNotFound    = &Error{Code: "users/user-not-found", Status: http.StatusBadRequest, Message: "User does not exist."}
	ErrUserInactive    = &Error{Code: "users/user-not-found", Status: http.StatusForbidden, Message: "Your account is not active. Please contact the administrator to activate your account."}
	ErrPhoneTaken      = &Error{Code: "users/phonenumber-already-taken", Status: http.StatusBadRequest, Message: "This phone number is already taken."}
	ErrEmailTaken      = &Error{Code: "users/email-already-exist", Status: http.StatusBadRequest, Message: "This e-mail address is already taken."}
	ErrAccountDisabled = &Error{Code: "users/account-disabled", Status: http.StatusBadRequest, Message: "This account is disabled. Please request to activate the account."}
)

// Role management failures.
var (
	ErrRoleNotFound      = &Error{Code: "roles/role-not-found", Status: http.StatusBadRequest, Message: "Role not found."}
	ErrRoleAlreadyExists = &Error{Code: "roles/role-already-exist", Status: http.StatusBadRequest, Message: "This role already exists."}
)
