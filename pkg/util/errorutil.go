package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the bot surface and the ops API.
const (
	CodeInvalidCategory     = "INVALID_CATEGORY"
	CodePermissionDenied    = "PERMISSION_DENIED"
	CodeNoButtonsConfigured = "NO_BUTTONS_CONFIGURED"
	CodeSanctionFailed      = "SANCTION_FAILED"
	CodeStoreIO             = "STORE_IO"
	CodeRecordsSkipped      = "RECORDS_SKIPPED"
	CodeGatewayUnavailable  = "GATEWAY_UNAVAILABLE"
	CodeNotFound            = "NOT_FOUND"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInternal            = "INTERNAL_ERROR"
)

// Sentinels for errors.Is matching. Comparison is by Code only.
var (
	ErrInvalidCategory     = &DomainError{Code: CodeInvalidCategory}
	ErrPermissionDenied    = &DomainError{Code: CodePermissionDenied}
	ErrNoButtonsConfigured = &DomainError{Code: CodeNoButtonsConfigured}
	ErrSanctionFailed      = &DomainError{Code: CodeSanctionFailed}
	ErrStoreIO             = &DomainError{Code: CodeStoreIO}
	ErrRecordsSkipped      = &DomainError{Code: CodeRecordsSkipped}
	ErrGatewayUnavailable  = &DomainError{Code: CodeGatewayUnavailable}
	ErrNotFound            = &DomainError{Code: CodeNotFound}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewInvalidCategory(categoryID string) error {
	return NewDomainError(CodeInvalidCategory, "category is not valid", http.StatusBadRequest,
		map[string]any{"category_id": categoryID})
}

func NewPermissionDenied(message string) error {
	return NewDomainError(CodePermissionDenied, message, http.StatusForbidden, nil)
}

func NewNoButtonsConfigured() error {
	return NewDomainError(CodeNoButtonsConfigured, "no ticket buttons configured", http.StatusConflict, nil)
}

func NewSanctionFailed(userID, guildID string, err error) error {
	return &DomainError{
		Code:       CodeSanctionFailed,
		Message:    "sanction failed",
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"user_id": userID, "guild_id": guildID},
		Err:        err,
	}
}

func NewStoreIOError(op string, err error) error {
	return &DomainError{
		Code:       CodeStoreIO,
		Message:    op,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewRecordsSkipped reports stored records that could not be decoded while
// the rest of the set loaded.
func NewRecordsSkipped(skipped []string, err error) error {
	return &DomainError{
		Code:       CodeRecordsSkipped,
		Message:    fmt.Sprintf("%d unreadable records skipped", len(skipped)),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"skipped": skipped},
		Err:        err,
	}
}

func NewGatewayUnavailable(err error) error {
	return &DomainError{
		Code:       CodeGatewayUnavailable,
		Message:    "gateway unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// UserMessage renders an error as the short text shown to a chat user.
func UserMessage(err error) string {
	de := ToDomainError(err)
	switch de.Code {
	case CodeInvalidCategory:
		return "❌ The ticket category is not valid!"
	case CodePermissionDenied:
		return "❌ You do not have permission to use this command!"
	case CodeNoButtonsConfigured:
		return "❌ No ticket buttons have been set up yet!"
	case CodeGatewayUnavailable:
		return "❌ Discord is not reachable right now, please try again."
	case CodeValidationFailed:
		return "❌ " + de.Message
	case CodeNotFound:
		return "❌ That no longer exists, ask an admin to post the menu again."
	default:
		return "❌ Something went wrong, please try again."
	}
}
