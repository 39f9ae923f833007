package eventmodels

import (
	"errors"
	"fmt"
	"net/http"
)

// ApiError is returned by every failed call against the account api.
type ApiError struct {
	StatusCode int    `json:"httpStatus"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Cause      error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("api error %d (%s): %v", e.StatusCode, e.Code, e.Cause)
	}

	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func (e *ApiError) Unwrap() error {
	return e.Cause
}

func (e *ApiError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsUnauthorized reports whether err wraps an *ApiError carrying a 401.
func IsUnauthorized(err error) bool {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.IsUnauthorized()
	}

	return false
}

func NewApiError(statusCode int, code, message string, cause error) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Cause:      cause,
	}
}
