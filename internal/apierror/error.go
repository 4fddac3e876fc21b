package apierror

import "net/http"

type (
	// An APIError represents the error format rendered by the focal API.
	APIError struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if apierr, ok := err.(*APIError); ok && apierr.HTTPCode != 0 {
		return apierr.HTTPCode
	}
	return http.StatusInternalServerError
}

// New returns a new APIError with the given message.
// It is rendered as a bad request.
func New(message string) *APIError {
	return &APIError{HTTPCode: http.StatusBadRequest, FieldError: err{Message: message}}
}

// NewWithTagCode returns a new APIError with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *APIError {
	return &APIError{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Unauthorized returns the error rendered for missing or invalid credentials.
func Unauthorized() *APIError {
	return NewWithTagCode(http.StatusUnauthorized, "invalid-auth", "Invalid login credentials.")
}

// Error implements error interface.
func (e *APIError) Error() string {
	return e.FieldError.Message
}

// Tag returns the error's tag.
func (e *APIError) Tag() string {
	return e.FieldError.Tag
}
