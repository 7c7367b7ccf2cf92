package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
)

// remoteErrorBody matches the error envelope written by pkg/httputil.
type remoteErrorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// turns it into an error. Structured bodies keep their code and message.
func ParseResponseError(resp *http.Response, remote string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", remote, resp.StatusCode, err)
	}

	var parsed remoteErrorBody
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		return mapRemoteError(resp.StatusCode, parsed.Error.Code, remote+": "+parsed.Error.Message)
	}
	return fmt.Errorf("%s returned status %d: %s", remote, resp.StatusCode, string(body))
}

func mapRemoteError(status int, code, message string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFoundMessage(message)
	case status == http.StatusBadRequest:
		return apperrors.Validation(message)
	case status == http.StatusConflict:
		return apperrors.Conflict(message)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(message)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: code, Message: message, Status: status, Err: apperrors.ErrServiceUnavail}
	case status >= 500:
		return fmt.Errorf("server error (%d/%s): %s", status, code, message)
	default:
		return &apperrors.AppError{Code: code, Message: message, Status: status}
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
