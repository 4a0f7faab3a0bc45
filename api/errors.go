package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/djvang/pdftron-sign-app/interfaces"
)

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 4096

// StatusFor maps an error returned by a service to the HTTP status code sent
// to the client.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrAccessDenied),
		errors.Is(err, interfaces.ErrUnknownSigner):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrContractNotFound),
		errors.Is(err, interfaces.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrInvalidContract),
		errors.Is(err, interfaces.ErrInvalidPredicate),
		errors.Is(err, interfaces.ErrUnsupportedMode):
		return http.StatusBadRequest
	case errors.Is(err, interfaces.ErrLedgerUnavailable),
		errors.Is(err, interfaces.ErrCustodyUnavailable),
		errors.Is(err, interfaces.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError sends err with the status chosen by StatusFor.
func WriteError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}

// ResponseError reads the body of a failed response and wraps the sentinel
// the status code stands for. byStatus is consulted first so each client can
// resolve codes that are ambiguous between services; 5xx codes and anything
// unmapped wrap unavailable.
func ResponseError(resp *http.Response, byStatus map[int]error, unavailable error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))

	if sentinel, ok := byStatus[resp.StatusCode]; ok {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return fmt.Errorf("%w: server returned %d: %s", unavailable, resp.StatusCode, msg)
}
