package server

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"quotecards/internal/util"
	"quotecards/pkg/coldstart"
	"quotecards/pkg/storage"
	"quotecards/pkg/store"
	"quotecards/services/channels/internal/app"
)

// statusClientClosed is logged when the caller went away before the response was written.
const statusClientClosed = 499

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{app.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{app.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{app.ErrIncorrectPassword, http.StatusUnauthorized, "incorrect_password"},
	{app.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{app.ErrForbidden, http.StatusForbidden, "forbidden"},
	{store.ErrPresetChannel, http.StatusForbidden, "preset_channel"},
	{app.ErrChannelNotFound, http.StatusNotFound, "channel_not_found"},
	{app.ErrCardNotFound, http.StatusNotFound, "card_not_found"},
	{app.ErrItemNotFound, http.StatusNotFound, "not_found"},
	{app.ErrJobNotFound, http.StatusNotFound, "job_not_found"},
	{storage.ErrObjectNotFound, http.StatusNotFound, "media_not_found"},
	{store.ErrUserExists, http.StatusConflict, "username_taken"},
	{storage.ErrMediaTooLarge, http.StatusRequestEntityTooLarge, "media_too_large"},
	{storage.ErrUnsupportedMedia, http.StatusUnsupportedMediaType, "unsupported_media"},
	{store.ErrStorageFull, http.StatusInsufficientStorage, "storage_full"},
	{coldstart.ErrExtractionFailed, http.StatusBadGateway, "generation_failed"},
	{app.ErrAsyncUnavailable, http.StatusServiceUnavailable, "queue_unavailable"},
	{app.ErrMediaUnavailable, http.StatusServiceUnavailable, "media_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
	{context.Canceled, statusClientClosed, "canceled"},
}

// writeAppError maps application errors to status codes. Unknown errors are logged and reported
// as internal errors without their message.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				util.LoggerFromContext(r.Context()).Error("request failed", "code", m.code, "err", err)
			}
			writeError(w, r, m.status, m.code, err.Error())
			return
		}
	}
	util.LoggerFromContext(r.Context()).Error("unexpected error", "err", err)
	writeError(w, r, http.StatusInternalServerError, "internal", "internal server error")
}

// handlerErrorCodes are written directly by handlers and middleware rather than mapped.
var handlerErrorCodes = []string{"internal", "invalid_input", "method_not_allowed", "rate_limited", "unauthorized"}

// ErrorCodes lists every code an error response can carry, sorted.
func ErrorCodes() []string {
	seen := map[string]struct{}{}
	for _, m := range errorMappings {
		seen[m.code] = struct{}{}
	}
	for _, code := range handlerErrorCodes {
		seen[code] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
