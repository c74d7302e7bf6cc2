// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/accounts/internal/account"
	"github.com/holomush/accounts/pkg/errutil"
)

// Messages shared by several routes.
const (
	msgServerError    = "Server error"
	msgBadBody        = "Invalid request body."
	msgInvalidRequest = "Invalid request."
	msgUserNotFound   = "User not found"
)

type userJSON struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// response is the envelope every route answers with.
type response struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Token   string    `json:"token,omitempty"`
	User    *userJSON `json:"user,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Success: true, Message: msg})
}

// decode reads a JSON body into dst. It answers 400 itself and returns
// false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: msgBadBody})
		return false
	}
	return true
}

// messages overrides the default message for a sentinel on one route.
type messages map[error]string

// classes maps sentinels to HTTP statuses, most specific first.
var classes = []struct {
	sentinel error
	status   int
	message  string
}{
	{account.ErrInvalidInput, http.StatusBadRequest, msgInvalidRequest},
	{account.ErrConflict, http.StatusConflict, "Conflict."},
	{account.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{account.ErrInvalidToken, http.StatusForbidden, "Invalid token"},
	{account.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{account.ErrNotFound, http.StatusNotFound, msgUserNotFound},
}

// fail answers with the status and message for err. Unclassified errors
// are logged and reported as a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, overrides messages) {
	for _, c := range classes {
		if !errors.Is(err, c.sentinel) {
			continue
		}
		msg, found := overrides[c.sentinel]
		if !found {
			msg = c.message
			if c.sentinel == account.ErrInvalidInput {
				msg = invalidInputMessage(err)
			}
		}
		writeJSON(w, c.status, response{Message: msg})
		return
	}

	errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	writeJSON(w, http.StatusInternalServerError, response{Message: msgServerError})
}

// invalidInputMessage names the offending field when the error carries one.
func invalidInputMessage(err error) string {
	if oopsErr, isOops := oops.AsOops(err); isOops {
		if field, ok := oopsErr.Context()["field"].(string); ok && field != "" {
			return fmt.Sprintf("Invalid %s.", field)
		}
	}
	return msgInvalidRequest
}
