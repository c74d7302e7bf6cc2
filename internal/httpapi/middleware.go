// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/holomush/accounts/internal/account"
)

type identityKey struct{}

// requireBearer authenticates the Authorization header and stores the
// caller's identity in the request context.
func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := bearerToken(r.Header.Get("Authorization"))
		if !found {
			writeJSON(w, http.StatusUnauthorized, response{Message: "Authorization token missing or malformed"})
			return
		}

		id, err := h.svc.Authenticate(token)
		if err != nil {
			h.logger.DebugContext(r.Context(), "bearer token rejected", "error", err)
			writeJSON(w, http.StatusForbidden, response{Message: "Invalid token"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func identityFrom(ctx context.Context) (account.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(account.Identity)
	return id, ok
}
