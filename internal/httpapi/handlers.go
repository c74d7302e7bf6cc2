// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"

	"github.com/holomush/accounts/internal/account"
)

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phonenumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type editRequest struct {
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	PhoneNumber *string `json:"phonenumber"`
}

type forgotRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type resetRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	_, err := h.svc.Register(r.Context(), account.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.fail(w, r, err, messages{account.ErrConflict: "User with this email already exists."})
		return
	}
	ok(w, http.StatusCreated, "Registration successful. Please login.")
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Login successful",
		Token:   res.Token,
		User: &userJSON{
			ID:       res.Profile.ID.String(),
			Username: res.Profile.Username,
			Email:    res.Profile.Email,
		},
	})
}

func (h *Handler) editProfile(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req editRequest
	if !decode(w, r, &req) {
		return
	}

	changed, err := h.svc.EditProfile(r.Context(), id, account.ProfileUpdate{
		Username:    req.Username,
		PhoneNumber: req.PhoneNumber,
		Password:    req.Password,
	})
	if err != nil {
		h.fail(w, r, err, nil)
		return
	}
	if !changed {
		ok(w, http.StatusOK, "No changes to apply")
		return
	}
	ok(w, http.StatusOK, "Profile updated successfully")
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	if err := h.svc.DeleteAccount(r.Context(), id); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	ok(w, http.StatusOK, "User deleted successfully")
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		h.fail(w, r, err, nil)
		return
	}
	ok(w, http.StatusOK, "If an account with that email exists, an OTP has been sent.")
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		h.fail(w, r, err, messages{account.ErrInvalidInput: "Invalid email or OTP."})
		return
	}
	ok(w, http.StatusOK, "OTP verified successfully. You can now reset your password.")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		h.fail(w, r, err, messages{
			account.ErrInvalidInput: msgInvalidRequest,
			account.ErrForbidden:    "OTP not verified. Please verify OTP first.",
		})
		return
	}
	ok(w, http.StatusOK, "Password has been reset successfully.")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context())
	ok(w, http.StatusOK, "Logged out successfully (token discarded).")
}
