package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"memberport/internal/metrics"
	"memberport/internal/services"
	"memberport/internal/utils"
)

// User-facing failure messages are deliberately generic so responses do
// not reveal whether a member account exists or which check failed.
const (
	msgOTPSent       = "If the account exists, a verification code has been sent"
	msgInvalidCode   = "Invalid or expired code"
	msgInvalidReset  = "Invalid or expired reset request"
	msgPasswordShort = "Password is too short"
)

type AuthHandler struct {
	recoveryService services.RecoveryService
}

func NewAuthHandler(recoveryService services.RecoveryService) *AuthHandler {
	return &AuthHandler{recoveryService: recoveryService}
}

type forgotPasswordRequest struct {
	StudentID string `json:"student_id"`
}

type verifyOTPRequest struct {
	StudentID string `json:"student_id"`
	OTP       string `json:"otp"`
}

type resetPasswordRequest struct {
	StudentID   string `json:"student_id"`
	ResetToken  string `json:"reset_token"`
	NewPassword string `json:"new_password"`
}

func (a *AuthHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" {
		utils.SendJSONError(w, "student_id is required", http.StatusBadRequest)
		return
	}

	err := a.recoveryService.RequestOTP(r.Context(), studentID)
	switch {
	case err == nil:
		metrics.OTPRequestsTotal.WithLabelValues("sent").Inc()
	case errors.Is(err, services.ErrAccountNotEligible):
		// Same acknowledgment as success, no account enumeration.
		metrics.OTPRequestsTotal.WithLabelValues("ineligible").Inc()
		log.Warn().Msg("OTP requested for missing or ineligible account")
	case errors.Is(err, services.ErrDeliveryFailed):
		metrics.OTPRequestsTotal.WithLabelValues("delivery_failed").Inc()
		log.Error().Err(err).Msg("Failed to deliver OTP email")
		utils.SendJSONError(w, "Failed to send the verification email. Please try again.", http.StatusBadGateway)
		return
	default:
		metrics.OTPRequestsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Failed to issue OTP")
		utils.SendJSONError(w, "Something went wrong", http.StatusInternalServerError)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "message": msgOTPSent})
}

func (a *AuthHandler) VerifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	studentID := strings.TrimSpace(req.StudentID)
	code := strings.TrimSpace(req.OTP)
	if studentID == "" || code == "" {
		utils.SendJSONError(w, "student_id and otp are required", http.StatusBadRequest)
		return
	}

	grant, err := a.recoveryService.VerifyOTP(r.Context(), studentID, code)
	switch {
	case err == nil:
		metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
		utils.RespondWithJSON(w, http.StatusOK, grant)
	case errors.Is(err, services.ErrTooManyAttempts):
		metrics.OTPVerificationsTotal.WithLabelValues("too_many_attempts").Inc()
		utils.SendJSONError(w, msgInvalidCode, http.StatusTooManyRequests)
	case errors.Is(err, services.ErrIncorrectCode):
		metrics.OTPVerificationsTotal.WithLabelValues("incorrect").Inc()
		utils.SendJSONError(w, msgInvalidCode, http.StatusBadRequest)
	case errors.Is(err, services.ErrNoActiveRequest):
		metrics.OTPVerificationsTotal.WithLabelValues("no_active_request").Inc()
		utils.SendJSONError(w, msgInvalidCode, http.StatusBadRequest)
	case errors.Is(err, services.ErrAccountNotEligible):
		metrics.OTPVerificationsTotal.WithLabelValues("ineligible").Inc()
		utils.SendJSONError(w, msgInvalidCode, http.StatusBadRequest)
	default:
		metrics.OTPVerificationsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Failed to verify OTP")
		utils.SendJSONError(w, "Something went wrong", http.StatusInternalServerError)
	}
}

func (a *AuthHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	studentID := strings.TrimSpace(req.StudentID)
	resetToken := strings.TrimSpace(req.ResetToken)
	if studentID == "" || resetToken == "" {
		utils.SendJSONError(w, "student_id and reset_token are required", http.StatusBadRequest)
		return
	}

	err := a.recoveryService.ResetPassword(r.Context(), studentID, resetToken, req.NewPassword)
	switch {
	case err == nil:
		metrics.PasswordResetsTotal.WithLabelValues("success").Inc()
		utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "message": "Password updated"})
	case errors.Is(err, services.ErrWeakPassword):
		metrics.PasswordResetsTotal.WithLabelValues("failed").Inc()
		utils.SendJSONError(w, msgPasswordShort, http.StatusBadRequest)
	case errors.Is(err, services.ErrAccountNotEligible),
		errors.Is(err, services.ErrResetWindowExpired),
		errors.Is(err, services.ErrInvalidResetToken):
		metrics.PasswordResetsTotal.WithLabelValues("failed").Inc()
		log.Warn().Msg("Password reset commit rejected")
		utils.SendJSONError(w, msgInvalidReset, http.StatusBadRequest)
	default:
		metrics.PasswordResetsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("Failed to commit new password")
		utils.SendJSONError(w, "Something went wrong", http.StatusInternalServerError)
	}
}
