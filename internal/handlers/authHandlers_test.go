package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memberport/internal/services"
)

type fakeRecoveryService struct {
	requestErr error
	verifyErr  error
	resetErr   error
	grant      *services.ResetGrant
}

func (f *fakeRecoveryService) RequestOTP(_ context.Context, _ string) error {
	return f.requestErr
}

func (f *fakeRecoveryService) VerifyOTP(_ context.Context, _, _ string) (*services.ResetGrant, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return f.grant, nil
}

func (f *fakeRecoveryService) ResetPassword(_ context.Context, _, _, _ string) error {
	return f.resetErr
}

func doRequest(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestForgotPasswordHandler(t *testing.T) {
	t.Run("acknowledges without revealing account existence", func(t *testing.T) {
		okHandler := NewAuthHandler(&fakeRecoveryService{})
		missingHandler := NewAuthHandler(&fakeRecoveryService{requestErr: services.ErrAccountNotEligible})

		okResp := doRequest(t, okHandler.ForgotPasswordHandler, `{"student_id":"6409876543"}`)
		missingResp := doRequest(t, missingHandler.ForgotPasswordHandler, `{"student_id":"no-such-member"}`)

		assert.Equal(t, http.StatusOK, okResp.Code)
		assert.Equal(t, http.StatusOK, missingResp.Code)
		assert.Equal(t, okResp.Body.String(), missingResp.Body.String())
	})

	t.Run("surfaces delivery failure", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{requestErr: services.ErrDeliveryFailed})

		resp := doRequest(t, h.ForgotPasswordHandler, `{"student_id":"6409876543"}`)
		assert.Equal(t, http.StatusBadGateway, resp.Code)
	})

	t.Run("requires student_id", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{})

		resp := doRequest(t, h.ForgotPasswordHandler, `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestVerifyOTPHandler(t *testing.T) {
	t.Run("returns the reset grant", func(t *testing.T) {
		expires := time.Now().Add(15 * time.Minute).UTC().Truncate(time.Second)
		h := NewAuthHandler(&fakeRecoveryService{grant: &services.ResetGrant{
			Token:     "a1b2c3",
			ExpiresAt: expires,
		}})

		resp := doRequest(t, h.VerifyOTPHandler, `{"student_id":"6409876543","otp":"123456"}`)
		require.Equal(t, http.StatusOK, resp.Code)

		var grant services.ResetGrant
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &grant))
		assert.Equal(t, "a1b2c3", grant.Token)
		assert.True(t, grant.ExpiresAt.Equal(expires))
	})

	t.Run("failure responses do not reveal which check failed", func(t *testing.T) {
		failures := []error{
			services.ErrAccountNotEligible,
			services.ErrNoActiveRequest,
			services.ErrIncorrectCode,
		}

		var bodies []string
		for _, failure := range failures {
			h := NewAuthHandler(&fakeRecoveryService{verifyErr: failure})
			resp := doRequest(t, h.VerifyOTPHandler, `{"student_id":"6409876543","otp":"000000"}`)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			bodies = append(bodies, resp.Body.String())
		}

		for _, body := range bodies {
			assert.Equal(t, bodies[0], body)
		}
	})

	t.Run("too many attempts", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{verifyErr: services.ErrTooManyAttempts})

		resp := doRequest(t, h.VerifyOTPHandler, `{"student_id":"6409876543","otp":"123456"}`)
		assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	})

	t.Run("requires student_id and otp", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{})

		resp := doRequest(t, h.VerifyOTPHandler, `{"student_id":"6409876543"}`)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestResetPasswordHandler(t *testing.T) {
	body := `{"student_id":"6409876543","reset_token":"a1b2c3","new_password":"NewPass123"}`

	t.Run("updates the password", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{})

		resp := doRequest(t, h.ResetPasswordHandler, body)
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("generic failure for invalid or expired grants", func(t *testing.T) {
		failures := []error{
			services.ErrAccountNotEligible,
			services.ErrResetWindowExpired,
			services.ErrInvalidResetToken,
		}

		var bodies []string
		for _, failure := range failures {
			h := NewAuthHandler(&fakeRecoveryService{resetErr: failure})
			resp := doRequest(t, h.ResetPasswordHandler, body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			bodies = append(bodies, resp.Body.String())
		}

		for _, b := range bodies {
			assert.Equal(t, bodies[0], b)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		h := NewAuthHandler(&fakeRecoveryService{resetErr: services.ErrWeakPassword})

		resp := doRequest(t, h.ResetPasswordHandler, body)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "too short")
	})
}
