package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Password Recovery Metrics
	OTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_requests_total",
		Help: "Total number of OTP issuance requests.",
	}, []string{"status"}) // status: "sent", "ineligible", "delivery_failed" or "error"
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts.",
	}, []string{"status"}) // status: "success", "incorrect", "too_many_attempts", "no_active_request" or "error"
	PasswordResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_password_resets_total",
		Help: "Total number of password reset commits.",
	}, []string{"status"}) // status: "success" or "failed"
	OTPEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_emails_total",
		Help: "Total number of OTP delivery emails dispatched.",
	}, []string{"status"}) // status: "sent" or "failed"
)
