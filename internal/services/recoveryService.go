package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"memberport/internal/config"
	"memberport/internal/metrics"
	"memberport/internal/models"
	"memberport/internal/repositories"
	"memberport/internal/utils"
)

const (
	OTPLength = 6

	otpHashCost      = 10
	tokenHashCost    = 10
	passwordHashCost = 12
)

var (
	ErrAccountNotEligible = errors.New("account not found or not eligible for recovery")
	ErrNoActiveRequest    = errors.New("no active recovery request")
	ErrTooManyAttempts    = errors.New("too many incorrect attempts")
	ErrIncorrectCode      = errors.New("incorrect one-time code")
	ErrResetWindowExpired = errors.New("reset window expired")
	ErrInvalidResetToken  = errors.New("invalid reset token")
	ErrDeliveryFailed     = errors.New("failed to deliver one-time code")
	ErrWeakPassword       = errors.New("password does not meet the minimum length")
)

// ResetGrant is handed out exactly once after a correct OTP. The token is
// never stored in plaintext, so a lost grant means starting over.
type ResetGrant struct {
	Token     string    `json:"reset_token"`
	ExpiresAt time.Time `json:"reset_token_expires"`
}

// RecoveryService is the three-phase password recovery protocol: issue an
// OTP, exchange it for a reset grant, commit a new password with the grant.
type RecoveryService interface {
	RequestOTP(ctx context.Context, studentID string) error
	VerifyOTP(ctx context.Context, studentID, code string) (*ResetGrant, error)
	ResetPassword(ctx context.Context, studentID, resetToken, newPassword string) error
}

type recoveryService struct {
	userRepo     repositories.UserRepository
	recoveryRepo repositories.RecoveryRepository
	emailService EmailService
	cfg          config.RecoveryConfig

	generateOTP   func(length int) (string, error)
	generateToken func() (string, error)
}

func NewRecoveryService(
	userRepo repositories.UserRepository,
	recoveryRepo repositories.RecoveryRepository,
	emailService EmailService,
	cfg config.RecoveryConfig,
) RecoveryService {
	return &recoveryService{
		userRepo:      userRepo,
		recoveryRepo:  recoveryRepo,
		emailService:  emailService,
		cfg:           cfg,
		generateOTP:   utils.GenerateSecureOTP,
		generateToken: utils.GenerateResetToken,
	}
}

func (s *recoveryService) RequestOTP(ctx context.Context, studentID string) error {
	user, err := s.resolveMember(ctx, studentID)
	if err != nil {
		return err
	}

	code, err := s.generateOTP(OTPLength)
	if err != nil {
		return err
	}

	codeHash, err := bcrypt.GenerateFromPassword([]byte(code), otpHashCost)
	if err != nil {
		return err
	}

	rec := &models.RecoveryRecord{
		CodeHash:  string(codeHash),
		ExpiresAt: time.Now().Add(s.cfg.OTPWindow),
		Attempts:  0,
	}

	if _, err := s.recoveryRepo.Replace(ctx, user.ID, rec); err != nil {
		return err
	}

	// The record stays in place on delivery failure so the caller can
	// simply request again.
	if err := s.sendOTPEmail(user, code); err != nil {
		metrics.OTPEmailsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	metrics.OTPEmailsTotal.WithLabelValues("sent").Inc()

	return nil
}

func (s *recoveryService) VerifyOTP(ctx context.Context, studentID, code string) (*ResetGrant, error) {
	user, err := s.resolveMember(ctx, studentID)
	if err != nil {
		return nil, err
	}

	rec, err := s.recoveryRepo.FindActivePending(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNoActiveRequest
	}

	if rec.Attempts >= s.cfg.AttemptCeiling {
		return nil, ErrTooManyAttempts
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		if incErr := s.recoveryRepo.IncrementAttempts(ctx, rec.ID); incErr != nil {
			return nil, incErr
		}
		return nil, ErrIncorrectCode
	}

	token, err := s.generateToken()
	if err != nil {
		return nil, err
	}

	tokenHash, err := bcrypt.GenerateFromPassword([]byte(token), tokenHashCost)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.cfg.ResetWindow)
	ok, err := s.recoveryRepo.MarkVerified(ctx, rec.ID, string(tokenHash), expiresAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Another verification claimed the record first.
		return nil, ErrNoActiveRequest
	}

	return &ResetGrant{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *recoveryService) ResetPassword(ctx context.Context, studentID, resetToken, newPassword string) error {
	if len(newPassword) < s.cfg.PasswordMinLength {
		return ErrWeakPassword
	}

	user, err := s.resolveMember(ctx, studentID)
	if err != nil {
		return err
	}

	rec, err := s.recoveryRepo.FindActiveVerified(ctx, user.ID)
	if err != nil {
		return err
	}
	if rec == nil || rec.ResetTokenHash == "" {
		return ErrResetWindowExpired
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.ResetTokenHash), []byte(resetToken)); err != nil {
		// No attempt counter here: the token is high-entropy, brute force
		// within the window is infeasible.
		return ErrInvalidResetToken
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), passwordHashCost)
	if err != nil {
		return err
	}

	// Claim the record before touching the password so a concurrent
	// commit with the same grant cannot also go through.
	ok, err := s.recoveryRepo.MarkUsed(ctx, rec.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrResetWindowExpired
	}

	if err := s.userRepo.SetPassword(ctx, user.ID, string(passwordHash)); err != nil {
		return err
	}

	return s.recoveryRepo.DeleteOthers(ctx, user.ID, rec.ID)
}

func (s *recoveryService) resolveMember(ctx context.Context, studentID string) (*models.User, error) {
	user, err := s.userRepo.FindByStudentID(ctx, studentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAccountNotEligible
		}
		return nil, err
	}
	if !user.Eligible() {
		return nil, ErrAccountNotEligible
	}
	return user, nil
}

func (s *recoveryService) sendOTPEmail(user *models.User, code string) error {
	subject := "Your Password Reset Code"
	body := fmt.Sprintf(`
		<p>Hi,</p>
		<p>We received a request to reset the password for member <b>%s</b>.</p>
		<p style="font-size:18px"><b>Code: %s</b></p>
		<p>The code expires in %d minutes and can be used once.</p>
		<p>If you did not request a password reset, you can safely ignore this email.</p>
	`, user.StudentID, code, int(s.cfg.OTPWindow.Minutes()))

	return s.emailService.SendEmail(user.Email, subject, body)
}
