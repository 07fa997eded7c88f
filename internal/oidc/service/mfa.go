package service

import (
	"context"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/openpass-dev/openpass/internal/oidc/store"
)

// MFAService manages TOTP enrollment for resource owners. Enrollment is
// two-step: EnrollTOTP stores a secret without enabling it, ActivateTOTP
// proves possession of the authenticator and turns the step-up on.
type MFAService struct {
	Store  store.Store
	Issuer string // issuer label shown in authenticator apps
}

// TOTPEnrollment is handed back to the user once, at enrollment time.
type TOTPEnrollment struct {
	Secret string
	URL    string // otpauth:// provisioning URL
}

// EnrollTOTP generates and stores a TOTP secret for the user. Login is
// unaffected until ActivateTOTP succeeds.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (TOTPEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	if user.MFARequired() {
		return TOTPEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPEnrollment{}, fmt.Errorf("failed to generate totp key: %w", err)
	}

	if err := s.Store.Users().UpdateTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return TOTPEnrollment{}, err
	}

	return TOTPEnrollment{Secret: key.Secret(), URL: key.URL()}, nil
}

// ActivateTOTP verifies a code against the enrolled secret and enables
// the login step-up.
func (s *MFAService) ActivateTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFARequired() {
		return ErrMFAAlreadyEnabled
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return ErrMFANotEnrolled
	}

	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidCredentials
	}

	return s.Store.Users().EnableTOTP(ctx, userID)
}

// DisableTOTP clears the secret and turns the step-up off.
func (s *MFAService) DisableTOTP(ctx context.Context, userID string) error {
	return s.Store.Users().DisableTOTP(ctx, userID)
}
