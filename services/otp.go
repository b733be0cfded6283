package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"

	"chatwire/config"
	"chatwire/utils"
)

const otpKeyPrefix = "otp:"

// SMSSender delivers a passcode to a phone number. The production
// implementation sits in front of a third-party SMS gateway; LogSender is
// used in development.
type SMSSender interface {
	SendOTP(ctx context.Context, mobileNumber, code string) error
}

// LogSender logs passcodes instead of sending them
type LogSender struct {
	Logger *utils.Logger
}

func (ls *LogSender) SendOTP(_ context.Context, mobileNumber, code string) error {
	ls.Logger.Info("OTP generated (development mode, not sent)", "mobile", mobileNumber, "otp", code)
	return nil
}

// VerifyResult describes the outcome of one OTP verification attempt
type VerifyResult struct {
	Valid   bool
	Reason  string // expired, max_attempts, invalid
	Message string
}

type otpRecord struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

// OTPService issues one-time passcodes and verifies them with a bounded
// attempt count, both backed by the coordination store.
type OTPService struct {
	coord    Coordinator
	sender   SMSSender
	logger   *utils.Logger
	cfg      *config.Config
	generate func() (string, error)
}

func NewOTPService(coord Coordinator, sender SMSSender, cfg *config.Config, logger *utils.Logger) *OTPService {
	return &OTPService{
		coord:    coord,
		sender:   sender,
		logger:   logger,
		cfg:      cfg,
		generate: generateCode,
	}
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Issue generates a passcode, stores it with a short TTL, and hands it to
// the SMS sender
func (s *OTPService) Issue(ctx context.Context, mobileNumber string) error {
	code, err := s.generate()
	if err != nil {
		return err
	}

	data, err := json.Marshal(otpRecord{Code: code})
	if err != nil {
		return fmt.Errorf("failed to marshal OTP record: %w", err)
	}
	if err := s.coord.Set(ctx, otpKeyPrefix+mobileNumber, string(data), s.cfg.OTPTTL); err != nil {
		return err
	}

	if err := s.sender.SendOTP(ctx, mobileNumber, code); err != nil {
		return fmt.Errorf("failed to send OTP: %w", err)
	}
	s.logger.Info("Issued OTP", "mobile", mobileNumber)
	return nil
}

// Verify checks a submitted passcode. Wrong codes count toward a maximum
// attempt budget; hitting the budget or succeeding both consume the stored
// passcode.
func (s *OTPService) Verify(ctx context.Context, mobileNumber, code string) (*VerifyResult, error) {
	key := otpKeyPrefix + mobileNumber

	raw, ok, err := s.coord.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &VerifyResult{Valid: false, Reason: "expired", Message: "OTP has expired. Please request a new one."}, nil
	}

	var record otpRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, fmt.Errorf("corrupt OTP record for %s: %w", mobileNumber, err)
	}

	if record.Attempts >= s.cfg.OTPMaxAttempts {
		_ = s.coord.Del(ctx, key)
		return &VerifyResult{Valid: false, Reason: "max_attempts", Message: "Maximum attempts exceeded. Please request a new OTP."}, nil
	}

	if record.Code != code {
		record.Attempts++
		data, _ := json.Marshal(record)
		if err := s.coord.Set(ctx, key, string(data), s.cfg.OTPTTL); err != nil {
			return nil, err
		}
		remaining := s.cfg.OTPMaxAttempts - record.Attempts
		return &VerifyResult{Valid: false, Reason: "invalid", Message: fmt.Sprintf("Invalid OTP. %d attempts remaining.", remaining)}, nil
	}

	_ = s.coord.Del(ctx, key)
	return &VerifyResult{Valid: true, Message: "OTP verified successfully"}, nil
}
