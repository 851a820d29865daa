package cron

import (
	"context"
	"fmt"

	"github.com/foodway/foodway-backend/pkg/logger"
)

const otpSweepJobName = "otp-sweep"

type otpSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// OTPSweepJob drops OTP records past their retention. Redis-backed stores expire keys on their own.
type OTPSweepJob struct {
	logg    *logger.Logger
	sweeper otpSweeper
}

func NewOTPSweepJob(logg *logger.Logger, sweeper otpSweeper) (*OTPSweepJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("otp issuer required")
	}
	return &OTPSweepJob{logg: logg, sweeper: sweeper}, nil
}

func (j *OTPSweepJob) Name() string { return otpSweepJobName }

func (j *OTPSweepJob) Run(ctx context.Context) error {
	removed, err := j.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep otp records: %w", err)
	}
	if removed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "removed", removed), "otp records swept")
	}
	return nil
}
