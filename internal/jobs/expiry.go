package jobs

import (
	"context"
	"time"
)

const ExpirySweepName = "enrollment_expiry_sweep"

// Expirer moves enrollments whose access window has closed to expired.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// ExpirySweep is the periodic job behind enrollment access windows.
type ExpirySweep struct {
	enrollments Expirer
	timeout     time.Duration
	now         func() time.Time
}

func NewExpirySweep(enrollments Expirer, timeout time.Duration) *ExpirySweep {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &ExpirySweep{enrollments: enrollments, timeout: timeout, now: time.Now}
}

func (j *ExpirySweep) Name() string { return ExpirySweepName }

func (j *ExpirySweep) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	_, err := j.enrollments.ExpireDue(ctx, j.now().UTC())
	return err
}
