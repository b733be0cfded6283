package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mobile string
	code   string
}

func (r *recordingSender) SendOTP(_ context.Context, mobileNumber, code string) error {
	r.mobile = mobileNumber
	r.code = code
	return nil
}

func newOTPFixture() (*OTPService, *recordingSender, *MemoryCoordinator) {
	coord := NewMemoryCoordinator(nil)
	sender := &recordingSender{}
	svc := NewOTPService(coord, sender, testConfig(), testLogger())
	return svc, sender, coord
}

func TestOTPIssueAndVerify(t *testing.T) {
	svc, sender, _ := newOTPFixture()
	ctx := context.Background()

	require.NoError(t, svc.Issue(ctx, "+15550001111"))
	assert.Equal(t, "+15550001111", sender.mobile)
	assert.Len(t, sender.code, 6)

	result, err := svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	// Verification consumed the code
	result, err = svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	require.False(t, result.Valid)
	assert.Equal(t, "expired", result.Reason)
}

func TestOTPWrongCodeCountsAttempts(t *testing.T) {
	svc, sender, _ := newOTPFixture()
	ctx := context.Background()

	require.NoError(t, svc.Issue(ctx, "+15550001111"))

	for i := 0; i < 3; i++ {
		result, err := svc.Verify(ctx, "+15550001111", "000000")
		require.NoError(t, err)
		require.False(t, result.Valid)
		assert.Equal(t, "invalid", result.Reason)
	}

	// Budget exhausted: even the right code is rejected and the record dropped
	result, err := svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	require.False(t, result.Valid)
	assert.Equal(t, "max_attempts", result.Reason)

	result, err = svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	assert.Equal(t, "expired", result.Reason)
}

func TestOTPExpires(t *testing.T) {
	svc, sender, coord := newOTPFixture()
	ctx := context.Background()

	base := time.Now()
	coord.now = func() time.Time { return base }
	require.NoError(t, svc.Issue(ctx, "+15550001111"))

	coord.now = func() time.Time { return base.Add(6 * time.Minute) }
	result, err := svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	require.False(t, result.Valid)
	assert.Equal(t, "expired", result.Reason)
}

func TestOTPReissueResetsAttempts(t *testing.T) {
	svc, sender, _ := newOTPFixture()
	ctx := context.Background()

	require.NoError(t, svc.Issue(ctx, "+15550001111"))
	result, err := svc.Verify(ctx, "+15550001111", "000000")
	require.NoError(t, err)
	require.False(t, result.Valid)

	require.NoError(t, svc.Issue(ctx, "+15550001111"))
	result, err = svc.Verify(ctx, "+15550001111", sender.code)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestOTPStoreFailureSurfaces(t *testing.T) {
	svc := NewOTPService(failingCoordinator{}, &recordingSender{}, testConfig(), testLogger())

	err := svc.Issue(context.Background(), "+15550001111")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.Verify(context.Background(), "+15550001111", "123456")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
