package payment_test

import (
	"testing"

	"airtel-gateway/internal/payment"
	"github.com/stretchr/testify/assert"
)

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected payment.Status
	}{
		{"TS", payment.StatusSuccessful},
		{"TF", payment.StatusFailed},
		{"TIP", payment.StatusInProgress},
		{"", payment.StatusUnknown},
		{"TA", payment.StatusUnknown},
		{"ts", payment.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, payment.StatusFromCode(tt.code))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, payment.StatusSuccessful.Terminal())
	assert.True(t, payment.StatusFailed.Terminal())
	assert.False(t, payment.StatusInProgress.Terminal())
	assert.False(t, payment.StatusUnknown.Terminal())
}

func TestStatus_Code(t *testing.T) {
	assert.Equal(t, "TS", payment.StatusSuccessful.Code())
	assert.Equal(t, "TF", payment.StatusFailed.Code())
	assert.Equal(t, "TIP", payment.StatusInProgress.Code())
	assert.Equal(t, "UNKNOWN", payment.StatusUnknown.Code())
}

func TestAttemptState_Terminal(t *testing.T) {
	assert.False(t, payment.AttemptPending.Terminal())
	assert.True(t, payment.AttemptConfirmed.Terminal())
	assert.True(t, payment.AttemptRejected.Terminal())
}
