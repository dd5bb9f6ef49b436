package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuvault/internal/core/apperror"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		action  Action
		current Status
		want    Status
		wantErr bool
	}{
		{ActionSubmit, StatusDraft, StatusSubmitted, false},
		{ActionApprove, StatusSubmitted, StatusApproved, false},
		{ActionReject, StatusSubmitted, StatusRejected, false},
		{ActionWithdraw, StatusSubmitted, StatusDraft, false},
		{ActionObsolete, StatusApproved, StatusObsolete, false},

		{ActionSubmit, StatusSubmitted, "", true},
		{ActionSubmit, StatusApproved, "", true},
		{ActionApprove, StatusDraft, "", true},
		{ActionWithdraw, StatusDraft, "", true},
		{ActionObsolete, StatusDraft, "", true},
		// Terminal states have no way out.
		{ActionSubmit, StatusRejected, "", true},
		{ActionObsolete, StatusObsolete, "", true},
		// Unknown action.
		{Action("archive"), StatusDraft, "", true},
	}

	for _, tt := range tests {
		t.Run(string(tt.action)+"/"+string(tt.current), func(t *testing.T) {
			got, err := ValidateTransition(tt.action, tt.current)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsInvalidTransition(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateTransition_ErrorNamesExpectedStatus(t *testing.T) {
	_, err := ValidateTransition(ActionApprove, StatusDraft)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)
	assert.Equal(t, string(StatusDraft), appErr.Details["current_status"])
	assert.Equal(t, string(StatusSubmitted), appErr.Details["expected_status"])
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusRejected.IsTerminal())
	assert.True(t, StatusObsolete.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, StatusSubmitted.IsTerminal())
	assert.False(t, StatusApproved.IsTerminal())
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		stored    Status
		expiresAt *time.Time
		want      Status
	}{
		{"approved past expiry derives expired", StatusApproved, &past, StatusExpired},
		{"approved future expiry stays approved", StatusApproved, &future, StatusApproved},
		{"approved without expiry stays approved", StatusApproved, nil, StatusApproved},
		{"expiry exactly now is not yet expired", StatusApproved, &now, StatusApproved},
		// Only stored APPROVED derives; expiry on other statuses is inert.
		{"draft past expiry stays draft", StatusDraft, &past, StatusDraft},
		{"submitted past expiry stays submitted", StatusSubmitted, &past, StatusSubmitted},
		{"obsolete past expiry stays obsolete", StatusObsolete, &past, StatusObsolete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveStatus(tt.stored, tt.expiresAt, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusObsolete} {
		assert.True(t, s.Valid(), s)
	}
	// Derived and garbage values are not storable.
	assert.False(t, StatusExpired.Valid())
	assert.False(t, Status("ARCHIVED").Valid())
	assert.False(t, Status("").Valid())
}
