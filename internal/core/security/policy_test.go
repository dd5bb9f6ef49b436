package security

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docuvault/internal/core/apperror"
	appctx "docuvault/internal/core/context"
)

func TestOpenTransitionPolicy(t *testing.T) {
	p := OpenTransitionPolicy{}
	assert.NoError(t, p.CanApply(context.Background(), "approve", nil))
}

func TestRulePolicy_MFARule(t *testing.T) {
	p, err := NewRulePolicy(map[string]string{"approve": "mfa"})
	require.NoError(t, err)

	ctx := context.Background()

	err = p.CanApply(ctx, "approve", &appctx.UserContext{UserID: "u", MFAActive: true})
	assert.NoError(t, err)

	err = p.CanApply(ctx, "approve", &appctx.UserContext{UserID: "u", MFAActive: false})
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDomainViolation, appErr.Code)

	// Actions without a rule are unrestricted.
	assert.NoError(t, p.CanApply(ctx, "submit", &appctx.UserContext{UserID: "u"}))
}

func TestRulePolicy_PermissionRule(t *testing.T) {
	p, err := NewRulePolicy(map[string]string{
		"obsolete": `mfa && "DOCUMENT_OBSOLETE" in permissions`,
	})
	require.NoError(t, err)

	actor := &appctx.UserContext{
		UserID:      "u",
		MFAActive:   true,
		Permissions: []string{"DOCUMENT_READ", "DOCUMENT_OBSOLETE"},
	}
	assert.NoError(t, p.CanApply(context.Background(), "obsolete", actor))

	actor.Permissions = []string{"DOCUMENT_READ"}
	assert.Error(t, p.CanApply(context.Background(), "obsolete", actor))
}

func TestRulePolicy_NilActor(t *testing.T) {
	p, err := NewRulePolicy(map[string]string{"approve": "mfa"})
	require.NoError(t, err)

	err = p.CanApply(context.Background(), "approve", nil)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidIdentity, appErr.Code)
}

func TestNewRulePolicy_RejectsBadRules(t *testing.T) {
	_, err := NewRulePolicy(map[string]string{"approve": "mfa &&"})
	assert.Error(t, err, "syntax error")

	_, err = NewRulePolicy(map[string]string{"approve": `"not a bool"`})
	assert.Error(t, err, "non-bool output")
}
