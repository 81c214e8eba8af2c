package entity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatedHistoryKeepsLastFive(t *testing.T) {
	acc := &Account{PasswordHistory: []string{"h0"}}
	for i := 1; i <= 12; i++ {
		acc.PasswordHistory = acc.RotatedHistory(fmt.Sprintf("h%d", i), DefaultHistorySize)
		require.LessOrEqual(t, len(acc.PasswordHistory), DefaultHistorySize)
	}
	assert.Equal(t, []string{"h8", "h9", "h10", "h11", "h12"}, acc.PasswordHistory)
}

func TestRotatedHistoryDoesNotAliasReceiver(t *testing.T) {
	acc := &Account{PasswordHistory: make([]string, 1, 8)}
	acc.PasswordHistory[0] = "a"
	out := acc.RotatedHistory("b", 5)
	out[0] = "x"
	assert.Equal(t, "a", acc.PasswordHistory[0])
}

func TestIsLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&Account{}).IsLocked(now))
	assert.True(t, (&Account{LockUntil: &future}).IsLocked(now))
	assert.False(t, (&Account{LockUntil: &past}).IsLocked(now))
	assert.False(t, (&Account{LockUntil: &now}).IsLocked(now))
	assert.Equal(t, time.Minute, (&Account{LockUntil: &future}).LockRemaining(now))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.com "))
}

func TestCloneIsDeep(t *testing.T) {
	until := time.Now()
	hash := "abc"
	acc := &Account{PasswordHistory: []string{"h"}, LockUntil: &until, ResetTokenHash: &hash}
	c := acc.Clone()
	c.PasswordHistory[0] = "x"
	*c.ResetTokenHash = "y"
	assert.Equal(t, "h", acc.PasswordHistory[0])
	assert.Equal(t, "abc", *acc.ResetTokenHash)
}
