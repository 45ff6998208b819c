// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionIntegrity(t *testing.T) {
	assert.True(t, CanTransitionIntegrity(IntegrityUnknown, IntegrityPending))
	assert.True(t, CanTransitionIntegrity(IntegrityPending, IntegrityComplete))
	assert.True(t, CanTransitionIntegrity(IntegrityPending, IntegrityIncomplete))
	assert.False(t, CanTransitionIntegrity(IntegrityComplete, IntegrityIncomplete))
	assert.False(t, CanTransitionIntegrity(IntegrityQuarantined, IntegrityPending))
}

func TestValidateIntegrityTransitionReturnsInvariantError(t *testing.T) {
	err := ValidateIntegrityTransition(IntegrityQuarantined, IntegrityPending)
	require.Error(t, err)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
}

func TestDerivePairStatus(t *testing.T) {
	assert.Equal(t, PairNone, DerivePairStatus(false, false))
	assert.Equal(t, PairWaitingPair, DerivePairStatus(true, false))
	assert.Equal(t, PairWaitingPair, DerivePairStatus(false, true))
	assert.Equal(t, PairPaired, DerivePairStatus(true, true))
}

func TestCanTransitionProcessed(t *testing.T) {
	assert.True(t, CanTransitionProcessed(ProcessedNew, ProcessedSkippedHasEn2))
	assert.True(t, CanTransitionProcessed(ProcessedConvertFailed, ProcessedNew))
	assert.False(t, CanTransitionProcessed(ProcessedGroupProcessed, ProcessedNew))
}
