// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "fmt"

// IntegrityStatus tracks the lifecycle of a file's integrity check.
type IntegrityStatus string

const (
	IntegrityUnknown     IntegrityStatus = "unknown"
	IntegrityPending     IntegrityStatus = "pending"
	IntegrityComplete    IntegrityStatus = "complete"
	IntegrityIncomplete  IntegrityStatus = "incomplete"
	IntegrityError       IntegrityStatus = "error"
	IntegrityQuarantined IntegrityStatus = "quarantined"
)

var integrityTransitions = map[IntegrityStatus][]IntegrityStatus{
	IntegrityUnknown:     {IntegrityPending, IntegrityError, IntegrityQuarantined},
	IntegrityPending:     {IntegrityComplete, IntegrityIncomplete, IntegrityError, IntegrityQuarantined},
	IntegrityComplete:    {IntegrityPending, IntegrityError},
	IntegrityIncomplete:  {IntegrityPending, IntegrityError, IntegrityQuarantined},
	IntegrityError:       {IntegrityPending, IntegrityQuarantined},
	IntegrityQuarantined: {}, // terminal, except via identity-based reset which bypasses validation
}

// CanTransitionIntegrity reports whether from -> to is an allowed move.
func CanTransitionIntegrity(from, to IntegrityStatus) bool {
	for _, allowed := range integrityTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateIntegrityTransition returns an InvariantError if from -> to is
// not in the allow-list.
func ValidateIntegrityTransition(from, to IntegrityStatus) error {
	if !CanTransitionIntegrity(from, to) {
		return &InvariantError{Msg: fmt.Sprintf("invalid integrity transition: %s -> %s", from, to)}
	}
	return nil
}

// ProcessedStatus tracks the overall processing disposition of a file.
type ProcessedStatus string

const (
	ProcessedNew              ProcessedStatus = "new"
	ProcessedSkippedHasEn2    ProcessedStatus = "skipped_has_en2"
	ProcessedConverted        ProcessedStatus = "converted"
	ProcessedConvertFailed    ProcessedStatus = "convert_failed"
	ProcessedGroupPendingPair ProcessedStatus = "group_pending_pair"
	ProcessedGroupProcessed   ProcessedStatus = "group_processed"
	ProcessedIgnored          ProcessedStatus = "ignored"
	ProcessedDuplicate        ProcessedStatus = "duplicate"
)

var processedTransitions = map[ProcessedStatus][]ProcessedStatus{
	ProcessedNew: {
		ProcessedSkippedHasEn2, ProcessedConverted, ProcessedConvertFailed,
		ProcessedGroupPendingPair, ProcessedIgnored, ProcessedDuplicate,
	},
	ProcessedConvertFailed:    {ProcessedNew, ProcessedIgnored},
	ProcessedGroupPendingPair: {ProcessedGroupProcessed, ProcessedNew},
	ProcessedGroupProcessed:   {},
	ProcessedSkippedHasEn2:    {ProcessedGroupProcessed},
	// Ignored and Duplicate are terminal for the planner's own purposes but
	// may still be frozen into GroupProcessed by group finalization.
	ProcessedIgnored:   {ProcessedGroupProcessed},
	ProcessedDuplicate: {ProcessedGroupProcessed},
	ProcessedConverted: {ProcessedGroupProcessed},
}

// ProcessedFinalStates are terminal from the planner's point of view (no
// further action is scheduled) though group finalization may still move
// some of them on to GroupProcessed.
var ProcessedFinalStates = map[ProcessedStatus]bool{
	ProcessedGroupProcessed: true,
	ProcessedSkippedHasEn2:  true,
	ProcessedConverted:      true,
	ProcessedIgnored:        true,
	ProcessedDuplicate:      true,
}

func CanTransitionProcessed(from, to ProcessedStatus) bool {
	for _, allowed := range processedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func ValidateProcessedTransition(from, to ProcessedStatus) error {
	if !CanTransitionProcessed(from, to) {
		return &InvariantError{Msg: fmt.Sprintf("invalid processed transition: %s -> %s", from, to)}
	}
	return nil
}

// PairStatus reflects presence of the two group members.
type PairStatus string

const (
	PairNone        PairStatus = "none"
	PairWaitingPair PairStatus = "waiting_pair"
	PairPaired      PairStatus = "paired"
)

// DerivePairStatus is a pure function of member presence (invariant 5).
func DerivePairStatus(originalPresent, stereoPresent bool) PairStatus {
	switch {
	case originalPresent && stereoPresent:
		return PairPaired
	case originalPresent || stereoPresent:
		return PairWaitingPair
	default:
		return PairNone
	}
}

// IntegrityMode selects how thoroughly the external checker inspects a file.
type IntegrityMode string

const (
	IntegrityModeQuick IntegrityMode = "quick"
	IntegrityModeFull  IntegrityMode = "full"
	IntegrityModeAuto  IntegrityMode = "auto"
)

// GroupProcessedStatus tracks the aggregate disposition of a group.
type GroupProcessedStatus string

const (
	GroupNew        GroupProcessedStatus = "new"
	GroupPartial    GroupProcessedStatus = "partial"
	GroupProcessed  GroupProcessedStatus = "group_processed"
	GroupErrorState GroupProcessedStatus = "error"
)

// InvariantError marks a logic-level violation (a bug, not bad data): an
// out-of-allow-list transition, a corrupt identity, or similar. It is
// always logged loudly and never silently swallowed.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.Msg }
