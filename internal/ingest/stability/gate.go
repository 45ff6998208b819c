// stereoingest - state and scheduling core for unattended media audio ingestion
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stability implements the monotonic-time "file unchanged long
// enough" detector described in SPEC_FULL.md §5.4. It never inspects file
// contents and never makes a decision based on wall-clock time, so NTP
// steps and DST transitions cannot re-arm or disarm stability.
package stability

import (
	"time"

	"github.com/tomtom215/stereoingest/internal/ingest/models"
)

// Config parameterizes gate behavior.
type Config struct {
	// StableWait is how long (monotonic) stats must be unchanged before
	// an entry is considered stable.
	StableWait time.Duration
	// ArmDelay is the minimum time since the last change before stability
	// can be armed at all (guards against arming on the very first
	// observation of a file that is mid-write).
	ArmDelay time.Duration
	// ResetDelay is applied to next_check_at after an observed change.
	ResetDelay time.Duration
}

// DefaultConfig matches the values named in SPEC_FULL.md §5.4.
func DefaultConfig(stableWait time.Duration) Config {
	return Config{
		StableWait: stableWait,
		ArmDelay:   1 * time.Second,
		ResetDelay: 2 * time.Second,
	}
}

// Outcome reports what Evaluate decided and how entry.NextCheckAt was set.
type Outcome string

const (
	OutcomeChanged    Outcome = "changed"     // stats differed; full reset applied
	OutcomeArmed      Outcome = "armed"       // not returned by Evaluate: a newly armed entry reports Deferred or Eligible
	OutcomeDeferred   Outcome = "deferred"    // armed but not yet past StableWait
	OutcomeEligible   Outcome = "eligible"    // armed and past StableWait
)

// Evaluate applies rules 1-4 of SPEC_FULL.md §5.4 to entry given a fresh
// stat observation, mutating entry in place and returning what happened.
func Evaluate(cfg Config, entry *models.FileEntry, sizeBytes, mtime int64, nowWall time.Time, nowMono time.Duration) Outcome {
	if entry.SizeBytes != sizeBytes || entry.Mtime != mtime {
		entry.ApplyStatReset(sizeBytes, mtime, nowWall, nowMono, cfg.ResetDelay)
		return OutcomeChanged
	}

	if entry.StableSinceMono == nil {
		lastChange := nowMono
		if entry.LastChangeAt != nil {
			lastChange = *entry.LastChangeAt
		} else {
			// First observation: record it as the last change so ArmDelay
			// is measured from here.
			entry.LastChangeAt = &lastChange
		}
		if nowMono-lastChange >= cfg.ArmDelay {
			armed := nowMono
			entry.StableSinceMono = &armed
			wallMirror := nowWall.Unix()
			entry.StableSince = &wallMirror
			entry.UpdatedAt = nowWall.Unix()
			return evaluateArmed(cfg, entry, nowWall, nowMono)
		}
		// Not yet eligible to arm; check back shortly.
		entry.NextCheckAt = nowWall.Add(cfg.ArmDelay).Unix()
		return OutcomeDeferred
	}

	return evaluateArmed(cfg, entry, nowWall, nowMono)
}

func evaluateArmed(cfg Config, entry *models.FileEntry, nowWall time.Time, nowMono time.Duration) Outcome {
	elapsed := nowMono - *entry.StableSinceMono
	if elapsed < cfg.StableWait {
		remaining := cfg.StableWait - elapsed
		entry.NextCheckAt = nowWall.Add(remaining).Unix()
		entry.UpdatedAt = nowWall.Unix()
		return OutcomeDeferred
	}
	entry.NextCheckAt = nowWall.Unix()
	entry.UpdatedAt = nowWall.Unix()
	return OutcomeEligible
}

// IsStable reports whether entry is currently armed and past the wait.
func IsStable(cfg Config, entry *models.FileEntry, nowMono time.Duration) bool {
	if entry.StableSinceMono == nil {
		return false
	}
	return nowMono-*entry.StableSinceMono >= cfg.StableWait
}
