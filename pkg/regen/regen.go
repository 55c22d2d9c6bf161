// Package regen holds the life regeneration math and the anchor policy that decides when the
// persisted refill anchor moves. Nothing here touches storage.
package regen

import "time"

// Result is the outcome of recomputing life against the refill anchor.
type Result struct {
	Life         int
	NextRefillIn int // seconds until the next refill, 0 at cap
	RefillCount  int
}

// Compute returns the up-to-date life for a record and the remaining cooldown.
//
// At or above cap no cooldown is tracked. Without an anchor the cooldown is reported as one full
// interval but nothing accrues until an anchor is set. Otherwise every whole interval elapsed
// since the anchor restores one life, capped at maxLife.
func Compute(life, maxLife, intervalSec int, anchor *time.Time, now time.Time) Result {
	if life >= maxLife || intervalSec <= 0 {
		return Result{Life: life}
	}
	if anchor == nil {
		return Result{Life: life, NextRefillIn: intervalSec}
	}

	elapsed := ElapsedSeconds(*anchor, now)
	interval := int64(intervalSec)

	refills := elapsed / interval
	newLife := int64(life) + refills
	if newLife > int64(maxLife) {
		newLife = int64(maxLife)
	}

	next := int(interval - elapsed%interval)
	if newLife >= int64(maxLife) {
		next = 0
	}

	return Result{
		Life:         int(newLife),
		NextRefillIn: next,
		RefillCount:  clampInt(refills),
	}
}

// ElapsedSeconds returns whole seconds from anchor to now, never negative.
func ElapsedSeconds(anchor, now time.Time) int64 {
	d := now.Sub(anchor)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

func clampInt(v int64) int {
	const maxInt = int64(^uint(0) >> 1)
	if v > maxInt {
		return int(maxInt)
	}
	return int(v)
}
