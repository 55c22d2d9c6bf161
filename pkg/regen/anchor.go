package regen

// Trigger names the event that moved the anchor. Empty means the anchor stays put.
type Trigger string

const (
	TriggerNone   Trigger = ""
	TriggerCreate Trigger = "create"
	TriggerRefill Trigger = "refill"
	TriggerCap    Trigger = "cap"
	TriggerAward  Trigger = "award"
	TriggerSeed   Trigger = "seed"
)

// AdvanceOnCreate is the first anchor a record ever gets.
func AdvanceOnCreate() Trigger {
	return TriggerCreate
}

// AdvanceOnLoad decides whether a load that recomputed r must restart the refill window.
// Natural refills consume the elapsed time, and a record sitting at cap keeps its anchor at the
// present so idle time never counts toward a later window. A record below cap that has no
// anchor gets one, which starts its first countdown.
func AdvanceOnLoad(maxLife int, anchored bool, r Result) Trigger {
	switch {
	case r.RefillCount > 0:
		return TriggerRefill
	case r.Life >= maxLife:
		return TriggerCap
	case !anchored:
		return TriggerSeed
	default:
		return TriggerNone
	}
}

// AdvanceOnSave decides whether a client save moves the anchor. Only a strict increase of the
// stored life does; payload, level and metadata updates never do.
func AdvanceOnSave(storedLife, newLife int) Trigger {
	if newLife > storedLife {
		return TriggerAward
	}
	return TriggerNone
}

// Advances reports whether t moves the anchor.
func (t Trigger) Advances() bool {
	return t != TriggerNone
}
