package player

// Defaults is the value table applied once when a request or a stored record leaves a field
// unset or non-positive.
type Defaults struct {
	MaxLife        int
	RefillInterval int // seconds
	Life           int // new records
	Level          int // new records
}

// StandardDefaults returns maxLife 5, refill every 900s, full life and level 1.
func StandardDefaults() Defaults {
	return Defaults{
		MaxLife:        5,
		RefillInterval: 900,
		Life:           5,
		Level:          1,
	}
}

// normalize replaces non-positive entries with the standard ones and keeps Life within MaxLife.
func (d Defaults) normalize() Defaults {
	std := StandardDefaults()
	d.MaxLife = positiveOr(d.MaxLife, std.MaxLife)
	d.RefillInterval = positiveOr(d.RefillInterval, std.RefillInterval)
	d.Level = positiveOr(d.Level, std.Level)
	if d.Life <= 0 || d.Life > d.MaxLife {
		d.Life = d.MaxLife
	}
	return d
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
