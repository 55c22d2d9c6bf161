package regen

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestAdvanceOnLoad(t *testing.T) {
	tests := []struct {
		name     string
		anchored bool
		r        Result
		want     Trigger
	}{
		{"refill consumed elapsed time", true, Result{Life: 4, NextRefillIn: 800, RefillCount: 1}, TriggerRefill},
		{"refill reached cap", true, Result{Life: 5, RefillCount: 2}, TriggerRefill},
		{"already at cap", true, Result{Life: 5}, TriggerCap},
		{"at cap without anchor", false, Result{Life: 5}, TriggerCap},
		{"mid window", true, Result{Life: 2, NextRefillIn: 300}, TriggerNone},
		{"no anchor yet starts the countdown", false, Result{Life: 2, NextRefillIn: 900}, TriggerSeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AdvanceOnLoad(5, tt.anchored, tt.r)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != TriggerNone, got.Advances())
		})
	}
}

func TestAdvanceOnSaveProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("saves that do not raise life never move the anchor", prop.ForAll(
		func(stored, drop int) bool {
			return !AdvanceOnSave(stored, stored-drop).Advances()
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 10),
	))

	properties.Property("saves that raise life always move the anchor", prop.ForAll(
		func(stored, raise int) bool {
			return AdvanceOnSave(stored, stored+raise) == TriggerAward
		},
		gen.IntRange(0, 10),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAdvanceOnCreate(t *testing.T) {
	assert.True(t, AdvanceOnCreate().Advances())
}

// Frequent saves must not stall natural regeneration: the anchor only moves when the load
// policy fires, so a refill still lands after one interval.
func TestFrequentSavesDoNotStallRegen(t *testing.T) {
	anchor := t0
	life := 3

	for minute := 1; minute <= 14; minute++ {
		assert.False(t, AdvanceOnSave(life, life).Advances())
	}

	r := Compute(life, 5, 900, &anchor, t0.Add(15*time.Minute))
	assert.Equal(t, 4, r.Life)
	assert.Equal(t, TriggerRefill, AdvanceOnLoad(5, true, r))
}
