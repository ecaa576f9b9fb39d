package domain

import (
	"iter"
	"slices"
)

// Category is an observation table of the labour care guide
type Category string

const (
	CategorySupportiveCare Category = "supportive_care"
	CategoryFHR            Category = "fhr"
	CategoryBaby           Category = "baby"
	CategoryWoman          Category = "woman"
	CategoryContractions   Category = "contractions"
	CategoryMedication     Category = "medication"
	CategoryDecision       Category = "decision"
	CategoryInitials       Category = "initials"
)

// Categories lists every observation table in display order
var Categories = []Category{
	CategorySupportiveCare,
	CategoryFHR,
	CategoryBaby,
	CategoryWoman,
	CategoryContractions,
	CategoryMedication,
	CategoryDecision,
	CategoryInitials,
}

// Window lengths in minutes, measured from the stage anchor
const (
	FirstStageWindow  = 12 * 60
	SecondStageWindow = 3 * 60
)

const defaultInterval = 30

type stageIntervals struct {
	first  int
	second int
}

var categoryIntervals = map[Category]stageIntervals{
	CategoryFHR:          {first: 15, second: 15},
	CategoryBaby:         {first: 60, second: 30},
	CategoryContractions: {first: 30, second: 15},
}

// Interval returns the sampling interval in minutes for a category and stage
func Interval(c Category, secondStage bool) int {
	iv, ok := categoryIntervals[c]
	if !ok {
		return defaultInterval
	}
	if secondStage {
		return iv.second
	}
	return iv.first
}

// Schedule is the ordered sample times of one category for one stage. It is
// a value: iterating it never changes it and the same inputs always yield the
// same times.
type Schedule struct {
	Category    Category
	Anchor      *ClockTime
	SecondStage bool
}

// Generate returns the schedule of a category from an anchor. A nil anchor
// yields an empty schedule.
func Generate(c Category, anchor *ClockTime, secondStage bool) Schedule {
	var a *ClockTime
	if anchor != nil {
		v := *anchor
		a = &v
	}
	return Schedule{Category: c, Anchor: a, SecondStage: secondStage}
}

// Interval returns the schedule's sampling interval in minutes
func (s Schedule) Interval() int {
	return Interval(s.Category, s.SecondStage)
}

// Window returns the schedule's window length in minutes
func (s Schedule) Window() int {
	if s.SecondStage {
		return SecondStageWindow
	}
	return FirstStageWindow
}

// All yields each sample time: the first interval boundary strictly after the
// anchor, then every interval up to and including anchor+window.
func (s Schedule) All() iter.Seq[ClockTime] {
	return func(yield func(ClockTime) bool) {
		if s.Anchor == nil {
			return
		}
		interval := ClockTime(s.Interval())
		anchor := *s.Anchor
		end := anchor + ClockTime(s.Window())
		for t := (anchor/interval + 1) * interval; t <= end; t += interval {
			if !yield(t) {
				return
			}
		}
	}
}

// Times collects the schedule into a slice
func (s Schedule) Times() []ClockTime {
	return slices.Collect(s.All())
}
