// Package segment maps block timestamps onto the observatory's astronomical
// day and splits blocks that cross the day boundary.
//
// An astronomical day starts at 15:00 UTC (local noon at UTC-3) and is
// labelled with the calendar date of that start, so a night that runs past
// UTC midnight keeps the evening's date.
package segment

import (
	"time"

	"blocktimeline/internal/model"
	"blocktimeline/internal/program"
)

const (
	// DayStartHour is the UTC hour at which an astronomical day begins.
	DayStartHour = 15

	// MinBlockDuration is the shortest block kept for segmentation.
	MinBlockDuration = 5 * time.Minute

	// HoursPerDay is the width of a full segment on the hour axis.
	HoursPerDay = 24
)

// AstronomicalDay returns the observation day of t as midnight UTC of its
// calendar date.
func AstronomicalDay(t time.Time) time.Time {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if u.Hour() < DayStartHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// DayStart returns the 15:00 UTC anchor of day.
func DayStart(day time.Time) time.Time {
	u := day.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), DayStartHour, 0, 0, 0, time.UTC)
}

// HoursBetween is (b - a) in fractional hours, at millisecond resolution.
func HoursBetween(a, b time.Time) float64 {
	return float64(b.Sub(a).Milliseconds()) / 3_600_000
}

// Keep reports whether block is long enough to be plotted.
func Keep(block model.RawBlock) bool {
	return block.Duration() >= MinBlockDuration
}

// Segment splits block into one DaySegment per astronomical day it touches.
// All segments carry BlockID=index and the duration of the whole block.
func Segment(block model.RawBlock, index int) []model.DaySegment {
	startDay := AstronomicalDay(block.Begin)
	endDay := AstronomicalDay(block.End)

	base := model.DaySegment{
		DurationHours: HoursBetween(block.Begin, block.End),
		BlockID:       index,
		Program:       block.Program,
		BaseProgram:   program.Normalize(block.Program),
	}

	if startDay.Equal(endDay) {
		seg := base
		seg.Day = startDay.Format(model.DayLayout)
		seg.X0 = HoursBetween(DayStart(startDay), block.Begin)
		seg.X1 = HoursBetween(DayStart(startDay), block.End)
		return []model.DaySegment{seg}
	}

	owner := block
	out := make([]model.DaySegment, 0, int(endDay.Sub(startDay).Hours()/HoursPerDay)+1)
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		seg := base
		seg.Day = day.Format(model.DayLayout)
		seg.Spanning = true
		seg.Owner = &owner
		seg.X0 = 0
		seg.X1 = HoursPerDay

		if day.Equal(startDay) {
			seg.X0 = HoursBetween(DayStart(day), block.Begin)
		}
		if day.Equal(endDay) {
			seg.X1 = HoursBetween(DayStart(day), block.End)
		}
		out = append(out, seg)
	}
	return out
}

// SegmentAll drops blocks shorter than MinBlockDuration and segments the
// rest. BlockID is the index into blocks, so it is stable under filtering.
func SegmentAll(blocks []model.RawBlock) []model.DaySegment {
	out := make([]model.DaySegment, 0, len(blocks))
	for i, b := range blocks {
		if !Keep(b) {
			continue
		}
		out = append(out, Segment(b, i)...)
	}
	return out
}
