// Package dayrange builds the contiguous observation-day axis of a timeline.
package dayrange

import (
	"sort"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/teambition/rrule-go"

	appLog "blocktimeline/internal/log"
	"blocktimeline/internal/model"
	"blocktimeline/internal/segment"
)

// mjdOffset converts a Julian Date to a Modified Julian Date.
const mjdOffset = 2400000.5

// Build returns every calendar day between the first and last day touched
// by segments, inclusive, with no holes. extensionMonths > 0 pushes the
// upper bound that many months forward for schedule planning.
func Build(segments []model.DaySegment, extensionMonths int) []model.ObservationDay {
	days := distinctDays(segments)
	if len(days) == 0 {
		return []model.ObservationDay{}
	}

	first := days[0]
	last := days[len(days)-1]
	if extensionMonths > 0 {
		last = last.AddDate(0, extensionMonths, 0)
	}

	dates, err := enumerate(first, last)
	if err != nil {
		// Only reachable with a corrupt rule; fall back to stepping by hand.
		appLog.Error("dayrange: rrule enumeration failed", err, "first", first, "last", last)
		dates = nil
		for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d)
		}
	}

	out := make([]model.ObservationDay, 0, len(dates))
	for _, d := range dates {
		out = append(out, NewDay(d))
	}
	return out
}

// NewDay labels a calendar date and computes the MJD of its 15:00 UTC start.
func NewDay(d time.Time) model.ObservationDay {
	start := segment.DayStart(d)
	return model.ObservationDay{
		Date: start.Format(model.DayLayout),
		MJD:  julian.TimeToJD(start) - mjdOffset,
	}
}

// enumerate lists midnight-UTC dates from first to last using a DAILY rule.
func enumerate(first, last time.Time) ([]time.Time, error) {
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}

// distinctDays parses the day labels of segments, deduplicates and sorts.
func distinctDays(segments []model.DaySegment) []time.Time {
	seen := make(map[string]struct{}, len(segments))
	out := make([]time.Time, 0)
	for _, s := range segments {
		if _, ok := seen[s.Day]; ok {
			continue
		}
		seen[s.Day] = struct{}{}

		d, err := time.ParseInLocation(model.DayLayout, s.Day, time.UTC)
		if err != nil {
			appLog.Debug("dayrange: skipping unparsable day label", "day", s.Day, "block_id", s.BlockID)
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
