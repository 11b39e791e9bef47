package feed

import (
	"fmt"

	ical "github.com/arran4/golang-ical"

	"blocktimeline/internal/program"
	"blocktimeline/internal/timeline"
)

const productID = "-//blocktimeline//observation blocks//EN"

// ExportICS renders every plotted block of ds as a VEVENT so operators can
// subscribe to the night log from a calendar client. Short blocks dropped
// by the duration filter are not exported.
func ExportICS(ds *timeline.Dataset, table map[string]string) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	for _, id := range ds.KeptBlockIDs() {
		b := ds.Blocks[id]

		ev := cal.AddEvent(fmt.Sprintf("block-%d-%d@blocktimeline", id, b.Begin.Unix()))
		// DTSTAMP follows the block so the export is stable across reloads.
		ev.SetDtStampTime(b.End)
		ev.SetStartAt(b.Begin)
		ev.SetEndAt(b.End)
		ev.SetSummary(b.Program)

		desc := fmt.Sprintf("seq %d-%d", b.SeqStart, b.SeqEnd)
		if d, ok := program.Describe(b.Program, table); ok {
			desc = d + "\n" + desc
		}
		ev.SetDescription(desc)
	}

	return cal.Serialize()
}
