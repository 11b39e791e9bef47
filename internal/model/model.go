package model

import "time"

// DayLayout is the wire/display format of an observation day label.
const DayLayout = "2006-01-02"

// RawBlock is one continuous execution interval of an observing program,
// as produced by the block scraper. It is never modified after loading.
type RawBlock struct {
	Program  string    `json:"program"`
	Begin    time.Time `json:"begin"`
	End      time.Time `json:"end"`
	SeqStart int       `json:"seq_num_0"`
	SeqEnd   int       `json:"seq_num_1"`
}

// Duration is End - Begin.
func (b RawBlock) Duration() time.Duration {
	return b.End.Sub(b.Begin)
}

// DaySegment is the portion of a block that falls within one astronomical
// day. X0/X1 are hours since that day's 15:00 UTC start.
type DaySegment struct {
	Day string `json:"day"`

	X0 float64 `json:"x0"`
	X1 float64 `json:"x1"`

	// DurationHours is the duration of the whole original block, not of
	// this slice.
	DurationHours float64 `json:"duration_hours"`

	Spanning bool `json:"spanning"`
	BlockID  int  `json:"block_id"`

	// Owner is set only for spanning parts.
	Owner *RawBlock `json:"owner,omitempty"`

	Program     string `json:"program"`
	BaseProgram string `json:"base_program"`
}

// ObservationDay is one entry of the contiguous day axis.
type ObservationDay struct {
	Date string  `json:"date"`
	MJD  float64 `json:"mjd"`
}

// Program is a distinct base program name seen in the dataset.
type Program struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	// Ordinal is the first-seen index; the renderer maps it to a colour.
	Ordinal    int     `json:"ordinal"`
	BlockCount int     `json:"block_count"`
	TotalHours float64 `json:"total_hours"`
}
