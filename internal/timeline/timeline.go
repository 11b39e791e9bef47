package timeline

import (
	"sort"

	"blocktimeline/internal/dayrange"
	"blocktimeline/internal/model"
	"blocktimeline/internal/program"
	"blocktimeline/internal/search"
	"blocktimeline/internal/segment"
)

// Options controls dataset construction.
type Options struct {
	// ExtensionMonths pads the day axis forward for schedule planning.
	ExtensionMonths int
}

// Dataset is everything the renderer needs, derived from the raw blocks and
// the description table. It is read-only once built; a reload builds a new
// one.
type Dataset struct {
	Blocks   []model.RawBlock
	Segments []model.DaySegment
	Days     []model.ObservationDay
	Programs []model.Program

	// ByBlock maps a block id to positions in Segments.
	ByBlock map[int][]int
	// ByProgram maps a base program name to positions in Segments.
	ByProgram map[string][]int

	programIdx map[string]int
	candidates []search.Candidate
}

// Build segments blocks, builds the day axis and the program list, and
// indexes the result. Same inputs always give the same dataset.
func Build(blocks []model.RawBlock, table map[string]string, opts Options) *Dataset {
	ds := &Dataset{
		Blocks:     blocks,
		Segments:   segment.SegmentAll(blocks),
		ByBlock:    make(map[int][]int),
		ByProgram:  make(map[string][]int),
		programIdx: make(map[string]int),
	}
	ds.Days = dayrange.Build(ds.Segments, opts.ExtensionMonths)

	seenBlock := make(map[int]bool)
	for i, s := range ds.Segments {
		ds.ByBlock[s.BlockID] = append(ds.ByBlock[s.BlockID], i)
		ds.ByProgram[s.BaseProgram] = append(ds.ByProgram[s.BaseProgram], i)

		idx, ok := ds.programIdx[s.BaseProgram]
		if !ok {
			idx = len(ds.Programs)
			ds.programIdx[s.BaseProgram] = idx
			ds.Programs = append(ds.Programs, model.Program{
				Name:        s.BaseProgram,
				Description: program.DescribePtr(s.Program, table),
				Ordinal:     idx,
			})
		}

		// Count each block once even when it spans several days.
		if !seenBlock[s.BlockID] {
			seenBlock[s.BlockID] = true
			ds.Programs[idx].BlockCount++
			ds.Programs[idx].TotalHours += s.DurationHours
		}
	}
	if ds.Programs == nil {
		ds.Programs = []model.Program{}
	}

	ds.candidates = make([]search.Candidate, 0, len(ds.Programs))
	for _, p := range ds.Programs {
		ds.candidates = append(ds.candidates, search.Candidate{Name: p.Name, Description: p.Description})
	}
	return ds
}

// BlockSegments returns the segments of one block, or nil if unknown.
func (ds *Dataset) BlockSegments(id int) []model.DaySegment {
	return ds.collect(ds.ByBlock[id])
}

// ProgramSegments returns every segment of a base program.
func (ds *Dataset) ProgramSegments(name string) []model.DaySegment {
	return ds.collect(ds.ByProgram[name])
}

// Program looks up a base program by name.
func (ds *Dataset) Program(name string) (model.Program, bool) {
	idx, ok := ds.programIdx[name]
	if !ok {
		return model.Program{}, false
	}
	return ds.Programs[idx], true
}

// Search ranks the dataset's programs against query.
func (ds *Dataset) Search(query string) []search.Match {
	return search.Rank(query, ds.candidates)
}

// KeptBlockIDs returns the ids of blocks that survived the duration
// filter, ascending.
func (ds *Dataset) KeptBlockIDs() []int {
	ids := make([]int, 0, len(ds.ByBlock))
	for id := range ds.ByBlock {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (ds *Dataset) collect(positions []int) []model.DaySegment {
	if len(positions) == 0 {
		return nil
	}
	out := make([]model.DaySegment, 0, len(positions))
	for _, p := range positions {
		out = append(out, ds.Segments[p])
	}
	return out
}
