package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocktimeline/internal/model"
)

func at(day, hour, min int) time.Time {
	return time.Date(2024, 5, day, hour, min, 0, 0, time.UTC)
}

func sampleBlocks() []model.RawBlock {
	return []model.RawBlock{
		{Program: "BLOCK-55_v2", Begin: at(1, 22, 0), End: at(2, 2, 0), SeqStart: 1, SeqEnd: 40},
		{Program: "BLOCK-55_v3", Begin: at(2, 13, 0), End: at(2, 17, 0), SeqStart: 41, SeqEnd: 90},
		{Program: "BLOCK-12", Begin: at(2, 3, 0), End: at(2, 3, 2), SeqStart: 91, SeqEnd: 92},
		{Program: "BLOCK-12_hexapods", Begin: at(4, 1, 0), End: at(4, 2, 0), SeqStart: 93, SeqEnd: 120},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	table := map[string]string{"BLOCK-T55": "Test slew", "BLOCK-12": "Dome flats"}
	ds := Build(sampleBlocks(), table, Options{})

	// Block 2 is shorter than five minutes; block 1 spans two days.
	require.Len(t, ds.Segments, 4)
	assert.Equal(t, []int{0, 1, 3}, ds.KeptBlockIDs())

	var days []string
	for _, d := range ds.Days {
		days = append(days, d.Date)
	}
	assert.Equal(t, []string{"2024-05-01", "2024-05-02", "2024-05-03"}, days)

	require.Len(t, ds.Programs, 2)
	assert.Equal(t, "BLOCK-55", ds.Programs[0].Name)
	assert.Equal(t, 0, ds.Programs[0].Ordinal)
	require.NotNil(t, ds.Programs[0].Description)
	assert.Equal(t, "Test slew", *ds.Programs[0].Description)
	assert.Equal(t, 2, ds.Programs[0].BlockCount)
	assert.InDelta(t, 8.0, ds.Programs[0].TotalHours, 1e-9)

	assert.Equal(t, "BLOCK-12", ds.Programs[1].Name)
	assert.Equal(t, 1, ds.Programs[1].Ordinal)
	assert.Equal(t, 1, ds.Programs[1].BlockCount)
}

func TestIndexes(t *testing.T) {
	t.Parallel()

	ds := Build(sampleBlocks(), nil, Options{})

	segs := ds.BlockSegments(1)
	require.Len(t, segs, 2)
	for _, s := range segs {
		assert.Equal(t, 1, s.BlockID)
		assert.True(t, s.Spanning)
	}

	assert.Nil(t, ds.BlockSegments(2), "filtered block has no segments")
	assert.Nil(t, ds.BlockSegments(42))

	assert.Len(t, ds.ProgramSegments("BLOCK-55"), 3)
	assert.Len(t, ds.ProgramSegments("BLOCK-12"), 1)
	assert.Nil(t, ds.ProgramSegments("nope"))

	p, ok := ds.Program("BLOCK-12")
	require.True(t, ok)
	assert.Nil(t, p.Description)

	_, ok = ds.Program("nope")
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	t.Parallel()

	ds := Build(sampleBlocks(), map[string]string{"BLOCK-T55": "Test slew"}, Options{})

	got := ds.Search("slew")
	require.Len(t, got, 1)
	assert.Equal(t, "BLOCK-55", got[0].Name)

	got = ds.Search("blk")
	assert.Len(t, got, 2)
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	table := map[string]string{"BLOCK-T55": "Test slew"}
	a := Build(sampleBlocks(), table, Options{ExtensionMonths: 1})
	b := Build(sampleBlocks(), table, Options{ExtensionMonths: 1})

	assert.Equal(t, a.Segments, b.Segments)
	assert.Equal(t, a.Days, b.Days)
	assert.Equal(t, a.Programs, b.Programs)
	assert.Equal(t, "2024-06-03", a.Days[len(a.Days)-1].Date)
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	ds := Build(nil, nil, Options{})
	assert.Empty(t, ds.Segments)
	assert.Empty(t, ds.Days)
	assert.Empty(t, ds.Programs)
	assert.Empty(t, ds.Search("x"))
}
