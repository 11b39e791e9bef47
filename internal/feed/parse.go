package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"blocktimeline/internal/model"
)

// ValidationError reports a malformed block record by its index in the
// input array.
type ValidationError struct {
	Index  int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feed: block %d: %s: %s", e.Index, e.Field, e.Reason)
}

// wireBlock mirrors one record of blocks.json as written by the scraper.
type wireBlock struct {
	Program  string `json:"program"`
	Begin    string `json:"begin"`
	End      string `json:"end"`
	SeqStart int    `json:"seq_num_0"`
	SeqEnd   int    `json:"seq_num_1"`
}

// naiveLayouts are tried after RFC 3339 for timestamps without a zone,
// which are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseBlocks decodes a blocks.json payload. The first malformed record
// aborts the parse with a *ValidationError.
func ParseBlocks(body []byte) ([]model.RawBlock, error) {
	if len(body) == 0 {
		return nil, errors.New("feed: empty blocks payload")
	}

	var wire []wireBlock
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("feed: decode blocks: %w", err)
	}

	out := make([]model.RawBlock, 0, len(wire))
	for i, w := range wire {
		b, err := w.toRawBlock(i)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (w wireBlock) toRawBlock(index int) (model.RawBlock, error) {
	if strings.TrimSpace(w.Program) == "" {
		return model.RawBlock{}, &ValidationError{Index: index, Field: "program", Reason: "missing"}
	}
	begin, err := parseTimestamp(w.Begin)
	if err != nil {
		return model.RawBlock{}, &ValidationError{Index: index, Field: "begin", Reason: err.Error()}
	}
	end, err := parseTimestamp(w.End)
	if err != nil {
		return model.RawBlock{}, &ValidationError{Index: index, Field: "end", Reason: err.Error()}
	}
	if end.Before(begin) {
		return model.RawBlock{}, &ValidationError{Index: index, Field: "end", Reason: "before begin"}
	}

	return model.RawBlock{
		Program:  w.Program,
		Begin:    begin,
		End:      end,
		SeqStart: w.SeqStart,
		SeqEnd:   w.SeqEnd,
	}, nil
}

func parseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("missing")
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", v)
}

// ParseTable decodes the description translation table, a flat JSON object
// of string to string. An empty payload is an empty table.
func ParseTable(body []byte) (map[string]string, error) {
	table := make(map[string]string)
	if len(strings.TrimSpace(string(body))) == 0 {
		return table, nil
	}
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, fmt.Errorf("feed: decode descriptions: %w", err)
	}
	if table == nil {
		// "null" decodes to a nil map.
		table = make(map[string]string)
	}
	return table, nil
}
