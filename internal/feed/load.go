package feed

import (
	"context"

	appLog "blocktimeline/internal/log"
	"blocktimeline/internal/model"
)

// Payload is the parsed pair of inputs the timeline is built from.
type Payload struct {
	Blocks       []model.RawBlock
	Descriptions map[string]string
	// FromCache is true if either body came from the disk cache.
	FromCache bool
}

// Load fetches and parses both inputs. A description table that cannot be
// fetched or parsed is not fatal: the timeline simply has no descriptions.
// A block list that cannot be fetched or validated is.
func Load(ctx context.Context, f *Fetcher, blocksSrc, tableSrc Source) (Payload, error) {
	var p Payload

	res, err := f.FetchOne(ctx, blocksSrc)
	if err != nil {
		return p, err
	}
	blocks, err := ParseBlocks(res.Body)
	if err != nil {
		return p, err
	}
	p.Blocks = blocks
	p.FromCache = res.FromCache

	p.Descriptions = map[string]string{}
	if tableSrc.URL == "" {
		return p, nil
	}

	tres, err := f.FetchOne(ctx, tableSrc)
	if err != nil {
		appLog.Error("descriptions unavailable; continuing without", err, "id", tableSrc.ID)
		return p, nil
	}
	table, err := ParseTable(tres.Body)
	if err != nil {
		appLog.Error("descriptions unparsable; continuing without", err, "id", tableSrc.ID)
		return p, nil
	}
	p.Descriptions = table
	p.FromCache = p.FromCache || tres.FromCache

	appLog.Info("feed load completed",
		"blocks", len(p.Blocks),
		"descriptions", len(p.Descriptions),
		"from_cache", p.FromCache,
	)
	return p, nil
}
