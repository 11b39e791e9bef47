package web

import (
	"context"
	"time"

	"blocktimeline/internal/config"
	"blocktimeline/internal/feed"
	"blocktimeline/internal/timeline"
)

// FeedLoader returns a Loader that fetches the configured payloads and
// rebuilds the whole dataset from scratch.
func FeedLoader(cfg *config.Config, f *feed.Fetcher) Loader {
	blocksSrc := feed.Source{ID: "blocks", URL: cfg.BlocksURL}
	tableSrc := feed.Source{ID: "descriptions", URL: cfg.DescriptionsURL}
	opts := timeline.Options{ExtensionMonths: cfg.ExtensionMonths}

	return func(ctx context.Context) (*Snapshot, error) {
		p, err := feed.Load(ctx, f, blocksSrc, tableSrc)
		if err != nil {
			return nil, err
		}
		return &Snapshot{
			Dataset:      timeline.Build(p.Blocks, p.Descriptions, opts),
			Descriptions: p.Descriptions,
			LoadedAt:     time.Now().UTC(),
			FromCache:    p.FromCache,
		}, nil
	}
}
