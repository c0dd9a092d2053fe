package services

import (
	"context"
	"fmt"
	"io"

	"github.com/AnshRaj112/estatehub-backend/internal/database"
	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFeedLimit         = 50
	MaxFeedLimit             = 100
	DefaultMaxBackfillRounds = 5
	defaultCheckConcurrency  = 8
)

// PropertyChecker is the part of BlacklistService the feed depends on.
type PropertyChecker interface {
	CheckProperty(ctx context.Context, propertyID int64) models.CheckResult
}

// ListingOptions configures a ListingMediator.
type ListingOptions struct {
	DefaultLimit      int
	MaxLimit          int
	MaxBackfillRounds int
	CheckConcurrency  int
	Logger            *log.Logger
}

// FeedPage is one page of the public feed. Truncated is set when the page is
// short because the backfill budget ran out, not because the source ended.
type FeedPage struct {
	Properties []models.Property
	Truncated  bool
}

// ListingMediator serves the public property feed with blacklisted
// properties removed, backfilling from later rows to keep pages full.
type ListingMediator struct {
	source       database.PropertySource
	checker      PropertyChecker
	defaultLimit int
	maxLimit     int
	maxRounds    int
	concurrency  int
	logger       *log.Logger
}

// NewListingMediator wires the feed to a property source and a checker.
func NewListingMediator(source database.PropertySource, checker PropertyChecker, opts ListingOptions) *ListingMediator {
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxFeedLimit
	}
	if opts.DefaultLimit <= 0 || opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = min(DefaultFeedLimit, opts.MaxLimit)
	}
	if opts.MaxBackfillRounds <= 0 {
		opts.MaxBackfillRounds = DefaultMaxBackfillRounds
	}
	if opts.CheckConcurrency <= 0 {
		opts.CheckConcurrency = defaultCheckConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &ListingMediator{
		source:       source,
		checker:      checker,
		defaultLimit: opts.DefaultLimit,
		maxLimit:     opts.MaxLimit,
		maxRounds:    opts.MaxBackfillRounds,
		concurrency:  opts.CheckConcurrency,
		logger:       opts.Logger.WithPrefix("feed"),
	}
}

// Clamp applies the feed's paging rules: a non-positive limit becomes the
// default, limits above the maximum are capped, and negative offsets become 0.
func (m *ListingMediator) Clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = m.defaultLimit
	}
	if limit > m.maxLimit {
		limit = m.maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// PublicFeed returns up to limit public, non-blacklisted properties starting
// at offset, newest first. An error is returned only when the first page
// can't be fetched; later failures end the backfill and mark the page truncated.
func (m *ListingMediator) PublicFeed(ctx context.Context, limit, offset int) (FeedPage, error) {
	limit, offset = m.Clamp(limit, offset)

	first, err := m.source.ListPublicProperties(ctx, offset, limit)
	if err != nil {
		return FeedPage{}, fmt.Errorf("fetch public properties: %w", err)
	}

	page := FeedPage{Properties: m.filter(ctx, first)}
	if len(page.Properties) >= limit || len(first) < limit {
		return page, nil
	}

	cursor := offset + len(first)
	for round := 1; ; round++ {
		needed := limit - len(page.Properties)
		if needed <= 0 {
			break
		}
		if round > m.maxRounds {
			m.logger.Warn("backfill budget spent", "offset", offset, "limit", limit, "returned", len(page.Properties))
			page.Truncated = true
			break
		}
		if ctx.Err() != nil {
			page.Truncated = true
			break
		}

		batch, err := m.source.ListPublicProperties(ctx, cursor, needed)
		if err != nil {
			m.logger.Error("backfill fetch failed", "cursor", cursor, "err", err)
			page.Truncated = true
			break
		}
		if len(batch) == 0 {
			break
		}

		cursor += len(batch)
		page.Properties = append(page.Properties, m.filter(ctx, batch)...)

		if len(batch) < needed {
			break
		}
	}

	return page, nil
}

// filter runs the property checks concurrently and keeps the survivors in
// their original order.
func (m *ListingMediator) filter(ctx context.Context, props []models.Property) []models.Property {
	blocked := make([]bool, len(props))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i := range props {
		g.Go(func() error {
			blocked[i] = m.checker.CheckProperty(gctx, props[i].ID).IsBlacklisted
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]models.Property, 0, len(props))
	for i, p := range props {
		if !blocked[i] {
			kept = append(kept, p)
		}
	}
	return kept
}
