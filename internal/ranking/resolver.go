package ranking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Search depths for the convenience variants.
const (
	ShallowDepth = 10
	DeepDepth    = 100
)

// ErrAllPagesFailed reports that every page request for a keyword failed.
// The keyword check as a whole counts as a transient error at the unit level.
var ErrAllPagesFailed = errors.New("all search pages failed")

// ResolverConfig controls pagination and pacing for the Resolver.
type ResolverConfig struct {
	// PageSize is the number of results requested per page.
	PageSize int
	// PageDelay is the pause between page requests.
	PageDelay time.Duration
	// MaxCompetitors caps how many non-target results are kept per check.
	MaxCompetitors int
}

func (c ResolverConfig) withDefaults() ResolverConfig {
	if c.PageSize <= 0 {
		c.PageSize = 10
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 50 * time.Millisecond
	}
	if c.MaxCompetitors <= 0 {
		c.MaxCompetitors = 50
	}
	return c
}

// Resolver locates a target domain within paginated search results.
type Resolver struct {
	provider SearchProvider
	clock    Clock
	cfg      ResolverConfig
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration)
}

// NewResolver constructs a Resolver.
func NewResolver(provider SearchProvider, clock Clock, cfg ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		provider: provider,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		sleep:    sleepContext,
	}
}

// ResolvePosition pages through search results for the keyword until the
// target domain is found, the results run out, or maxPosition results have
// been examined. A single page's transport failure is skipped; the check only
// fails when every page failed. When the target is not found the returned
// result carries PositionNotFound and a URL synthesized from targetDomain.
func (r *Resolver) ResolvePosition(ctx context.Context, keyword, targetDomain string, maxPosition int) (RankingResult, error) {
	if strings.TrimSpace(targetDomain) == "" {
		return RankingResult{}, errors.New("target domain is required")
	}
	if maxPosition <= 0 {
		maxPosition = ShallowDepth
	}
	target := NormalizeDomain(targetDomain)
	res := RankingResult{Keyword: keyword, Position: PositionNotFound}
	res.Metadata.SearchDepthRequested = maxPosition

	var (
		examined int
		failed   int
		found    bool
	)
	for offset := 1; offset <= maxPosition && examined < maxPosition; offset += r.cfg.PageSize {
		if offset > 1 {
			r.sleep(ctx, r.cfg.PageDelay)
		}
		if err := ctx.Err(); err != nil {
			return RankingResult{}, fmt.Errorf("resolve %q: %w", keyword, err)
		}
		page, err := r.provider.Search(ctx, keyword, offset, r.cfg.PageSize)
		res.Metadata.APICallsUsed++
		if err != nil {
			failed++
			r.logger.Warn("search page failed",
				zap.String("keyword", keyword),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			continue
		}
		if page.TotalResultsReported > res.Metadata.TotalResultsReported {
			res.Metadata.TotalResultsReported = page.TotalResultsReported
		}
		res.Metadata.SearchLatency += page.SearchLatency

		for i, item := range page.Items {
			pos := offset + i
			examined++
			res.Metadata.MaxPositionExamined = pos
			if !found && MatchesTarget(item.URL, target) {
				found = true
				res.Position = pos
				res.ResolvedURL = item.URL
				continue
			}
			if len(res.Competitors) < r.cfg.MaxCompetitors {
				res.Competitors = append(res.Competitors, CompetitorResult{
					Position: pos,
					Title:    item.Title,
					URL:      item.URL,
					Snippet:  item.Snippet,
				})
			}
		}
		if found || len(page.Items) < r.cfg.PageSize {
			break
		}
	}

	res.Metadata.ResultsExamined = examined
	if res.Metadata.APICallsUsed > 0 && failed == res.Metadata.APICallsUsed {
		return RankingResult{}, fmt.Errorf("resolve %q: %w", keyword, ErrAllPagesFailed)
	}
	if !found {
		res.ResolvedURL = SynthesizeURL(targetDomain)
	}
	return res, nil
}

// ShallowCheck examines the first page only.
func (r *Resolver) ShallowCheck(ctx context.Context, keyword, targetDomain string) (RankingResult, error) {
	return r.ResolvePosition(ctx, keyword, targetDomain, ShallowDepth)
}

// DeepCheck examines up to the first hundred results.
func (r *Resolver) DeepCheck(ctx context.Context, keyword, targetDomain string) (RankingResult, error) {
	return r.ResolvePosition(ctx, keyword, targetDomain, DeepDepth)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
