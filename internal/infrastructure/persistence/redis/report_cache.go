package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
)

// ReportCache stores progression reports. Any write to a member drops that
// member's report and every cached roster, since rosters embed it.
//
// Each member and the roster set carry a generation counter. Invalidate
// bumps it, and a store only lands if the generation read before the member
// was loaded is still current, so a report built from pre-write data is
// never put back.
type ReportCache struct {
	cache *Cache
	ttl   time.Duration
}

// NewReportCache creates a report cache with the given TTL.
func NewReportCache(cache *Cache, ttl time.Duration) *ReportCache {
	return &ReportCache{cache: cache, ttl: ttl}
}

// MemberReport returns the cached report or an error matching ErrCacheMiss,
// plus the member's current generation.
func (c *ReportCache) MemberReport(ctx context.Context, memberID string) (progression.Report, progression.CacheVersion, error) {
	var r progression.Report
	v, err := c.cache.GetVersioned(ctx, MemberReportKey(memberID), memberGenerationKey(memberID), &r)
	return r, progression.CacheVersion(v), notCached(err)
}

// StoreMemberReport caches r unless the member was invalidated after v was
// read.
func (c *ReportCache) StoreMemberReport(ctx context.Context, r progression.Report, v progression.CacheVersion) error {
	_, err := c.cache.SetIfVersion(ctx, MemberReportKey(r.MemberID), memberGenerationKey(r.MemberID), int64(v), r, c.ttl)
	return err
}

// RosterReport returns the cached roster for filter or an error matching
// ErrCacheMiss, plus the roster generation.
func (c *ReportCache) RosterReport(ctx context.Context, filter member.ListFilter) (progression.RosterReport, progression.CacheVersion, error) {
	var r progression.RosterReport
	v, err := c.cache.GetVersioned(ctx, RosterReportKey(filter), rosterGenerationKey, &r)
	return r, progression.CacheVersion(v), notCached(err)
}

// StoreRosterReport caches the roster computed for filter unless any member
// was invalidated after v was read.
func (c *ReportCache) StoreRosterReport(ctx context.Context, filter member.ListFilter, r progression.RosterReport, v progression.CacheVersion) error {
	_, err := c.cache.SetIfVersion(ctx, RosterReportKey(filter), rosterGenerationKey, int64(v), r, c.ttl)
	return err
}

// Invalidate bumps both generations and drops the member's report and all
// rosters. The bumps and the report delete run in one transaction.
func (c *ReportCache) Invalidate(ctx context.Context, memberID string) error {
	_, err := c.cache.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, memberGenerationKey(memberID))
		p.Incr(ctx, rosterGenerationKey)
		p.Del(ctx, MemberReportKey(memberID))
		return nil
	})
	if err != nil {
		return err
	}
	return c.cache.DeleteByPattern(ctx, keyPrefix+"roster:*")
}

// notCached lets callers test misses against progression.ErrReportNotCached.
func notCached(err error) error {
	if errors.Is(err, ErrCacheMiss) {
		return fmt.Errorf("%w: %w", progression.ErrReportNotCached, err)
	}
	return err
}

// MemberReportKey returns the key of a member report.
func MemberReportKey(memberID string) string {
	return keyPrefix + "report:" + memberID
}

const rosterGenerationKey = keyPrefix + "gen:roster"

func memberGenerationKey(memberID string) string {
	return keyPrefix + "gen:member:" + memberID
}

// RosterReportKey returns the key of the roster computed for filter.
func RosterReportKey(filter member.ListFilter) string {
	category := "all"
	if filter.Category != "" {
		category = string(filter.Category)
	}
	return keyPrefix + "roster:" + category + ":" + strconv.FormatBool(filter.ActiveOnly) + ":" + strconv.Itoa(filter.Limit)
}

var _ progression.ReportCache = (*ReportCache)(nil)
