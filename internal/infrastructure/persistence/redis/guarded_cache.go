package redis

import (
	"context"
	"errors"

	"github.com/dojo-hub/dojo-management/internal/domain/member"
	"github.com/dojo-hub/dojo-management/internal/domain/progression"
	"github.com/dojo-hub/dojo-management/pkg/circuitbreaker"
)

// GuardedReportCache puts a circuit breaker in front of a report cache.
// Misses never count as failures. While the circuit is open reads fail fast
// and writes are dropped.
type GuardedReportCache struct {
	next    progression.ReportCache
	breaker *circuitbreaker.CircuitBreaker
}

// NewGuardedReportCache wraps next with breaker.
func NewGuardedReportCache(next progression.ReportCache, breaker *circuitbreaker.CircuitBreaker) *GuardedReportCache {
	return &GuardedReportCache{next: next, breaker: breaker}
}

// IsCacheFailure tells the breaker which errors mean Redis is unhealthy.
func IsCacheFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrCacheMiss) &&
		!errors.Is(err, progression.ErrReportNotCached) &&
		!errors.Is(err, ErrCacheSerialization) &&
		!errors.Is(err, context.Canceled)
}

// MemberReport implements progression.ReportCache.
func (g *GuardedReportCache) MemberReport(ctx context.Context, memberID string) (progression.Report, progression.CacheVersion, error) {
	var (
		r progression.Report
		v progression.CacheVersion
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		r, v, err = g.next.MemberReport(ctx, memberID)
		return err
	})
	return r, v, err
}

// StoreMemberReport implements progression.ReportCache.
func (g *GuardedReportCache) StoreMemberReport(ctx context.Context, r progression.Report, v progression.CacheVersion) error {
	return g.write(ctx, func(ctx context.Context) error {
		return g.next.StoreMemberReport(ctx, r, v)
	})
}

// RosterReport implements progression.ReportCache.
func (g *GuardedReportCache) RosterReport(ctx context.Context, filter member.ListFilter) (progression.RosterReport, progression.CacheVersion, error) {
	var (
		r progression.RosterReport
		v progression.CacheVersion
	)
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		r, v, err = g.next.RosterReport(ctx, filter)
		return err
	})
	return r, v, err
}

// StoreRosterReport implements progression.ReportCache.
func (g *GuardedReportCache) StoreRosterReport(ctx context.Context, filter member.ListFilter, r progression.RosterReport, v progression.CacheVersion) error {
	return g.write(ctx, func(ctx context.Context) error {
		return g.next.StoreRosterReport(ctx, filter, r, v)
	})
}

// Invalidate is never skipped: a dropped invalidation would serve stale
// reports until the TTL expires.
func (g *GuardedReportCache) Invalidate(ctx context.Context, memberID string) error {
	return g.next.Invalidate(ctx, memberID)
}

func (g *GuardedReportCache) write(ctx context.Context, fn func(context.Context) error) error {
	return g.breaker.ExecuteWithFallback(ctx, fn, func(error) error { return nil })
}

var _ progression.ReportCache = (*GuardedReportCache)(nil)
