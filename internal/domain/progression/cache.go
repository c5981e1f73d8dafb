package progression

import (
	"context"
	"errors"

	"github.com/dojo-hub/dojo-management/internal/domain/member"
)

// ErrReportNotCached возвращается кешем, в котором нет отчёта.
var ErrReportNotCached = errors.New("report not cached")

// CacheVersion - поколение кеша, прочитанное до загрузки ученика из
// хранилища. Invalidate сдвигает поколение, и запись с прочитанным ранее
// номером отбрасывается: отчёт по старым данным не вернётся в кеш.
type CacheVersion int64

// ReportCache хранит уже посчитанные отчёты. Кеш - только ускорение:
// любая ошибка чтения означает, что отчёт нужно пересчитать.
// Реализация находится в infrastructure/persistence/redis.
type ReportCache interface {
	// MemberReport возвращает отчёт или ErrReportNotCached. Поколение
	// возвращается и при промахе, его нужно передать в StoreMemberReport.
	MemberReport(ctx context.Context, memberID string) (Report, CacheVersion, error)

	// StoreMemberReport сохраняет отчёт, если поколение не изменилось.
	StoreMemberReport(ctx context.Context, r Report, v CacheVersion) error

	RosterReport(ctx context.Context, filter member.ListFilter) (RosterReport, CacheVersion, error)
	StoreRosterReport(ctx context.Context, filter member.ListFilter, r RosterReport, v CacheVersion) error

	// Invalidate сбрасывает отчёт ученика и все отчёты по составу и
	// сдвигает их поколения.
	Invalidate(ctx context.Context, memberID string) error
}

// NopReportCache ничего не хранит.
type NopReportCache struct{}

func (NopReportCache) MemberReport(context.Context, string) (Report, CacheVersion, error) {
	return Report{}, 0, ErrReportNotCached
}

func (NopReportCache) StoreMemberReport(context.Context, Report, CacheVersion) error { return nil }

func (NopReportCache) RosterReport(context.Context, member.ListFilter) (RosterReport, CacheVersion, error) {
	return RosterReport{}, 0, ErrReportNotCached
}

func (NopReportCache) StoreRosterReport(context.Context, member.ListFilter, RosterReport, CacheVersion) error {
	return nil
}

func (NopReportCache) Invalidate(context.Context, string) error { return nil }
