package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cdr-backend/data-models/report"
	"cdr-backend/infra"
	"cdr-backend/metrics"
	"cdr-backend/model"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// GroupBy 報表彙總維度
type GroupBy string

const (
	GroupByDay         GroupBy = "day"
	GroupByService     GroupBy = "service"
	GroupBySource      GroupBy = "source"
	GroupByDestination GroupBy = "destination"
)

// ErrUnsupportedGroupBy is returned for a groupBy selector outside SupportedGroupBy.
var ErrUnsupportedGroupBy = errors.New("unsupported groupBy")

// SupportedGroupBy lists the valid groupBy selectors in documentation order.
func SupportedGroupBy() []GroupBy {
	return []GroupBy{GroupByDay, GroupByService, GroupBySource, GroupByDestination}
}

// UnsupportedGroupByMessage is the client-facing description of the valid selectors.
func UnsupportedGroupByMessage() string {
	names := make([]string, 0, 4)
	for _, g := range SupportedGroupBy() {
		names = append(names, string(g))
	}
	return "Invalid groupBy parameter. Supported values: " + strings.Join(names, ", ")
}

// ParseGroupBy matches value case-insensitively. An empty value selects day.
func ParseGroupBy(value string) (GroupBy, error) {
	if value == "" {
		return GroupByDay, nil
	}
	g := GroupBy(strings.ToLower(value))
	for _, supported := range SupportedGroupBy() {
		if g == supported {
			return g, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedGroupBy, value)
}

// ReportFilter 報表過濾條件，日期為 YYYY-MM-DD 且前後皆包含；ServiceType 只用於日報表
type ReportFilter struct {
	ServiceType string
	StartDate   string
	EndDate     string
}

func (f ReportFilter) includes(c *model.Cdr) bool {
	if !c.Reportable() {
		return false
	}
	date := c.StartTime.DateString()
	if f.StartDate != "" && date < f.StartDate {
		return false
	}
	if f.EndDate != "" && date > f.EndDate {
		return false
	}
	return true
}

type usageTotal struct {
	sum   decimal.Decimal
	count int64
}

func (t *usageTotal) add(usage float64) {
	t.sum = t.sum.Add(decimal.NewFromFloat(usage))
	t.count++
}

type groupKey struct {
	key         string
	serviceType model.ServiceType
}

// ReportService builds usage reports from a full snapshot of the record store.
type ReportService struct {
	logger zerolog.Logger
	store  RecordStore
}

func NewReportService(logger zerolog.Logger, store RecordStore) *ReportService {
	return &ReportService{
		logger: logger.With().Str("module", "report_service").Logger(),
		store:  store,
	}
}

// Aggregate dispatches to the view selected by groupBy and returns its rows.
func (s *ReportService) Aggregate(ctx context.Context, groupBy string, filter ReportFilter) (any, error) {
	g, err := ParseGroupBy(groupBy)
	if err != nil {
		s.logger.Warn().Str("group_by", groupBy).Msg("無效的彙總維度 (Invalid groupBy)")
		return nil, err
	}

	ctx, span := infra.StartSpan(ctx, "report_aggregate",
		infra.AttrOperation("aggregate"),
		infra.AttrGroupBy(string(g)),
		infra.AttrString("report.start_date", filter.StartDate),
		infra.AttrString("report.end_date", filter.EndDate),
	)
	defer span.End()

	start := time.Now()
	var rows any
	switch g {
	case GroupByDay:
		rows, err = s.AggregateByDay(ctx, filter)
	case GroupByService:
		rows, err = s.AggregateByServiceType(ctx, filter)
	case GroupBySource:
		rows, err = s.AggregateBySource(ctx, filter)
	case GroupByDestination:
		rows, err = s.AggregateByDestination(ctx, filter)
	}

	if err != nil {
		infra.RecordError(span, err, "aggregation failed")
		metrics.RecordAggregation(string(g), metrics.StatusError, time.Since(start))
		s.logger.Error().Err(err).Str("group_by", string(g)).Msg("彙總報表失敗 (Failed to aggregate cdrs)")
		return nil, err
	}

	infra.MarkSuccess(span)
	metrics.RecordAggregation(string(g), metrics.StatusSuccess, time.Since(start))
	return rows, nil
}

// snapshot 讀取全部紀錄並套用共用的日期過濾
func (s *ReportService) snapshot(ctx context.Context, filter ReportFilter) ([]*model.Cdr, error) {
	all, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cdr snapshot: %w", err)
	}

	kept := make([]*model.Cdr, 0, len(all))
	for _, c := range all {
		if filter.includes(c) {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// AggregateByDay groups by (date, service type). filter.ServiceType, when set, keeps only that
// service type (case-insensitive). Rows are sorted by date ascending.
func (s *ReportService) AggregateByDay(ctx context.Context, filter ReportFilter) ([]report.DailyUsage, error) {
	cdrs, err := s.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*usageTotal)
	for _, c := range cdrs {
		if filter.ServiceType != "" && !strings.EqualFold(string(c.ServiceType), filter.ServiceType) {
			continue
		}
		accumulate(groups, groupKey{key: c.StartTime.DateString(), serviceType: c.ServiceType}, c.Usage)
	}

	rows := make([]report.DailyUsage, 0, len(groups))
	for _, k := range sortedKeys(groups) {
		total := groups[k]
		label := string(k.serviceType)
		rows = append(rows, report.DailyUsage{
			Date:             k.key,
			TotalUsage:       model.FormatUsage(total.sum, label),
			InteractionCount: total.count,
			ServiceType:      label,
			UsageUnit:        model.UsageUnit(label),
		})
	}
	return rows, nil
}

// AggregateByServiceType groups by service type, ordered by service type name.
func (s *ReportService) AggregateByServiceType(ctx context.Context, filter ReportFilter) ([]report.ServiceTypeUsage, error) {
	cdrs, err := s.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*usageTotal)
	for _, c := range cdrs {
		accumulate(groups, groupKey{serviceType: c.ServiceType}, c.Usage)
	}

	rows := make([]report.ServiceTypeUsage, 0, len(groups))
	for _, k := range sortedKeys(groups) {
		total := groups[k]
		label := string(k.serviceType)
		rows = append(rows, report.ServiceTypeUsage{
			ServiceType: label,
			TotalUsage:  model.FormatUsage(total.sum, label),
			CallCount:   total.count,
		})
	}
	return rows, nil
}

// AggregateBySource groups by (source, service type), largest formatted total first.
func (s *ReportService) AggregateBySource(ctx context.Context, filter ReportFilter) ([]report.SourceUsage, error) {
	groups, err := s.groupByParty(ctx, filter, func(c *model.Cdr) string { return c.Source })
	if err != nil {
		return nil, err
	}

	rows := make([]report.SourceUsage, 0, len(groups))
	for _, k := range rankedKeys(groups) {
		total := groups[k]
		label := string(k.serviceType)
		rows = append(rows, report.SourceUsage{
			Source:      k.key,
			TotalUsage:  model.FormatUsage(total.sum, label),
			CallCount:   total.count,
			ServiceType: label,
		})
	}
	return rows, nil
}

// AggregateByDestination groups by (destination, service type), largest formatted total first.
func (s *ReportService) AggregateByDestination(ctx context.Context, filter ReportFilter) ([]report.DestinationUsage, error) {
	groups, err := s.groupByParty(ctx, filter, func(c *model.Cdr) string { return c.Destination })
	if err != nil {
		return nil, err
	}

	rows := make([]report.DestinationUsage, 0, len(groups))
	for _, k := range rankedKeys(groups) {
		total := groups[k]
		label := string(k.serviceType)
		rows = append(rows, report.DestinationUsage{
			Destination: k.key,
			TotalUsage:  model.FormatUsage(total.sum, label),
			CallCount:   total.count,
			ServiceType: label,
		})
	}
	return rows, nil
}

func (s *ReportService) groupByParty(ctx context.Context, filter ReportFilter, party func(*model.Cdr) string) (map[groupKey]*usageTotal, error) {
	cdrs, err := s.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	groups := make(map[groupKey]*usageTotal)
	for _, c := range cdrs {
		accumulate(groups, groupKey{key: party(c), serviceType: c.ServiceType}, c.Usage)
	}
	return groups, nil
}

func accumulate(groups map[groupKey]*usageTotal, k groupKey, usage float64) {
	total, ok := groups[k]
	if !ok {
		total = &usageTotal{}
		groups[k] = total
	}
	total.add(usage)
}

// sortedKeys 依 key、服務類型遞增排序
func sortedKeys(groups map[groupKey]*usageTotal) []groupKey {
	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		return keys[i].serviceType < keys[j].serviceType
	})
	return keys
}

// rankedKeys 依格式化後總用量遞減排序，同分時依 key、服務類型遞增
func rankedKeys(groups map[groupKey]*usageTotal) []groupKey {
	keys := sortedKeys(groups)
	formatted := make(map[groupKey]float64, len(keys))
	for _, k := range keys {
		formatted[k] = model.FormatUsage(groups[k].sum, string(k.serviceType))
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return formatted[keys[i]] > formatted[keys[j]]
	})
	return keys
}
