package assignments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foodway/foodway-backend/pkg/db/models"
	pkgerrors "github.com/foodway/foodway-backend/pkg/errors"
)

const (
	minReportYear = 2000
	maxReportYear = 2100
)

// MonthBucket names the counter bucket for t's calendar month in loc, e.g. "2026-03".
func MonthBucket(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01")
}

// ReportRange resolves a month, or a single day when day is set, to [from, to) in loc.
func ReportRange(year, month int, day *int, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if year < minReportYear || year > maxReportYear {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("year must be between %d and %d", minReportYear, maxReportYear))
	}
	if month < 1 || month > 12 {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "month must be between 1 and 12")
	}
	if day == nil {
		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		return from, from.AddDate(0, 1, 0), nil
	}
	from := time.Date(year, time.Month(month), *day, 0, 0, 0, 0, loc)
	// time.Date normalizes overflow, so a changed month means the day does not exist
	if *day < 1 || from.Month() != time.Month(month) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "day is out of range for month")
	}
	return from, from.AddDate(0, 0, 1), nil
}

func (s *service) QueryByDateRange(ctx context.Context, q DeliveryQuery) (*DeliveryReport, error) {
	workerID := strings.TrimSpace(q.WorkerID)
	if workerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	from, to, err := ReportRange(q.Year, q.Month, q.Day, s.loc)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListDelivered(ctx, workerID, from, to)
	if err != nil {
		return nil, s.storeError(err, "query deliveries")
	}
	return newReport(rows, from, to), nil
}

func (s *service) DeliveriesToday(ctx context.Context, workerID string) (*DeliveryReport, error) {
	today := s.now().In(s.loc)
	day := today.Day()
	return s.QueryByDateRange(ctx, DeliveryQuery{
		WorkerID: workerID,
		Year:     today.Year(),
		Month:    int(today.Month()),
		Day:      &day,
	})
}

func (s *service) DeliveryCounts(ctx context.Context, workerID string) (*DeliveryCounts, error) {
	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	bucket := MonthBucket(s.now(), s.loc)
	counts, err := s.store.Counters(ctx, workerID, models.CounterBucketTotal, bucket)
	if err != nil {
		return nil, s.storeError(err, "load delivery counters")
	}
	return &DeliveryCounts{
		Total:       counts[models.CounterBucketTotal],
		Month:       counts[bucket],
		MonthBucket: bucket,
	}, nil
}

func newReport(rows []models.DeliveryAssignment, from, to time.Time) *DeliveryReport {
	return &DeliveryReport{
		Count:       len(rows),
		From:        from,
		To:          to,
		Assignments: ToViews(rows),
	}
}
