package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// Scan request/response shapes used by the admin listing pages.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanSubscriptionsResponse struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

type ScanEventsResponse struct {
	Items []*models.PaymentEvent `json:"items"`
	Total int64                  `json:"total"`
}

// filtersAnd combines multiple CommonFilter into a single clause.Expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	exprs := make([]clause.Expression, 0, len(w.filters))
	for _, f := range w.filters {
		exprs = append(exprs, f)
	}
	clause.And(exprs...).Build(builder)
}

func normalizeScanRequest(req *ScanRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}
	return nil
}

// ScanSubscriptions implements paginated admin listing with filters.
func (s *Service) ScanSubscriptions(ctx context.Context, req *ScanRequest) (*ScanSubscriptionsResponse, error) {
	if err := normalizeScanRequest(req); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&models.Subscription{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	var rows []*models.Subscription
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	return &ScanSubscriptionsResponse{Items: rows, Total: total}, nil
}

// ScanEvents lists applied payment events, the audit side of the dedup set.
func (s *Service) ScanEvents(ctx context.Context, req *ScanRequest) (*ScanEventsResponse, error) {
	if err := normalizeScanRequest(req); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&models.PaymentEvent{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count payment events: %w", err)
	}

	var rows []*models.PaymentEvent
	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "occurred_at"
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list payment events: %w", err)
	}

	return &ScanEventsResponse{Items: rows, Total: total}, nil
}
