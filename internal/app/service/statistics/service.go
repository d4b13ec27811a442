package statistics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Overview is the admin dashboard snapshot. Active means status active AND
// valid_until in the future; expiry is computed at query time, never swept.
type Overview struct {
	ActiveSubscriptions  int64 `json:"active_subscriptions"`
	RevokedSubscriptions int64 `json:"revoked_subscriptions"`
	NewSubscriptionsDay  int64 `json:"new_subscriptions_day"`
	EventsAppliedDay     int64 `json:"events_applied_day"`
}

func (s *Service) Overview(ctx context.Context, at time.Time) (*Overview, error) {
	if at.IsZero() {
		at = time.Now()
	}
	dayStart := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())

	out := &Overview{}

	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ? AND valid_until > ?", types.SubscriptionStatusActive, at).
		Count(&out.ActiveSubscriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to count active subscriptions: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("status = ?", types.SubscriptionStatusRevoked).
		Count(&out.RevokedSubscriptions).Error; err != nil {
		return nil, fmt.Errorf("failed to count revoked subscriptions: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("created_at >= ?", dayStart).
		Count(&out.NewSubscriptionsDay).Error; err != nil {
		return nil, fmt.Errorf("failed to count new subscriptions: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.PaymentEvent{}).
		Where("created_at >= ?", dayStart).
		Count(&out.EventsAppliedDay).Error; err != nil {
		return nil, fmt.Errorf("failed to count payment events: %w", err)
	}

	return out, nil
}

var Module = fx.Options(
	fx.Provide(NewService),
)
