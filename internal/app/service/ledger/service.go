package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/logctx"
	"github.com/pagflow/gatekeeper/pkg/tool"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// Service is the single write path to the subscription table. Mutations for
// one user identity are serialized by an in-process keyed mutex plus a
// row-level lock inside the transaction; different users never contend.
type Service struct {
	cfg   *config.Config
	db    *gorm.DB
	log   *zap.SugaredLogger
	locks *keyedMutex
}

func NewService(cfg *config.Config, db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, log: log, locks: newKeyedMutex()}
}

// Upsert applies one canonical event atomically: the event row insert (the
// idempotency check) and the ledger row write commit or roll back together.
// applied == false means the (provider, externalEventID) pair was already
// seen and nothing changed.
func (s *Service) Upsert(ctx context.Context, ev *types.PaymentEvent) (rec *models.Subscription, applied bool, err error) {
	var plan *config.Plan
	if ev.Kind == types.PaymentEventKindApproved {
		plan, err = s.cfg.PlanByID(ev.PlanID)
		if err != nil {
			return nil, false, err
		}
	}

	s.locks.Lock(ev.UserIdentity)
	defer s.locks.Unlock(ev.UserIdentity)

	var before *models.Subscription

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		evRow := &models.PaymentEvent{
			ID:              tool.GenerateUUIDV7(),
			Provider:        ev.Provider,
			ExternalEventID: ev.ExternalEventID,
			UserIdentity:    ev.UserIdentity,
			PlanID:          ev.PlanID,
			Kind:            ev.Kind,
			OccurredAt:      ev.OccurredAt,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(evRow)
		if res.Error != nil {
			return fmt.Errorf("failed to record payment event: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Replay. Webhook senders retry; this is routine, not an error.
			applied = false
			var cur models.Subscription
			if err := tx.Where("user_identity = ?", ev.UserIdentity).First(&cur).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return fmt.Errorf("failed to load subscription: %w", err)
			}
			rec = &cur
			return nil
		}

		var original models.Subscription
		loadErr := lockForUpdate(tx).
			Where("user_identity = ?", ev.UserIdentity).
			First(&original).Error
		if loadErr != nil && !errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load subscription: %w", loadErr)
		}

		var current *models.Subscription
		if loadErr == nil {
			cp := original
			before = &cp
			current = &original
		}

		next, applyErr := applyEvent(current, ev, plan, time.Now())
		if applyErr != nil {
			return applyErr
		}
		if current != nil {
			next.ID = original.ID
			next.CreatedAt = original.CreatedAt
		} else {
			next.ID = tool.GenerateUUIDV7()
		}

		if err := tx.Save(next).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		rec = next
		applied = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply payment event: %w", err)
	}

	if applied {
		s.writeChangeLog(ctx, before, rec, changeReason(before, ev))
	}
	return rec, applied, nil
}

// Query answers a point-in-time validity question. Read-only; reflects every
// Upsert that has already returned (reads go to the same table the
// transaction committed to).
func (s *Service) Query(ctx context.Context, userIdentity string) (*types.AccessDecision, error) {
	rec, err := s.Get(ctx, userIdentity)
	if err != nil {
		return nil, err
	}
	return rec.Decision(time.Now()), nil
}

// Get returns the raw ledger row, or nil without error when the user has no
// subscription history.
func (s *Service) Get(ctx context.Context, userIdentity string) (*models.Subscription, error) {
	var rec models.Subscription
	err := s.db.WithContext(ctx).Where("user_identity = ?", userIdentity).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	return &rec, nil
}

// Revoke marks the row revoked without touching validUntil. Used by
// operators; webhook cancellations travel through Upsert instead.
func (s *Service) Revoke(ctx context.Context, userIdentity string) (*models.Subscription, error) {
	s.locks.Lock(userIdentity)
	defer s.locks.Unlock(userIdentity)

	var before *models.Subscription
	var rec *models.Subscription

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var original models.Subscription
		if err := lockForUpdate(tx).
			Where("user_identity = ?", userIdentity).
			First(&original).Error; err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}
		cp := original
		before = &cp

		now := time.Now()
		original.Status = types.SubscriptionStatusRevoked
		if original.LastRevokedAt == nil || now.After(*original.LastRevokedAt) {
			original.LastRevokedAt = &now
		}
		if err := tx.Save(&original).Error; err != nil {
			return fmt.Errorf("failed to revoke subscription: %w", err)
		}
		rec = &original
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.writeChangeLog(ctx, before, rec, types.SubscriptionChangeReasonRevoke)
	return rec, nil
}

// Grant issues comp access by synthesizing an internal approved event and
// pushing it through the normal write path.
func (s *Service) Grant(ctx context.Context, userIdentity, planID, operatorID string) (*models.Subscription, error) {
	if userIdentity == "" || planID == "" {
		return nil, fmt.Errorf("invalid params: userIdentity and planID required")
	}
	if _, err := s.cfg.PlanByID(planID); err != nil {
		return nil, err
	}

	ev := &types.PaymentEvent{
		Provider:        types.PaymentProviderInner,
		ExternalEventID: tool.GenerateUUIDV7(),
		UserIdentity:    userIdentity,
		PlanID:          planID,
		Kind:            types.PaymentEventKindApproved,
		OccurredAt:      time.Now(),
	}
	logctx.FromCtx(ctx, s.log).Infow("granting comp access",
		"user_identity", userIdentity, "plan_id", planID, "operator_id", operatorID)

	rec, _, err := s.Upsert(ctx, ev)
	return rec, err
}

// lockForUpdate takes the row lock on dialects that support it. SQLite has
// no SELECT FOR UPDATE; its single writer gives the same guarantee.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func changeReason(before *models.Subscription, ev *types.PaymentEvent) types.SubscriptionChangeReason {
	if ev.Kind.Terminal() {
		return types.SubscriptionChangeReasonRevoke
	}
	if ev.Provider == types.PaymentProviderInner {
		return types.SubscriptionChangeReasonGrant
	}
	if before == nil {
		return types.SubscriptionChangeReasonPurchase
	}
	return types.SubscriptionChangeReasonRenewal
}

// writeChangeLog persists a before/after snapshot asynchronously; errors are
// logged but never fail the caller.
func (s *Service) writeChangeLog(ctx context.Context, before, after *models.Subscription, reason types.SubscriptionChangeReason) {
	if after == nil {
		return
	}
	go func(b, a *models.Subscription) {
		entry := &models.SubscriptionLog{
			ID:           tool.GenerateUUIDV7(),
			UserIdentity: a.UserIdentity,
			Reason:       reason,
			Before:       datatypes.NewJSONType(b),
			After:        datatypes.NewJSONType(a),
			Extra:        datatypes.JSONMap{},
		}
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}(before, after)
}
