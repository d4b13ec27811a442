package ledger

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/pagflow/gatekeeper/internal/models"
	"github.com/pagflow/gatekeeper/pkg/config"
	"github.com/pagflow/gatekeeper/pkg/types"
)

// applyEvent computes the next state of a ledger row for one canonical event.
// Pure: rec may be nil (no row yet) and is never mutated; the returned row is
// a fresh value. now is injected so renewal arithmetic is testable.
//
// Rules:
//   - Approved on a live row extends from max(now, validUntil), so a renewal
//     can never shorten remaining paid time.
//   - Approved on an expired or revoked row restarts at now, except that an
//     approval older than the newest cancellation seen does not reactivate;
//     it only accrues validUntil for the audit trail.
//   - Cancelled/Paused marks the row revoked and leaves validUntil as-is.
//     Cancellations are idempotent and last-write-wins by occurredAt.
//   - Cancelled/Paused with no prior row creates a revoked placeholder so a
//     late-retried earlier approval cannot resurrect access.
func applyEvent(rec *models.Subscription, ev *types.PaymentEvent, plan *config.Plan, now time.Time) (*models.Subscription, error) {
	switch ev.Kind {
	case types.PaymentEventKindApproved:
		if plan == nil {
			return nil, fmt.Errorf("approved event without plan: %s", ev.PlanID)
		}
		return applyApproved(rec, ev, plan, now), nil
	case types.PaymentEventKindCancelled, types.PaymentEventKindPaused:
		return applyRevocation(rec, ev, now), nil
	default:
		return nil, fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
}

func applyApproved(rec *models.Subscription, ev *types.PaymentEvent, plan *config.Plan, now time.Time) *models.Subscription {
	validity := time.Duration(plan.ValidityDays) * 24 * time.Hour

	if rec == nil {
		validUntil := now.Add(validity)
		return &models.Subscription{
			UserIdentity:  ev.UserIdentity,
			Email:         emailPtr(ev.Email),
			PlanID:        plan.ID,
			ProviderRef:   lo.ToPtr(ev.ExternalEventID),
			Status:        types.SubscriptionStatusActive,
			ActivatedAt:   now,
			ValidUntil:    &validUntil,
			LastEventAt:   ev.OccurredAt,
			LastRevokedAt: nil,
		}
	}

	next := *rec
	next.PlanID = plan.ID
	next.ProviderRef = lo.ToPtr(ev.ExternalEventID)
	if ev.Email != "" {
		next.Email = emailPtr(ev.Email)
	}
	if ev.OccurredAt.After(next.LastEventAt) {
		next.LastEventAt = ev.OccurredAt
	}

	staleVsRevocation := next.LastRevokedAt != nil && !ev.OccurredAt.After(*next.LastRevokedAt)

	if rec.ValidAt(now) {
		// Renewal before expiry: extend from the later of now and the
		// current validUntil.
		base := now
		if next.ValidUntil != nil && next.ValidUntil.After(base) {
			base = *next.ValidUntil
		}
		validUntil := base.Add(validity)
		next.ValidUntil = &validUntil
	} else {
		// Fresh start after expiry or revocation.
		validUntil := now.Add(validity)
		next.ActivatedAt = now
		next.ValidUntil = &validUntil
	}

	if !staleVsRevocation {
		next.Status = types.SubscriptionStatusActive
	}
	return &next
}

func applyRevocation(rec *models.Subscription, ev *types.PaymentEvent, now time.Time) *models.Subscription {
	if rec == nil {
		// Placeholder: the cancellation arrived before any approval.
		return &models.Subscription{
			UserIdentity:  ev.UserIdentity,
			Email:         emailPtr(ev.Email),
			PlanID:        ev.PlanID,
			ProviderRef:   lo.ToPtr(ev.ExternalEventID),
			Status:        types.SubscriptionStatusRevoked,
			ActivatedAt:   now,
			LastEventAt:   ev.OccurredAt,
			LastRevokedAt: lo.ToPtr(ev.OccurredAt),
		}
	}

	next := *rec
	next.Status = types.SubscriptionStatusRevoked
	next.ProviderRef = lo.ToPtr(ev.ExternalEventID)
	if ev.OccurredAt.After(next.LastEventAt) {
		next.LastEventAt = ev.OccurredAt
	}
	if next.LastRevokedAt == nil || ev.OccurredAt.After(*next.LastRevokedAt) {
		next.LastRevokedAt = lo.ToPtr(ev.OccurredAt)
	}
	return &next
}

func emailPtr(email string) *string {
	if email == "" {
		return nil
	}
	return lo.ToPtr(email)
}
