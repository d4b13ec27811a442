package accessgate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pagflow/gatekeeper/pkg/logctx"
	"github.com/pagflow/gatekeeper/pkg/types"
)

const defaultQueryTimeout = 2 * time.Second

// Store is the ledger's read path as seen by the gate.
type Store interface {
	Query(ctx context.Context, userIdentity string) (*types.AccessDecision, error)
}

// Gate answers "may this user reach the paid path" before every
// chat-triggered action. It never mutates the ledger, bounds the store read
// with a short timeout, and fails closed: an unreadable ledger denies.
type Gate struct {
	store   Store
	log     *zap.SugaredLogger
	timeout time.Duration
}

func New(store Store, log *zap.SugaredLogger, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Gate{store: store, log: log, timeout: timeout}
}

func (g *Gate) CheckAccess(ctx context.Context, userIdentity string) *types.AccessDecision {
	queryCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	dec, err := g.store.Query(queryCtx, userIdentity)
	if err != nil {
		logctx.FromCtx(ctx, g.log).Warnw("access check failed closed",
			"user_identity", userIdentity, "error", err.Error())
		return &types.AccessDecision{Granted: false, Reason: types.AccessDenyReasonUnavailable}
	}
	return dec
}
