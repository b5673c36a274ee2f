package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"supik-server/internal/logger"
)

// CheckRouterAccess decides whether id may act on routerID at level.
//
// Viewer and editor grants live in separate tables and are checked
// separately: a group listed only as editor does not pass a viewer check.
// A missing or soft-deleted router yields a Deny with
// ReasonResourceNotFound; store faults are returned as errors and never
// turn into an Allow.
func CheckRouterAccess(ctx context.Context, store Store, id *Identity, routerID uint, level Level) (Result, error) {
	var res Result
	switch {
	case id.Admin:
		res = Result{Decision: Allow, Reason: ReasonAdmin}
	case len(id.GroupIDs) == 0:
		res = Result{Decision: Deny, Reason: ReasonNoGroups}
	default:
		acl, err := store.RouterACL(ctx, routerID)
		if errors.Is(err, ErrResourceNotFound) {
			res = Result{Decision: Deny, Reason: ReasonResourceNotFound}
			break
		}
		if err != nil {
			logger.Error("router acl lookup failed", zap.Uint("router_id", routerID), zap.Error(err))
			return Result{Decision: Deny}, err
		}

		granted := acl.Viewers
		if level == Editor {
			granted = acl.Editors
		}
		if id.InAnyGroup(granted) {
			res = Result{Decision: Allow, Reason: ReasonGranted}
		} else {
			res = Result{Decision: Deny, Reason: ReasonNotInACL}
		}
	}

	record("router", res)
	logger.Debug("router access check",
		zap.Uint("account_id", id.AccountID),
		zap.Uint("router_id", routerID),
		zap.Stringer("level", level),
		zap.Stringer("decision", res.Decision),
		zap.Stringer("reason", res.Reason),
	)
	return res, nil
}
