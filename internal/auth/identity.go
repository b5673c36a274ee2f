package auth

import (
	"context"

	"supik-server/internal/models"
)

// Identity is the authenticated account resolved once per request. It is
// built by the Resolver and read, never modified, by every later check.
type Identity struct {
	AccountID uint
	Username  string
	Admin     bool
	Disabled  bool
	Groups    []models.Group
	GroupIDs  []uint
}

// NewIdentity flattens an account and its memberships into an Identity.
func NewIdentity(account *models.Account) *Identity {
	id := &Identity{
		AccountID: account.ID,
		Username:  account.Username,
		Admin:     account.IsAdmin(),
		Disabled:  account.IsDisabled(),
	}
	for _, membership := range account.Groups {
		if membership.Group == nil {
			continue
		}
		id.Groups = append(id.Groups, *membership.Group)
		id.GroupIDs = append(id.GroupIDs, membership.Group.ID)
	}
	return id
}

// InAnyGroup reports whether the identity belongs to one of groupIDs.
func (i *Identity) InAnyGroup(groupIDs []uint) bool {
	if len(i.GroupIDs) == 0 || len(groupIDs) == 0 {
		return false
	}
	set := make(map[uint]struct{}, len(i.GroupIDs))
	for _, id := range i.GroupIDs {
		set[id] = struct{}{}
	}
	for _, id := range groupIDs {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity stored by WithIdentity, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
