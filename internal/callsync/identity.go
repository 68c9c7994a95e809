package callsync

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callsync/internal/store"
	"github.com/sells-group/callsync/pkg/hubspot"
)

// IdentityResolver maps normalized phone numbers to CRM contact ids, reading
// through the identity cache to the CRM search.
type IdentityResolver struct {
	cache store.IdentityCache
	crm   hubspot.Client
}

// NewIdentityResolver creates a resolver over the given cache and CRM.
func NewIdentityResolver(cache store.IdentityCache, crm hubspot.Client) *IdentityResolver {
	return &IdentityResolver{cache: cache, crm: crm}
}

// Resolve returns the contact id for phone. A cache hit makes no remote call.
// A remote hit is cached before returning; a remote miss is not, since the
// create that follows caches the new id.
func (r *IdentityResolver) Resolve(ctx context.Context, phone string) (string, bool, error) {
	if id, ok := r.cache.Get(phone); ok {
		return id, true, nil
	}

	contact, err := r.crm.SearchByPhone(ctx, phone)
	if err != nil {
		return "", false, eris.Wrapf(err, "callsync: resolve phone %s", phone)
	}
	if contact == nil || contact.ID == "" {
		return "", false, nil
	}

	r.cache.Put(phone, contact.ID)
	return contact.ID, true, nil
}

// Remember records a contact id discovered or created outside Resolve.
func (r *IdentityResolver) Remember(phone, contactID string) {
	r.cache.Put(phone, contactID)
}
