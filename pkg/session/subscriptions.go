package session

import "github.com/talhabektas/smartdesk-sub000/pkg/idx"

// Subscription is a consumer subscription held by the ConnectionManager.
// It outlives connections: after every successful connect the registry is
// replayed against the new connection.
type Subscription struct {
	ID          idx.ID
	Destination string
	Handler     func(Message)

	live Unsubscriber
}

// SubscriptionInfo is a read-only view of a registry entry.
type SubscriptionInfo struct {
	ID          idx.ID `json:"id"`
	Destination string `json:"destination"`
	Active      bool   `json:"active"`
}

// registry keeps subscriptions in registration order. It is not safe for
// concurrent use; the ConnectionManager lock guards it.
type registry struct {
	order []*Subscription
	byID  map[idx.ID]*Subscription
}

func newRegistry() *registry {
	return &registry{byID: make(map[idx.ID]*Subscription)}
}

func (r *registry) add(s *Subscription) {
	r.order = append(r.order, s)
	r.byID[s.ID] = s
}

func (r *registry) get(id idx.ID) (*Subscription, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r *registry) remove(id idx.ID) (*Subscription, bool) {
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	for i, cur := range r.order {
		if cur == s {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return s, true
}

func (r *registry) all() []*Subscription {
	return r.order
}

func (r *registry) len() int { return len(r.order) }

// detach forgets every live handle and returns them.
func (r *registry) detach() []Unsubscriber {
	var live []Unsubscriber
	for _, s := range r.order {
		if s.live != nil {
			live = append(live, s.live)
			s.live = nil
		}
	}
	return live
}

func (r *registry) clear() {
	r.order = nil
	r.byID = make(map[idx.ID]*Subscription)
}

func (r *registry) info() []SubscriptionInfo {
	out := make([]SubscriptionInfo, 0, len(r.order))
	for _, s := range r.order {
		out = append(out, SubscriptionInfo{ID: s.ID, Destination: s.Destination, Active: s.live != nil})
	}
	return out
}
