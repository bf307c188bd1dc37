package memory

import (
	"context"
	"sync"

	"hotelbooking/internal/app/policies"
)

// CallbackInbox remembers callback deliveries by provider, order and result.
type CallbackInbox struct {
	mu   sync.Mutex
	seen map[string]policies.CallbackDelivery
}

func NewCallbackInbox() *CallbackInbox {
	return &CallbackInbox{seen: make(map[string]policies.CallbackDelivery)}
}

func (i *CallbackInbox) Record(ctx context.Context, d policies.CallbackDelivery) (bool, error) {
	key := policies.DeliveryKey(d)
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.seen[key]; ok {
		return true, nil
	}
	i.seen[key] = d
	return false, nil
}

var _ policies.CallbackInbox = (*CallbackInbox)(nil)
