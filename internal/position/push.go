package position

import (
	"errors"
	"sync"

	"routekeeper/internal/geo"
)

// ErrNoSubscriber is returned by Publish when tracking is not listening.
var ErrNoSubscriber = errors.New("no active position subscriber")

// Push is a source fed by Publish, used by the HTTP API so a phone or
// another process can post fixes.
type Push struct {
	mu      sync.Mutex
	nextID  uint64
	current *pushSubscription
}

// NewPush returns an idle push source.
func NewPush() *Push {
	return &Push{}
}

// Subscribe installs the handlers, replacing any previous subscriber.
func (p *Push) Subscribe(onFix FixHandler, onError ErrorHandler) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	sub := &pushSubscription{owner: p, id: p.nextID, onFix: onFix, onError: onError}
	p.current = sub
	return sub, nil
}

// Publish validates fix and hands it to the subscriber.
func (p *Push) Publish(fix geo.Fix) error {
	if err := ValidateFix(fix); err != nil {
		return err
	}
	p.mu.Lock()
	sub := p.current
	p.mu.Unlock()
	if sub == nil {
		return ErrNoSubscriber
	}
	sub.onFix(fix)
	return nil
}

// Active reports whether a subscriber is installed.
func (p *Push) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

type pushSubscription struct {
	owner   *Push
	id      uint64
	onFix   FixHandler
	onError ErrorHandler
}

func (s *pushSubscription) Unsubscribe() {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if s.owner.current != nil && s.owner.current.id == s.id {
		s.owner.current = nil
	}
}
