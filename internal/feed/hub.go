package feed

import (
	"encoding/json"
	"time"

	"github.com/syncmymind/api/internal/domain"
)

// ScopeGlobal subscribes to project row changes across every project visible
// to the subscriber. Any other scope value is a project id and delivers task
// and observation changes for that project only.
const ScopeGlobal = ""

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Publisher pushes change events to subscribed clients. Mutating services
// publish after each successful write.
type Publisher interface {
	Publish(event domain.ChangeEvent)
}

// VisibilityFunc reports whether userID may see events for projectID. Every
// delivery is filtered through it, project-scoped channels included, so a
// revoked membership takes effect without resubscribing.
type VisibilityFunc func(projectID, userID string) bool

// Hub fans change events out to subscriptions by scope. Project-scoped and
// global channels are independent: registering or tearing down one never
// touches the other.
type Hub struct {
	visible   VisibilityFunc
	register  chan registration
	unreg     chan *Subscription
	broadcast chan domain.ChangeEvent
}

type registration struct {
	sub  *Subscription
	done chan struct{}
}

// NewHub creates a running Hub.
func NewHub(visible VisibilityFunc) *Hub {
	h := &Hub{
		visible:   visible,
		register:  make(chan registration),
		unreg:     make(chan *Subscription),
		broadcast: make(chan domain.ChangeEvent),
	}
	go h.run()
	return h
}

// Subscribe attaches a client to a scope and blocks until the hub
// acknowledges, at which point the subscription is Active.
func (h *Hub) Subscribe(scope, userID string, client Subscriber) *Subscription {
	sub := &Subscription{hub: h, scope: scope, userID: userID, client: client, state: StateIdle}
	sub.setState(StateSubscribing)
	done := make(chan struct{})
	h.register <- registration{sub: sub, done: done}
	<-done
	sub.setState(StateActive)
	return sub
}

// Publish delivers the event to every matching subscription.
func (h *Hub) Publish(event domain.ChangeEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.broadcast <- event
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.unreg <- sub
}

func (h *Hub) run() {
	subs := make(map[string]map[*Subscription]struct{})
	for {
		select {
		case reg := <-h.register:
			if _, ok := subs[reg.sub.scope]; !ok {
				subs[reg.sub.scope] = make(map[*Subscription]struct{})
			}
			subs[reg.sub.scope][reg.sub] = struct{}{}
			close(reg.done)
		case sub := <-h.unreg:
			if scoped, ok := subs[sub.scope]; ok {
				delete(scoped, sub)
				if len(scoped) == 0 {
					delete(subs, sub.scope)
				}
			}
		case event := <-h.broadcast:
			scope := event.ProjectID
			if event.Table == domain.TableProjects {
				scope = ScopeGlobal
			}
			scoped, ok := subs[scope]
			if !ok {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			for sub := range scoped {
				if !h.deliverable(event, sub.userID) {
					continue
				}
				if err := sub.client.Send(payload); err != nil {
					sub.fail()
					sub.client.Close()
					delete(scoped, sub)
				}
			}
			if len(scoped) == 0 {
				delete(subs, scope)
			}
		}
	}
}

// deliverable decides whether userID receives the event. Events carrying an
// explicit audience (deletes, whose rows no longer exist in the store) bypass
// the live visibility lookup; everything else is checked per delivery so
// revocations apply to subscriptions already in flight.
func (h *Hub) deliverable(event domain.ChangeEvent, userID string) bool {
	if len(event.Audience) > 0 {
		for _, id := range event.Audience {
			if id == userID {
				return true
			}
		}
		return false
	}
	if h.visible == nil {
		return true
	}
	return h.visible(event.ProjectID, userID)
}

// NewEvent builds a ChangeEvent with marshaled row snapshots. A snapshot that
// fails to marshal is dropped from the event rather than blocking delivery.
func NewEvent(table, op, projectID string, before, after any) domain.ChangeEvent {
	event := domain.ChangeEvent{
		Table:     table,
		Op:        op,
		ProjectID: projectID,
		At:        time.Now().UTC(),
	}
	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			event.Before = raw
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			event.After = raw
		}
	}
	return event
}
