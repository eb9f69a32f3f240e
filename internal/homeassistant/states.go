package homeassistant

import "sync"

// stateUnavailable is reported for entities that were removed.
const stateUnavailable = "unavailable"

// StateChange is a new state for one entity.
type StateChange struct {
	EntityID string
	State    string
}

type stateSubscription struct {
	entities map[string]struct{}
	handler  func(StateChange)
}

// stateStore caches entity states and fans changes out to subscribers.
type stateStore struct {
	mu     sync.RWMutex
	values map[string]string
	subs   map[int]*stateSubscription
	nextID int
}

func newStateStore() *stateStore {
	return &stateStore{
		values: make(map[string]string),
		subs:   make(map[int]*stateSubscription),
	}
}

func (s *stateStore) get(entityID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[entityID]
	return v, ok
}

// set stores a state and reports whether it changed.
func (s *stateStore) set(entityID, state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.values[entityID]; ok && prev == state {
		return false
	}
	s.values[entityID] = state
	return true
}

// replaceAll swaps in a full state listing and returns the entries that
// differ from the cache, including entities that disappeared.
func (s *stateStore) replaceAll(states []entityState) []entityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(states))
	var changed []entityState
	for _, st := range states {
		next[st.EntityID] = st.State
		if prev, ok := s.values[st.EntityID]; !ok || prev != st.State {
			changed = append(changed, st)
		}
	}
	for id := range s.values {
		if _, ok := next[id]; !ok {
			next[id] = stateUnavailable
			if s.values[id] != stateUnavailable {
				changed = append(changed, entityState{EntityID: id, State: stateUnavailable})
			}
		}
	}
	s.values = next
	return changed
}

func (s *stateStore) subscribe(entityIDs []string, handler func(StateChange)) func() {
	sub := &stateSubscription{
		entities: make(map[string]struct{}, len(entityIDs)),
		handler:  handler,
	}
	for _, id := range entityIDs {
		sub.entities[id] = struct{}{}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// notify calls every subscriber interested in the entity.
func (s *stateStore) notify(entityID, state string) {
	s.mu.RLock()
	var handlers []func(StateChange)
	for _, sub := range s.subs {
		if _, ok := sub.entities[entityID]; ok {
			handlers = append(handlers, sub.handler)
		}
	}
	s.mu.RUnlock()

	change := StateChange{EntityID: entityID, State: state}
	for _, h := range handlers {
		h(change)
	}
}

// CurrentValue returns the cached state of an entity.
func (c *Client) CurrentValue(entityID string) (string, bool) {
	return c.states.get(entityID)
}

// SubscribeChanges registers handler for state changes of the listed
// entities. Handlers run on the client's notification worker, one at a
// time and in the order Home Assistant reported the changes.
func (c *Client) SubscribeChanges(entityIDs []string, handler func(StateChange)) (func(), error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.states.subscribe(entityIDs, handler), nil
}
