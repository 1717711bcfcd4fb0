package scene

// EventType identifies scene events.
type EventType int

const (
	EventLoaded EventType = iota
	EventPanelsChanged
	EventSelectionChanged
	EventStateChanged
	EventNotice
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// On registers an event listener for the specified event type.
func (s *Store) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *Store) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// Notify surfaces a non-blocking message to whoever presents notices.
func (s *Store) Notify(msg string) {
	s.Emit(EventNotice, msg)
}
