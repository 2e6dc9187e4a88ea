package session

// Notifier receives side-channel events from the state machine (analytics,
// UI toasts). Implementations must not block; failures are the notifier's
// own problem and never affect the machine.
type Notifier interface {
	Event(name string, attrs map[string]string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Event(string, map[string]string) {}
