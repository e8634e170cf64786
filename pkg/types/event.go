package types

// WatchEventType defines the kind of host event delivered to a watch controller.
type WatchEventType string

const (
	EventTypeConfigChanged     WatchEventType = "config_changed"     // EventTypeConfigChanged indicates the configuration record was modified.
	EventTypeVisibilityChanged WatchEventType = "visibility_changed" // EventTypeVisibilityChanged indicates the page became hidden or visible.
	EventTypeMutationBatch     WatchEventType = "mutation_batch"     // EventTypeMutationBatch indicates the observed subtree changed.
)

// WatchEvent represents a host notification dispatched to a watch controller.
type WatchEvent struct {
	// Type indicates the kind of event.
	Type WatchEventType

	// Keys lists the changed record keys (for config changed events).
	Keys []string

	// Hidden reports the new page visibility (for visibility events).
	Hidden bool

	// Batch describes the observed mutations (for mutation batch events).
	Batch *MutationBatch
}

// MutationBatch is the set of subtree mutations delivered in one notification.
type MutationBatch struct {
	// ObservationID identifies the observation that produced the batch.
	ObservationID uint64

	// Records is the number of mutation records in the batch.
	Records int
}

// NewConfigChangedEvent creates a config changed event.
func NewConfigChangedEvent(keys ...string) *WatchEvent {
	return &WatchEvent{
		Type: EventTypeConfigChanged,
		Keys: keys,
	}
}

// NewVisibilityChangedEvent creates a visibility changed event.
func NewVisibilityChangedEvent(hidden bool) *WatchEvent {
	return &WatchEvent{
		Type:   EventTypeVisibilityChanged,
		Hidden: hidden,
	}
}

// NewMutationBatchEvent creates a mutation batch event.
func NewMutationBatchEvent(observationID uint64, records int) *WatchEvent {
	return &WatchEvent{
		Type: EventTypeMutationBatch,
		Batch: &MutationBatch{
			ObservationID: observationID,
			Records:       records,
		},
	}
}
