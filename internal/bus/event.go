package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds used across the daemon:
//
//	rt.message            inbound chat message (payload *realtime.MessageEvent)
//	rt.profile_updated    profile change (payload *realtime.ProfileEvent)
//	rt.notification       new notification (payload *realtime.NotificationEvent)
//	session.status_changed  connection state transition
//	session.credentials_changed  cached credentials were rewritten
//	roster.updated        conversation list changed
//	notify.updated        notification list changed
//	outbox.send_ack / outbox.send_failed  send pipeline results
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
