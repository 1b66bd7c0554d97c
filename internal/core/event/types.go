package event

import "time"

// DisasterStarted is emitted when a disaster becomes active, either through
// the probability gate or a manual trigger.
type DisasterStarted struct {
	RegionID   string
	DisasterID string
	Manual     bool
	At         time.Time
	EndsAt     time.Time
}

// EndReason tells why a disaster left the active state.
type EndReason string

const (
	EndExpired  EndReason = "expired"
	EndManual   EndReason = "manual"
	EndReplaced EndReason = "replaced" // manual trigger restarted it
	EndReload   EndReason = "reload"
	EndShutdown EndReason = "shutdown"
)

// DisasterEnded is emitted when an active disaster returns to idle.
type DisasterEnded struct {
	RegionID   string
	DisasterID string
	Reason     EndReason
	At         time.Time
}
