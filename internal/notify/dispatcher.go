// Package notify pushes server-initiated events to online users.
package notify

import (
	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/logging"
	"github.com/HammerMeetNail/skillswap/internal/metrics"
	"github.com/HammerMeetNail/skillswap/internal/models"
	"github.com/HammerMeetNail/skillswap/internal/presence"
)

// Directory resolves a user to their live connection.
type Directory interface {
	Lookup(userID uuid.UUID) (presence.Handle, bool)
}

// Dispatcher delivers events fire-and-forget. Offline users and full
// connection buffers are skipped; nothing is queued for later.
type Dispatcher struct {
	directory Directory
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

func NewDispatcher(directory Directory, m *metrics.Metrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default
	}
	return &Dispatcher{directory: directory, metrics: m, logger: logger.WithComponent("notify")}
}

// Notify pushes event to userID and reports whether it was queued on a live connection.
func (d *Dispatcher) Notify(userID uuid.UUID, event string, payload any) bool {
	h, ok := d.directory.Lookup(userID)
	if !ok {
		d.metrics.CountNotification(event, metrics.ResultOffline)
		d.logger.Debug("Recipient offline", logging.Fields{"user_id": userID.String(), "event": event})
		return false
	}

	ev, err := models.NewEvent(event, payload)
	if err != nil {
		d.metrics.CountNotification(event, metrics.ResultDropped)
		d.logger.Error("Failed to encode event", logging.Fields{"event": event, "error": err.Error()})
		return false
	}

	if !h.Send(ev) {
		d.metrics.CountNotification(event, metrics.ResultDropped)
		d.logger.Warn("Dropped event for slow connection", logging.Fields{
			"user_id": userID.String(),
			"session": h.ID(),
			"event":   event,
		})
		return false
	}

	d.metrics.CountNotification(event, metrics.ResultQueued)
	return true
}
