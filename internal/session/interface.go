package session

import "github.com/The-Promised-Neverland/tlsbench/internal/models"

// PayloadSink receives a fully accumulated payload. Without a sink the handler
// only counts bytes and discards them.
type PayloadSink interface {
	OnPayloadComplete(sessionID, remote string, payload []byte) error
}

// Observer is notified about session lifecycles (metrics, stats, live feeds).
type Observer interface {
	SessionStarted(ev models.SessionEvent)
	SessionFinished(ev models.SessionEvent)
}

type multiObserver []Observer

func (m multiObserver) SessionStarted(ev models.SessionEvent) {
	for _, o := range m {
		o.SessionStarted(ev)
	}
}

func (m multiObserver) SessionFinished(ev models.SessionEvent) {
	for _, o := range m {
		o.SessionFinished(ev)
	}
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}
