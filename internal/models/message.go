package models

const (
	MsgSessionStarted  = "session_started"
	MsgSessionFinished = "session_finished"
	MsgHealthCheck     = "health_check"
	MsgSessionStats    = "session_stats"
	MsgConnected       = "connected"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type HealthCheck struct {
	Status string       `json:"sys_status"`
	Uptime int64        `json:"uptime"`
	Host   *HostMetrics `json:"host_metrics,omitempty"`
}
