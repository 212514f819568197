package models

import "time"

// ConnectionType is the transport mode of a transfer as written to the performance log.
type ConnectionType string

const (
	ConnTCP ConnectionType = "TCP"
	ConnTLS ConnectionType = "TLS"
)

func ConnectionTypeFor(useTLS bool) ConnectionType {
	if useTLS {
		return ConnTLS
	}
	return ConnTCP
}

func (c ConnectionType) Valid() bool {
	return c == ConnTCP || c == ConnTLS
}

// PerformanceSample is one measured client transfer. Samples are never mutated after creation.
type PerformanceSample struct {
	Timestamp      time.Time      `json:"timestamp"`
	ConnectionType ConnectionType `json:"connection_type"`
	DataSize       int64          `json:"data_size"`
	Duration       time.Duration  `json:"duration"`
	AverageSpeed   float64        `json:"average_speed"` // bytes per second
}

func NewPerformanceSample(ts time.Time, connType ConnectionType, dataSize int64, duration time.Duration) PerformanceSample {
	return PerformanceSample{
		Timestamp:      ts,
		ConnectionType: connType,
		DataSize:       dataSize,
		Duration:       duration,
		AverageSpeed:   AverageSpeed(dataSize, duration),
	}
}

// AverageSpeed returns bytes per second, or 0 when the duration is not positive.
func AverageSpeed(dataSize int64, duration time.Duration) float64 {
	if duration <= 0 {
		return 0
	}
	return float64(dataSize) / duration.Seconds()
}
