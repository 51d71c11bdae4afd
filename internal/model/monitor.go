package model

// MonitorResponse is the hub health snapshot returned by the monitor route.
type MonitorResponse struct {
	Status      string          `json:"status"`
	Connections ConnectionStats `json:"connections"`
	Clients     []ClientInfo    `json:"clients"`
}

// ConnectionStats aggregates live connection counts.
type ConnectionStats struct {
	TotalConnected int `json:"totalConnected"`
	TotalTyping    int `json:"totalTyping"`
}

// ClientInfo describes one live connection.
type ClientInfo struct {
	ConnectionID string `json:"connectionId"`
	UserID       int64  `json:"userId"`
}
