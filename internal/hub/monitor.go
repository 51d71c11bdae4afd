package hub

import (
	"context"

	"github.com/Unknownlegend09/Chathub/internal/model"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// MonitorService gathers hub statistics for the monitor route.
type MonitorService struct {
	hub   *Hub
	users repo.UserRepository
}

func NewMonitorService(hub *Hub, users repo.UserRepository) *MonitorService {
	return &MonitorService{hub: hub, users: users}
}

// GetStats returns a snapshot of live connections and typing activity.
func (ms *MonitorService) GetStats(ctx context.Context) model.MonitorResponse {
	clients := ms.hub.Registry().All()

	infos := make([]model.ClientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, model.ClientInfo{
			ConnectionID: c.ID,
			UserID:       c.UserID(),
		})
	}

	typing := 0
	if users, err := ms.users.List(ctx); err == nil {
		for _, u := range users {
			if u.IsTyping {
				typing++
			}
		}
	}

	status := "healthy"
	if len(clients) == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status: status,
		Connections: model.ConnectionStats{
			TotalConnected: len(clients),
			TotalTyping:    typing,
		},
		Clients: infos,
	}
}
