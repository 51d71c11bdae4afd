package model

import (
	"time"
)

// Group is a named multi-user channel. Membership is stored for the sidebar
// and group listing; the broadcast path does not consult it (see the fan-out
// note in the hub package).
type Group struct {
	ID        int64     `json:"id" bson:"id"`
	Name      string    `json:"name" bson:"name"`
	CreatedBy int64     `json:"createdBy" bson:"created_by"`
	Members   []int64   `json:"members" bson:"members"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}
