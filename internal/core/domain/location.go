package domain

import "time"

type LocationKind string

const (
	LocationStore           LocationKind = "store"
	LocationProductionHouse LocationKind = "production_house"
)

func (k LocationKind) Valid() bool {
	return k == LocationStore || k == LocationProductionHouse
}

// Location is either a retail store or a production house (kitchen).
type Location struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Kind          LocationKind `json:"kind"`
	Address       string       `json:"address,omitempty"`
	ClusterHeadID string       `json:"cluster_head_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
