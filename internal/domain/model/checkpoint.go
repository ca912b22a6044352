package model

import (
	"encoding/json"
	"time"
)

// Checkpoint is one durable snapshot record. State is opaque to the
// checkpoint layer; it is stored as raw JSON and never inspected.
type Checkpoint struct {
	ID        string          `json:"checkpoint_id"`
	Label     string          `json:"label"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// CheckpointMeta is checkpoint metadata without the state payload.
type CheckpointMeta struct {
	ID        string    `json:"checkpoint_id"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Checkpoint) Meta() CheckpointMeta {
	return CheckpointMeta{ID: c.ID, Label: c.Label, CreatedAt: c.CreatedAt}
}
