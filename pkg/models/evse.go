package models

import "time"

// Evse is a charging point on a station. A nil ConnectorID is a value of
// its natural key, so {1, nil} and {1, 1} are different EVSEs.
type Evse struct {
	DatabaseID  string    `json:"database_id,omitempty"`
	ID          int       `json:"id"`
	ConnectorID *int      `json:"connector_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}
