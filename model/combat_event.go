package model

import (
	"time"

	"gorm.io/datatypes"
)

// CombatEvent records one notification raised during a simulation run.
type CombatEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string         `gorm:"index:idx_combat_session;size:36;not null" json:"session_id"`
	Run       int            `gorm:"index:idx_combat_session" json:"run"`
	SimTimeMs int64          `gorm:"not null" json:"sim_time_ms"`
	Source    string         `gorm:"index:idx_combat_source;size:64" json:"source"`
	Event     string         `gorm:"size:32;not null" json:"event"`
	Value     float64        `json:"value"`
	Payload   datatypes.JSON `json:"payload"`
	CreatedAt time.Time      `gorm:"index:idx_combat_created;autoCreateTime:milli" json:"created_at"`
}

// RunSummary is one row per completed run.
type RunSummary struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID  string    `gorm:"uniqueIndex:idx_run_session;size:36;not null" json:"session_id"`
	Run        int       `gorm:"uniqueIndex:idx_run_session" json:"run"`
	DurationMs int64     `json:"duration_ms"`
	Shots      int       `json:"shots"`
	Deaths     int       `json:"deaths"`
	CreatedAt  time.Time `gorm:"autoCreateTime:milli" json:"created_at"`
}
