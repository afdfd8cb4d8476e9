package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type JointStateSnapshot struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Arm        string         `gorm:"index:idx_arm_ts,priority:1" json:"arm"`
	Command    string         `json:"command"`
	TS         time.Time      `gorm:"index:idx_arm_ts,priority:2" json:"ts"`
	Names      datatypes.JSON `json:"names"`
	Position   datatypes.JSON `json:"position"`
	Velocity   datatypes.JSON `json:"velocity"`
	Effort     datatypes.JSON `json:"effort"`
	RecordedAt time.Time      `json:"recorded_at"`
}
