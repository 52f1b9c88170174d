// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;index"`
	Type    NotificationType `json:"type" gorm:"type:varchar(30);not null"`
	Title   string           `json:"title" gorm:"size:200;not null"`
	Message string           `json:"message" gorm:"type:text"`
	Data    JSONB            `json:"data" gorm:"type:text"`
	ReadAt  *time.Time       `json:"read_at"`
}
