package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Brew is a standing briefing subscription. Brews are deactivated, never
// deleted.
type Brew struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint64     `gorm:"index;not null" json:"user_id"`
	Name         string     `gorm:"type:varchar(255);not null" json:"name"`
	Topics       []string   `gorm:"type:text;serializer:json" json:"topics"`
	DeliveryTime string     `gorm:"type:varchar(5);not null" json:"delivery_time"`
	IsActive     bool       `gorm:"index;not null;default:true" json:"is_active"`
	LastSentDate *time.Time `json:"last_sent_date"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (Brew) TableName() string { return "brews" }

// ParseClock parses a 24-hour "HH:MM" (or "HH:MM:SS") time of day.
// "24:00" is accepted as midnight.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid time of day %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour == 24 && minute == 0 {
		hour = 0
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time of day out of range %q", s)
	}
	return hour, minute, nil
}

// ClockLabel renders "19:30" as "07:30 PM".
func ClockLabel(s string) string {
	h, m, err := ParseClock(s)
	if err != nil {
		return s
	}
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format("03:04 PM")
}
