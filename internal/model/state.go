package model

import "time"

// MeterState is the persisted notification state for one meter. One entry
// per customer number, overwritten completely after every run that reaches
// a notification decision.
type MeterState struct {
	LastBalance      *float64   `json:"last_balance"`
	IsLowBalance     bool       `json:"is_low_balance"`
	LastUpdated      time.Time  `json:"last_updated"`
	LastNotification *time.Time `json:"last_notification"`
}
