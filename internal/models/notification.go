package models

import "time"

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	// ChannelSlack is reserved; no sender exists for it yet.
	ChannelSlack NotificationChannel = "slack"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
)

type NotificationLog struct {
	ID        int64
	RequestID int64
	Channel   NotificationChannel
	Status    NotificationStatus
	SentAt    time.Time
}
