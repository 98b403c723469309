package model

import "github.com/smartgarden/pumpbridge/internal/model/messages"

// Alias to expose common wire types to the services

type (
	Attribute         = messages.Attribute
	DeviceEvent       = messages.DeviceEvent
	PushNotification  = messages.PushNotification
	PumpDecisionEvent = messages.PumpDecisionEvent
)
