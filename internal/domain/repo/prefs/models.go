package prefs

import (
	"encoding/json"
	"fmt"

	"github.com/fanpulse/livewire/internal/domain/entity"
)

const (
	fieldChannels    = "channels"
	fieldModes       = "modes"
	fieldContacts    = "contacts"
	fieldQuiet       = "quiet"
	fieldMinPriority = "minPriority"
)

type quietWindow struct {
	StartMinute int    `json:"startMinute"`
	EndMinute   int    `json:"endMinute"`
	Timezone    string `json:"timezone,omitempty"`
}

func mapToFields(pref entity.Preference) (map[string]string, error) {
	channels, err := json.Marshal(pref.Channels)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal channels: %w", err)
	}

	modes, err := json.Marshal(pref.Modes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal modes: %w", err)
	}

	contacts, err := json.Marshal(pref.Contacts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal contacts: %w", err)
	}

	quiet, err := json.Marshal(quietWindow{
		StartMinute: pref.Quiet.StartMinute,
		EndMinute:   pref.Quiet.EndMinute,
		Timezone:    pref.Quiet.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quiet window: %w", err)
	}

	return map[string]string{
		fieldChannels:    string(channels),
		fieldModes:       string(modes),
		fieldContacts:    string(contacts),
		fieldQuiet:       string(quiet),
		fieldMinPriority: pref.MinPriority.String(),
	}, nil
}

func mapToEntity(user entity.UserID, fields map[string]string) (entity.Preference, error) {
	ret := entity.Preference{
		User:     user,
		Channels: map[entity.ChannelID]bool{},
		Modes:    map[entity.AlertType]entity.DeliveryMode{},
		Contacts: map[entity.ChannelID]string{},
	}

	if raw, ok := fields[fieldChannels]; ok && raw != "" {
		err := json.Unmarshal([]byte(raw), &ret.Channels)
		if err != nil {
			return ret, fmt.Errorf("failed to unmarshal channels: %w", err)
		}
	}

	if raw, ok := fields[fieldModes]; ok && raw != "" {
		err := json.Unmarshal([]byte(raw), &ret.Modes)
		if err != nil {
			return ret, fmt.Errorf("failed to unmarshal modes: %w", err)
		}
	}

	if raw, ok := fields[fieldContacts]; ok && raw != "" {
		err := json.Unmarshal([]byte(raw), &ret.Contacts)
		if err != nil {
			return ret, fmt.Errorf("failed to unmarshal contacts: %w", err)
		}
	}

	if raw, ok := fields[fieldQuiet]; ok && raw != "" {
		quiet := quietWindow{}

		err := json.Unmarshal([]byte(raw), &quiet)
		if err != nil {
			return ret, fmt.Errorf("failed to unmarshal quiet window: %w", err)
		}

		ret.Quiet = entity.QuietHours{
			StartMinute: quiet.StartMinute,
			EndMinute:   quiet.EndMinute,
			Timezone:    quiet.Timezone,
		}
	}

	if raw, ok := fields[fieldMinPriority]; ok && raw != "" {
		priority, err := entity.ParsePriority(raw)
		if err != nil {
			return ret, fmt.Errorf("failed to parse min priority: %w", err)
		}

		ret.MinPriority = priority
	}

	return ret, nil
}
