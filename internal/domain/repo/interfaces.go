package repo

import (
	"context"
	"errors"

	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/pkg/pipeline"
)

//go:generate mockgen -source=interfaces.go -package=mock -destination=./mock/mock_repo.go

// ErrNotFound is returned by readers when the key has no stored value.
var ErrNotFound = errors.New("not found")

type RosterResolver interface {
	ResolveAffectedUsers(ctx context.Context, ref entity.EntityRef) ([]entity.UserID, error)
}

type RosterWriter interface {
	AddFollower(ctx context.Context, ref entity.EntityRef, user entity.UserID) error
	RemoveFollower(ctx context.Context, ref entity.EntityRef, user entity.UserID) error
}

type Roster interface {
	RosterResolver
	RosterWriter
}

type PreferenceStore interface {
	GetPreference(ctx context.Context, user entity.UserID) (entity.Preference, error)
	ListPreferences(ctx context.Context) ([]entity.Preference, error)
	PutPreference(ctx context.Context, pref entity.Preference) error
}

type AlertHistoryWriter interface {
	WriteAlert(ctx context.Context, alert entity.Alert, results []entity.DeliveryResult) error
}

type AlertHistoryReader interface {
	History(ctx context.Context, user entity.UserID, limit int) ([]entity.HistoryEntry, error)
}

type AlertHistory interface {
	AlertHistoryWriter
	AlertHistoryReader
}

type ProcessingErrorWriter interface {
	WriteProcessingError(ctx context.Context, pErr pipeline.ErrProcessingError) error
}
