package prefs

import (
	"context"
	"errors"
	"strings"
	"syscall"

	"github.com/valkey-io/valkey-go"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/domain/entity"
	"github.com/fanpulse/livewire/internal/domain/repo"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"

	keyPrefix = "prefs:"

	scanBatch = 128
)

// ValkeyRepo stores one hash per user under prefs:<user>. Fields hold the
// JSON-encoded preference parts so they can be updated independently.
type ValkeyRepo struct {
	client valkey.Client
}

func NewValkeyRepo(client valkey.Client) ValkeyRepo {
	return ValkeyRepo{client: client}
}

func (r ValkeyRepo) PutPreference(ctx context.Context, pref entity.Preference) error {
	fields, err := mapToFields(pref)
	if err != nil {
		return common.NewErrProcessingError(err, categoryInternalError, nil, "failed to map preference")
	}

	builder := r.client.B().Hset().Key(key(pref.User)).FieldValue()
	for field, value := range fields {
		builder = builder.FieldValue(field, value)
	}

	err = r.client.Do(ctx, builder.Build()).Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to set preference hash")
		default:
			return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to set preference hash")
		}
	}

	return nil
}

func (r ValkeyRepo) GetPreference(ctx context.Context, user entity.UserID) (entity.Preference, error) {
	command := r.client.B().Hgetall().Key(key(user)).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return entity.Preference{}, common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to get preference hash")
		default:
			return entity.Preference{}, common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to get preference hash")
		}
	}

	fields, err := resp.AsStrMap()
	if err != nil {
		return entity.Preference{}, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected hgetall response type for %s", user)
	}

	if len(fields) == 0 {
		return entity.Preference{}, repo.ErrNotFound
	}

	ret, err := mapToEntity(user, fields)
	if err != nil {
		return entity.Preference{}, common.NewErrProcessingError(err, categoryInternalError, nil, "failed to map preference hash for %s", user)
	}

	return ret, nil
}

func (r ValkeyRepo) ListPreferences(ctx context.Context) ([]entity.Preference, error) {
	ret := []entity.Preference{}

	var cursor uint64

	for {
		command := r.client.B().Scan().Cursor(cursor).Match(keyPrefix + "*").Count(scanBatch).Build()

		resp := r.client.Do(ctx, command)

		err := resp.Error()
		if err != nil {
			switch {
			case r.isRetryable(err):
				return nil, common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to scan preferences")
			default:
				return nil, common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to scan preferences")
			}
		}

		entry, err := resp.AsScanEntry()
		if err != nil {
			return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected scan response type")
		}

		for _, k := range entry.Elements {
			user := entity.UserID(strings.TrimPrefix(k, keyPrefix))

			pref, err := r.GetPreference(ctx, user)
			if err != nil {
				if errors.Is(err, repo.ErrNotFound) { // deleted between scan and read
					continue
				}

				return nil, err
			}

			ret = append(ret, pref)
		}

		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}

	return ret, nil
}

func (r ValkeyRepo) isRetryable(err error) bool {
	// Network error
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	// Valkey specfic error
	vErr, isValkeyError := valkey.IsValkeyErr(err)
	if !isValkeyError { // Retryable errors should have been handled before this block
		return false
	}

	return vErr.IsTryAgain()
}

func key(user entity.UserID) string {
	return keyPrefix + string(user)
}
