package history

import (
	"context"
	"encoding/json"
	"errors"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/valkey-io/valkey-go"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/config"
	"github.com/fanpulse/livewire/internal/domain/entity"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"

	// per-user feed depth; older entries only live in the archive
	maxEntries = 256
)

// ValkeyRepo keeps a bounded per-user feed of settled alerts under
// <prefix>:<user>, newest first, expiring after the configured TTL.
type ValkeyRepo struct {
	client valkey.Client
	clock  clockwork.Clock

	prefix string
	ttl    time.Duration
}

func NewValkeyRepo(client valkey.Client, clock clockwork.Clock, conf config.History) ValkeyRepo {
	return ValkeyRepo{
		client: client,
		clock:  clock,
		prefix: conf.KeyPrefix,
		ttl:    conf.TTL,
	}
}

func (r ValkeyRepo) WriteAlert(ctx context.Context, alert entity.Alert, results []entity.DeliveryResult) error {
	rec := mapToRecord(alert, results, r.clock.Now())

	data, err := json.Marshal(rec)
	if err != nil {
		return common.NewErrProcessingError(err, categoryInternalError, nil, "failed to marshal history record")
	}

	commands := make([]valkey.Completed, 0, 3*len(alert.Recipients))

	for _, user := range alert.Recipients {
		key := r.key(user)

		commands = append(commands,
			r.client.B().Lpush().Key(key).Element(string(data)).Build(),
			r.client.B().Ltrim().Key(key).Start(0).Stop(maxEntries-1).Build(),
			r.client.B().Expire().Key(key).Seconds(int64(r.ttl.Seconds())).Build(),
		)
	}

	if len(commands) == 0 {
		return nil
	}

	for _, resp := range r.client.DoMulti(ctx, commands...) {
		err := resp.Error()
		if err != nil {
			switch {
			case r.isRetryable(err):
				return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to push history record")
			default:
				return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to push history record")
			}
		}
	}

	return nil
}

func (r ValkeyRepo) History(ctx context.Context, user entity.UserID, limit int) ([]entity.HistoryEntry, error) {
	if limit <= 0 || limit > maxEntries {
		limit = maxEntries
	}

	command := r.client.B().Lrange().Key(r.key(user)).Start(0).Stop(int64(limit - 1)).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return nil, common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to read history")
		default:
			return nil, common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to read history")
		}
	}

	raw, err := resp.AsStrSlice()
	if err != nil {
		return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected lrange response type for %s", user)
	}

	ret := make([]entity.HistoryEntry, 0, len(raw))

	for _, item := range raw {
		rec := record{}

		err := json.Unmarshal([]byte(item), &rec)
		if err != nil {
			return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "failed to unmarshal history record for %s", user)
		}

		entry, err := mapToEntity(rec)
		if err != nil {
			return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "failed to map history record for %s", user)
		}

		ret = append(ret, entry)
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

func (r ValkeyRepo) key(user entity.UserID) string {
	return r.prefix + ":" + string(user)
}
