package roster

import (
	"context"
	"errors"
	"syscall"

	"github.com/valkey-io/valkey-go"

	"github.com/fanpulse/livewire/internal/common"
	"github.com/fanpulse/livewire/internal/domain/entity"
)

const (
	categoryInternalError     = "valkey_internal_error"
	categoryValkeyClientError = "valkey_client"

	keyPrefix = "roster:"
)

// ValkeyRepo keeps one set per tracked entity under roster:<entityID>,
// holding the ids of every user following that entity. Entity ids are
// globally unique across kinds, so the kind is not part of the key.
type ValkeyRepo struct {
	client valkey.Client
}

func NewValkeyRepo(client valkey.Client) ValkeyRepo {
	return ValkeyRepo{client: client}
}

func (r ValkeyRepo) ResolveAffectedUsers(ctx context.Context, ref entity.EntityRef) ([]entity.UserID, error) {
	command := r.client.B().Smembers().Key(key(ref)).Build()

	resp := r.client.Do(ctx, command)

	err := resp.Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return nil, common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to get roster members")
		default:
			return nil, common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to get roster members")
		}
	}

	members, err := resp.AsStrSlice()
	if err != nil {
		return nil, common.NewErrProcessingError(err, categoryInternalError, nil, "unexpected smembers response type for %s", ref.ID)
	}

	ret := make([]entity.UserID, 0, len(members))
	for _, member := range members {
		ret = append(ret, entity.UserID(member))
	}

	return ret, nil
}

func (r ValkeyRepo) AddFollower(ctx context.Context, ref entity.EntityRef, user entity.UserID) error {
	command := r.client.B().Sadd().Key(key(ref)).Member(string(user)).Build()

	err := r.client.Do(ctx, command).Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to add roster member")
		default:
			return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to add roster member")
		}
	}

	return nil
}

func (r ValkeyRepo) RemoveFollower(ctx context.Context, ref entity.EntityRef, user entity.UserID) error {
	command := r.client.B().Srem().Key(key(ref)).Member(string(user)).Build()

	err := r.client.Do(ctx, command).Error()
	if err != nil {
		switch {
		case r.isRetryable(err):
			return common.NewRetryableErrProcessingError(err, categoryValkeyClientError, nil, "failed to remove roster member")
		default:
			return common.NewErrProcessingError(err, categoryValkeyClientError, nil, "failed to remove roster member")
		}
	}

	return nil
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

func key(ref entity.EntityRef) string {
	return keyPrefix + ref.ID
}
