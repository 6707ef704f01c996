package jobrecord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonymoraes/mediaserver/internal/models"
)

type redisBackend struct {
	client redis.UniversalClient
}

// NewRedis returns a record store for kind backed by Redis string keys
// holding JSON.
func NewRedis(client redis.UniversalClient, kind models.MediaKind) *Store {
	return newStore(kind, &redisBackend{client: client})
}

func (b *redisBackend) load(ctx context.Context, key string) (*Record, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get job record %s: %w", key, err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode job record %s: %w", key, err)
	}
	return &r, nil
}

func (b *redisBackend) create(ctx context.Context, key string, r *Record, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode job record: %w", err)
	}
	if err := b.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set job record %s: %w", key, err)
	}
	return nil
}

// maxModifyAttempts bounds optimistic retries when another writer touches
// the key between WATCH and EXEC.
const maxModifyAttempts = 10

// modify runs fn inside WATCH/MULTI and writes with SET XX KEEPTTL, so the
// record never outlives its original deadline and is never resurrected
// after expiry.
func (b *redisBackend) modify(ctx context.Context, key string, fn func(*Record) (bool, error)) (*Record, error) {
	var out *Record
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return errMissing
		}
		if err != nil {
			return fmt.Errorf("get job record %s: %w", key, err)
		}

		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("decode job record %s: %w", key, err)
		}
		changed, err := fn(&r)
		if err != nil {
			return err
		}
		out = &r
		if !changed {
			return nil
		}

		enc, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("encode job record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, enc, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		if errors.Is(err, redis.Nil) {
			return errMissing
		}
		return err
	}

	for range maxModifyAttempts {
		err := b.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update job record %s: too many concurrent writers", key)
}

func (b *redisBackend) remove(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete job record %s: %w", key, err)
	}
	return nil
}
