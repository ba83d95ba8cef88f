package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// DefaultRedisTTL keeps a run's list around long enough to inspect a
// failed CI job.
const DefaultRedisTTL = 24 * time.Hour

// ListStore is the part of the Redis client the journal writes through.
// *redis.Client from pkg/clients/redis satisfies it.
type ListStore interface {
	Append(ctx context.Context, key string, ttl time.Duration, values ...interface{}) (int64, error)
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
}

var _ ListStore = (*redis.Client)(nil)

// RedisJournal pushes every entry as JSON onto the list "apitest:journal:<run>".
type RedisJournal struct {
	store ListStore
	key   string
	ttl   time.Duration
}

// NewRedisJournal returns a RedisJournal for runID. ttl <= 0 uses
// [DefaultRedisTTL].
func NewRedisJournal(store ListStore, runID string, ttl time.Duration) *RedisJournal {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisJournal{store: store, key: RedisKey(runID), ttl: ttl}
}

// RedisKey returns the list key holding runID's entries.
func RedisKey(runID string) string {
	return "apitest:journal:" + runID
}

// Key returns the list key.
func (j *RedisJournal) Key() string { return j.key }

func (j *RedisJournal) Record(ctx context.Context, e Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "journal: cannot encode entry")
	}
	if _, err := j.store.Append(ctx, j.key, j.ttl, string(b)); err != nil {
		return err
	}
	return nil
}

func (j *RedisJournal) Flush(context.Context) error { return nil }

// Entries reads the run's list back.
func (j *RedisJournal) Entries(ctx context.Context) ([]Entry, error) {
	raw, err := j.store.Range(ctx, j.key, 0, -1)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, sserr.Wrapf(err, sserr.CodeValidationFormat, "journal: malformed entry in %s", j.key)
		}
		out = append(out, e)
	}
	return out, nil
}
