package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"pricewise/internal/domain/job"
	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
)

const (
	jobKeyPrefix   = "pricing:job:"
	ownerKeyPrefix = "pricing:jobs:owner:"
	startedKey     = "pricing:jobs:started"

	maxUpdateAttempts = 10
)

// JobStore shares job progress between processes. Jobs are JSON values
// expiring after the retention period; updates use optimistic WATCH/MULTI
// transactions so concurrent patches of one job are merged, not lost.
type JobStore struct {
	client    *redis.Client
	retention time.Duration
	now       func() time.Time
}

var _ job.Store = (*JobStore)(nil)

func NewJobStore(client *redis.Client, retention time.Duration) *JobStore {
	return &JobStore{client: client, retention: retention, now: time.Now}
}

func jobKey(id string) string      { return jobKeyPrefix + id }
func ownerKey(owner string) string { return ownerKeyPrefix + owner }

func (s *JobStore) Start(ctx context.Context, ownerID string) (*job.Job, error) {
	if ownerID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "owner id is required")
	}

	j := job.New(uuid.NewString(), ownerID, s.now())
	data, err := json.Marshal(j)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal job")
	}

	score := float64(j.StartedAt.UnixNano())
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(j.ID), data, s.retention)
		pipe.ZAdd(ctx, ownerKey(ownerID), redis.Z{Score: score, Member: j.ID})
		pipe.Expire(ctx, ownerKey(ownerID), s.retention)
		pipe.ZAdd(ctx, startedKey, redis.Z{Score: score, Member: j.ID})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to store job %s", j.ID)
	}
	return j, nil
}

func (s *JobStore) Update(ctx context.Context, id string, patch job.Patch) (*job.Job, error) {
	return s.mutate(ctx, id, func(j *job.Job) { j.Apply(patch, s.now()) })
}

func (s *JobStore) Cancel(ctx context.Context, id string) (*job.Job, error) {
	return s.mutate(ctx, id, func(j *job.Job) { j.RequestCancel(s.now()) })
}

// mutate applies fn under WATCH and retries when another writer got in first.
func (s *JobStore) mutate(ctx context.Context, id string, fn func(*job.Job)) (*job.Job, error) {
	key := jobKey(id)
	var out *job.Job

	txf := func(tx *redis.Tx) error {
		j, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		fn(j)

		data, err := json.Marshal(j)
		if err != nil {
			return errors.Wrap(err, "failed to marshal job")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err == nil {
			out = j
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, errors.Newf("job %s: too many concurrent updates", id)
}

func (s *JobStore) Get(ctx context.Context, id string) (*job.Job, error) {
	return s.load(ctx, s.client, id)
}

func (s *JobStore) load(ctx context.Context, c redis.Cmdable, id string) (*job.Job, error) {
	data, err := c.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}

	var j job.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal job %s", id)
	}
	return &j, nil
}

// LatestForOwner walks the owner index newest first, dropping ids whose
// job has already expired.
func (s *JobStore) LatestForOwner(ctx context.Context, ownerID string) (*job.Job, error) {
	ids, err := s.client.ZRevRange(ctx, ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read jobs of owner %s", ownerID)
	}

	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if errors.Is(err, errors.ErrJobNotFound) {
			s.client.ZRem(ctx, ownerKey(ownerID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		return j, nil
	}
	return nil, errors.Wrapf(errors.ErrJobNotFound, "no jobs for owner %s", ownerID)
}

// Evict deletes finished jobs started before cutoff. Runs still in flight
// are kept; keys also expire on their own after the retention period.
func (s *JobStore) Evict(ctx context.Context, cutoff time.Time) (int, error) {
	upper := strconv.FormatInt(cutoff.UnixNano()-1, 10)
	ids, err := s.client.ZRangeByScore(ctx, startedKey, &redis.ZRangeBy{Min: "-inf", Max: upper}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to scan expired jobs")
	}

	var keys []string
	var members []interface{}
	evicted := 0
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		switch {
		case errors.Is(err, errors.ErrJobNotFound):
			members = append(members, id) // expired already, drop the index entry
			continue
		case err != nil:
			return 0, err
		case !j.State.Terminal():
			continue
		}
		keys = append(keys, jobKey(id))
		members = append(members, id)
		evicted++
	}

	if len(members) > 0 {
		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(keys) > 0 {
				pipe.Del(ctx, keys...)
			}
			pipe.ZRem(ctx, startedKey, members...)
			return nil
		})
		if err != nil {
			return 0, errors.Wrap(err, "failed to evict jobs")
		}
	}

	if size, err := s.client.ZCard(ctx, startedKey).Result(); err == nil {
		metrics.JobsTracked.Set(float64(size))
	}
	metrics.JobsEvicted.Add(float64(evicted))
	return evicted, nil
}
