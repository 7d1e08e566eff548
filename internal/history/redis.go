package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/symbol-takeoff/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces every key; defaults to "takeoff".
	Prefix string

	// TTL expires entries; zero keeps them forever.
	TTL time.Duration

	Logger logrus.FieldLogger
}

// RedisStore keeps each entry as a JSON string under <prefix>:entry:<id> and
// indexes job IDs by creation time in the sorted set <prefix>:index.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    logrus.FieldLogger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	s := NewRedisStoreFromClient(client, opts.Prefix, opts.TTL)
	if opts.Logger != nil {
		s.log = opts.Logger
	}
	s.log.WithField("addr", opts.Addr).Debug("connected to redis")
	return s, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "takeoff"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		log:    logging.Discard(),
	}
}

func (s *RedisStore) entryKey(jobID string) string {
	return s.prefix + ":entry:" + jobID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":index"
}

// Save writes e, replacing any entry with the same job ID.
func (s *RedisStore) Save(ctx context.Context, e Entry) error {
	if e.JobID == "" {
		return errors.New("entry has no job ID")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	data, err := encodeEntry(e)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.entryKey(e.JobID), data, s.ttl)
		p.ZAdd(ctx, s.indexKey(), redis.Z{
			Score:  float64(e.CreatedAt.UnixMilli()),
			Member: e.JobID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", e.JobID, err)
	}

	s.log.WithFields(logrus.Fields{"job_id": e.JobID, "project": e.Project}).Debug("history entry saved")
	return nil
}

// Load reads one entry.
func (s *RedisStore) Load(ctx context.Context, jobID string) (*Entry, error) {
	data, err := s.client.Get(ctx, s.entryKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", jobID, err)
	}
	return decodeEntry(data)
}

// List returns entries newest first. Index members whose entry has expired
// are removed from the index.
func (s *RedisStore) List(ctx context.Context, limit int) ([]Entry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history index: %w", err)
	}
	if len(ids) == 0 {
		return []Entry{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history entries: %w", err)
	}

	entries := make([]Entry, 0, len(vals))
	var stale []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		e, err := decodeEntry([]byte(str))
		if err != nil {
			s.log.WithFields(logrus.Fields{"job_id": ids[i], "error": err}).Warn("skipping unreadable history entry")
			continue
		}
		entries = append(entries, *e)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.log.WithField("error", err).Warn("failed to prune history index")
		}
	}
	return entries, nil
}

// Delete removes an entry and its index member.
func (s *RedisStore) Delete(ctx context.Context, jobID string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.entryKey(jobID))
		p.ZRem(ctx, s.indexKey(), jobID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", jobID, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return nil
}

// Rename sets the project name of an entry, keeping its TTL.
func (s *RedisStore) Rename(ctx context.Context, jobID, project string) error {
	e, err := s.Load(ctx, jobID)
	if err != nil {
		return err
	}
	e.Project = project

	data, err := encodeEntry(*e)
	if err != nil {
		return err
	}
	if err := s.client.SetArgs(ctx, s.entryKey(jobID), data, redis.SetArgs{KeepTTL: true}).Err(); err != nil {
		return fmt.Errorf("failed to rename %s: %w", jobID, err)
	}
	return nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeEntry(e Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry %s: %w", e.JobID, err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return &e, nil
}
