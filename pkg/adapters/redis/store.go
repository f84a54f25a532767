package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/observer/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.Store using Redis.
//
// Rows are JSON strings under "<prefix>row:<type>:<pk>". Every type keeps a
// ZSET index scored by pk so List returns keys in ascending order, and every
// join relation keeps one ZSET per (side, pk).
type Store struct {
	client *backend.Client
	prefix string
}

type Option func(*Store)

// WithPrefix sets the key prefix of every key written by the store.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "observer:",
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (s *Store) Client() *backend.Client {
	return s.client
}

func (s *Store) rowKey(typeName string, pk domain.PK) string {
	return fmt.Sprintf("%srow:%s:%d", s.prefix, typeName, pk)
}

func (s *Store) indexKey(typeName string) string {
	return s.prefix + "index:" + typeName
}

func (s *Store) seqKey(typeName string) string {
	return s.prefix + "seq:" + typeName
}

func (s *Store) linkKey(through string, side domain.JoinSide, pk domain.PK) string {
	return fmt.Sprintf("%slink:%s:%s:%d", s.prefix, through, side, pk)
}

// NextID increments the per-type sequence.
func (s *Store) NextID(ctx context.Context, typeName string) (domain.PK, error) {
	n, err := s.client.Incr(ctx, s.seqKey(typeName)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", typeName, err)
	}
	return domain.PK(n), nil
}

// Put persists the row and indexes it.
func (s *Store) Put(ctx context.Context, typeName string, pk domain.PK, record domain.Record) error {
	if record == nil {
		record = domain.Record{}
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.rowKey(typeName, pk), data, 0)
	pipe.ZAdd(ctx, s.indexKey(typeName), backend.Z{
		Score:  float64(pk),
		Member: strconv.FormatInt(int64(pk), 10),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Get retrieves the row from Redis.
func (s *Store) Get(ctx context.Context, typeName string, pk domain.PK) (domain.Record, error) {
	val, err := s.client.Get(ctx, s.rowKey(typeName, pk)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row: %w", err)
	}
	if rec == nil {
		rec = domain.Record{}
	}
	return domain.NormalizeRecord(rec), nil
}

// Delete removes the row and its index entry.
func (s *Store) Delete(ctx context.Context, typeName string, pk domain.PK) error {
	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.rowKey(typeName, pk))
	pipe.ZRem(ctx, s.indexKey(typeName), strconv.FormatInt(int64(pk), 10))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	if del.Val() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns the keys of the type from its index.
func (s *Store) List(ctx context.Context, typeName string) ([]domain.PK, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(typeName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", typeName, err)
	}
	return parsePKs(members)
}

// Link adds (src, dst) to both sides of the join relation.
func (s *Store) Link(ctx context.Context, through string, src, dst domain.PK) error {
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, s.linkKey(through, domain.SourceSide, src), backend.Z{
		Score: float64(dst), Member: strconv.FormatInt(int64(dst), 10),
	})
	pipe.ZAdd(ctx, s.linkKey(through, domain.TargetSide, dst), backend.Z{
		Score: float64(src), Member: strconv.FormatInt(int64(src), 10),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to link %s: %w", through, err)
	}
	return nil
}

// Unlink removes (src, dst) from both sides of the join relation.
func (s *Store) Unlink(ctx context.Context, through string, src, dst domain.PK) error {
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, s.linkKey(through, domain.SourceSide, src), strconv.FormatInt(int64(dst), 10))
	pipe.ZRem(ctx, s.linkKey(through, domain.TargetSide, dst), strconv.FormatInt(int64(src), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to unlink %s: %w", through, err)
	}
	return nil
}

// Links returns the keys linked to pk on the given side.
func (s *Store) Links(ctx context.Context, through string, side domain.JoinSide, pk domain.PK) ([]domain.PK, error) {
	members, err := s.client.ZRange(ctx, s.linkKey(through, side, pk), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read links of %s: %w", through, err)
	}
	return parsePKs(members)
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

func parsePKs(members []string) ([]domain.PK, error) {
	pks := make([]domain.PK, 0, len(members))
	for _, m := range members {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt index member %q: %w", m, err)
		}
		pks = append(pks, domain.PK(n))
	}
	return pks, nil
}
