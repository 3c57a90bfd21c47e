package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"carebook/backend/internal/domain"
)

const defaultSlotTTL = 5 * time.Minute

type cachedSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotCache is a read-through cache of free-slot lists. Entries are keyed by
// a per-(clinic, date) generation counter; bumping the counter orphans every
// entry for that day and the TTL reaps them.
type SlotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSlotCache(client redis.Cmdable, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = defaultSlotTTL
	}
	return &SlotCache{client: client, ttl: ttl}
}

func generationKey(clinicID uuid.UUID, date string) string {
	return "slots:gen:" + clinicID.String() + ":" + date
}

func entryKey(q domain.SlotQuery, gen int64) string {
	scope := "clinic"
	if q.DoctorID != nil {
		scope = "doctor:" + q.DoctorID.String()
	}
	return fmt.Sprintf("slots:%s:%s:%s:%d:g%d", q.ClinicID, q.Date, scope, q.DurationMinutes, gen)
}

func (c *SlotCache) generation(ctx context.Context, clinicID uuid.UUID, date string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(clinicID, date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the cached list along with the generation it was looked up
// under. A miss still reports the generation so the caller can store its
// computed list against the same one.
func (c *SlotCache) Get(ctx context.Context, q domain.SlotQuery) ([]domain.Window, int64, bool, error) {
	gen, err := c.generation(ctx, q.ClinicID, q.Date)
	if err != nil {
		return nil, 0, false, fmt.Errorf("slot cache generation: %w", err)
	}
	raw, err := c.client.Get(ctx, entryKey(q, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, gen, false, fmt.Errorf("slot cache get: %w", err)
	}

	var cached []cachedSlot
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, gen, false, fmt.Errorf("slot cache decode: %w", err)
	}
	out := make([]domain.Window, 0, len(cached))
	for _, s := range cached {
		out = append(out, domain.Window{Start: s.Start, End: s.End})
	}
	return out, gen, true, nil
}

// Set stores slots under gen, the generation observed by the Get that
// preceded the computation. A list computed before an Invalidate therefore
// lands under an orphaned key.
func (c *SlotCache) Set(ctx context.Context, q domain.SlotQuery, gen int64, slots []domain.Window) error {
	cached := make([]cachedSlot, 0, len(slots))
	for _, s := range slots {
		cached = append(cached, cachedSlot{Start: s.Start.UTC(), End: s.End.UTC()})
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("slot cache encode: %w", err)
	}
	if err := c.client.Set(ctx, entryKey(q, gen), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("slot cache set: %w", err)
	}
	return nil
}

// Invalidate bumps the generation of each (clinic, date).
func (c *SlotCache) Invalidate(ctx context.Context, clinicID uuid.UUID, dates ...string) error {
	_, err := c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, d := range dates {
			key := generationKey(clinicID, d)
			p.Incr(ctx, key)
			p.Expire(ctx, key, 48*time.Hour)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("slot cache invalidate: %w", err)
	}
	return nil
}
