// Package cache keeps short-lived occupancy snapshots in Redis so seat
// map reads do not hit MySQL on every poll.  Snapshots are advisory: the
// booking engine never consults them when deciding a booking, and every
// committed change invalidates the screening's entry.
//
// Each screening carries a version counter next to its snapshot.  A
// reader notes the version before querying the store and may only write
// its snapshot back if the version is unchanged, so a read that raced a
// commit cannot resurrect the pre-commit occupancy.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-booking/internal/logger"
	"github.com/iliyamo/cinema-booking/internal/model"
)

// versionTTL bounds how long an idle screening's version key lives.  It
// only has to outlast a single store read.
const versionTTL = 24 * time.Hour

// putIfCurrent writes the snapshot only when the version key still holds
// the value the reader saw.  A missing version reads as "0".
var putIfCurrent = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then
    current = '0'
end
if current ~= ARGV[1] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Occupancy implements booking.OccupancyCache on Redis.  Redis errors
// are logged and treated as misses.
type Occupancy struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewOccupancy returns a cache storing snapshots under prefix:<id> for
// ttl.
func NewOccupancy(rdb *redis.Client, ttl time.Duration, prefix string, log *logger.Logger) *Occupancy {
	if log == nil {
		log = logger.Nop()
	}
	if prefix == "" {
		prefix = "occupancy"
	}
	return &Occupancy{rdb: rdb, ttl: ttl, prefix: prefix, log: log.WithComponent("occupancy-cache")}
}

func (o *Occupancy) key(screeningID uint64) string {
	return o.prefix + ":" + strconv.FormatUint(screeningID, 10)
}

func (o *Occupancy) versionKey(screeningID uint64) string {
	return o.prefix + ":" + strconv.FormatUint(screeningID, 10) + ":v"
}

// Version returns the screening's current version.  ok is false when
// Redis cannot be read, in which case the caller must not Put.
func (o *Occupancy) Version(ctx context.Context, screeningID uint64) (string, bool) {
	v, err := o.rdb.Get(ctx, o.versionKey(screeningID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0", true
	case err != nil:
		o.log.WithError(err).Warn("cache version read failed", "screening_id", screeningID)
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Get returns the cached snapshot, if any.
func (o *Occupancy) Get(ctx context.Context, screeningID uint64) (model.SeatSet, bool) {
	raw, err := o.rdb.Get(ctx, o.key(screeningID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			o.log.WithError(err).Warn("cache read failed", "screening_id", screeningID)
		}
		return nil, false
	}
	var seats []string
	if err := json.Unmarshal(raw, &seats); err != nil {
		o.log.WithError(err).Warn("cache entry corrupt", "screening_id", screeningID)
		return nil, false
	}
	set, err := model.ParseSeatSet(seats)
	if err != nil {
		o.log.WithError(err).Warn("cache entry corrupt", "screening_id", screeningID)
		return nil, false
	}
	return set, true
}

// Put stores a snapshot in wire form, row-major, provided version is
// still the screening's current version.  A stale write is dropped.
func (o *Occupancy) Put(ctx context.Context, screeningID uint64, version string, seats model.SeatSet) {
	body, err := json.Marshal(seats.Strings())
	if err != nil {
		return
	}
	keys := []string{o.key(screeningID), o.versionKey(screeningID)}
	stored, err := putIfCurrent.Run(ctx, o.rdb, keys, version, body, o.ttl.Milliseconds()).Int()
	if err != nil {
		o.log.WithError(err).Warn("cache write failed", "screening_id", screeningID)
		return
	}
	if stored == 0 {
		o.log.Debug("stale snapshot dropped", "screening_id", screeningID, "version", version)
	}
}

// Invalidate bumps the screening's version and drops its snapshot.  The
// bump comes first so a reader that already holds the old version can
// no longer write.
func (o *Occupancy) Invalidate(ctx context.Context, screeningID uint64) {
	vk := o.versionKey(screeningID)
	_, err := o.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, vk)
		p.Expire(ctx, vk, versionTTL)
		p.Del(ctx, o.key(screeningID))
		return nil
	})
	if err != nil {
		o.log.WithError(err).Warn("cache invalidate failed", "screening_id", screeningID)
	}
}
