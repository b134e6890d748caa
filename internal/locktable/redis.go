package locktable

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
)

// RedisTable shares locks between service instances through Redis. Each
// operation is one Lua script so a check and its write are atomic on the
// server.
//
// Layout under prefix (default "seatlock"):
//
//	<prefix>:lock:<show>|<seat>   hash user, session, acquired_ms, expires_ms
//	<prefix>:expiry               zset of "<show>|<seat>" scored by expires_ms
//	<prefix>:session:<id>         set of "<show>|<seat>" held by a session
//
// Show IDs must not contain '|'.
type RedisTable struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	pub    Publisher
}

// keyGrace keeps lock hashes around after expiry so the sweeper can still
// read the holder's session when it announces the release.
const keyGrace = time.Minute

const sweepBatch = 500

var acquireScript = redis.NewScript(`
local now = tonumber(ARGV[3])
local cur = redis.call('HMGET', KEYS[1], 'user', 'session', 'acquired_ms', 'expires_ms')
local acquired = now
if cur[1] then
    local live = tonumber(cur[4]) > now
    local same = cur[1] == ARGV[1] and cur[2] == ARGV[2]
    if live and not same then
        return 0
    end
    if live and same then
        acquired = tonumber(cur[3])
    end
    if not same then
        redis.call('SREM', ARGV[6] .. cur[2], ARGV[5])
    end
end
local expires = now + tonumber(ARGV[4])
redis.call('HSET', KEYS[1], 'user', ARGV[1], 'session', ARGV[2], 'acquired_ms', acquired, 'expires_ms', expires)
redis.call('PEXPIRE', KEYS[1], ARGV[7])
redis.call('ZADD', KEYS[2], expires, ARGV[5])
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('PEXPIRE', KEYS[3], ARGV[7])
return 1
`)

var releaseScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'session', 'acquired_ms')
redis.call('ZREM', KEYS[2], ARGV[1])
if not cur[1] then
    return -1
end
redis.call('DEL', KEYS[1])
redis.call('SREM', ARGV[2] .. cur[1], ARGV[1])
return tonumber(cur[2])
`)

var releaseSessionScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
local out = {}
for _, m in ipairs(members) do
    local k = ARGV[1] .. m
    if redis.call('HGET', k, 'session') == ARGV[2] then
        redis.call('DEL', k)
        redis.call('ZREM', KEYS[2], m)
        table.insert(out, m)
    end
end
redis.call('DEL', KEYS[1])
return out
`)

var sweepScript = redis.NewScript(`
local now = tonumber(ARGV[3])
local members = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', now, 'LIMIT', 0, tonumber(ARGV[4]))
local out = {}
for _, m in ipairs(members) do
    local k = ARGV[1] .. m
    local cur = redis.call('HMGET', k, 'session', 'expires_ms')
    if (not cur[2]) or tonumber(cur[2]) <= now then
        redis.call('DEL', k)
        redis.call('ZREM', KEYS[1], m)
        if cur[1] then
            redis.call('SREM', ARGV[2] .. cur[1], m)
        end
        table.insert(out, m)
    end
end
return out
`)

// NewRedisTable returns a table backed by rdb. pub may be nil.
func NewRedisTable(rdb *redis.Client, pub Publisher, prefix string, opts ...Option) *RedisTable {
	o := buildOptions(opts)
	if pub == nil {
		pub = nopPublisher{}
	}
	if prefix == "" {
		prefix = "seatlock"
	}
	return &RedisTable{rdb: rdb, prefix: prefix, ttl: o.ttl, now: o.now, pub: pub}
}

func (t *RedisTable) lockPrefix() string    { return t.prefix + ":lock:" }
func (t *RedisTable) sessionPrefix() string { return t.prefix + ":session:" }
func (t *RedisTable) expiryKey() string     { return t.prefix + ":expiry" }

func (t *RedisTable) Acquire(ctx context.Context, showID, seatNumber, userID, sessionID string) (LockResult, error) {
	key := model.SeatKey{ShowID: showID, SeatNumber: seatNumber}
	member := key.String()
	keys := []string{t.lockPrefix() + member, t.expiryKey(), t.sessionPrefix() + sessionID}
	res, err := acquireScript.Run(ctx, t.rdb, keys,
		userID, sessionID, t.now().UnixMilli(), t.ttl.Milliseconds(),
		member, t.sessionPrefix(), (t.ttl + keyGrace).Milliseconds(),
	).Int64()
	if err != nil {
		monitoring.SeatLockOperation("acquire", "error")
		return HeldByOther, err
	}
	if res != 1 {
		monitoring.SeatLockOperation("acquire", "held_by_other")
		return HeldByOther, nil
	}
	monitoring.SeatLockOperation("acquire", "granted")
	t.pub.Publish(ctx, model.Selected(key, userID))
	return Granted, nil
}

func (t *RedisTable) Release(ctx context.Context, showID, seatNumber string) (bool, error) {
	key := model.SeatKey{ShowID: showID, SeatNumber: seatNumber}
	member := key.String()
	acquiredMs, err := releaseScript.Run(ctx, t.rdb,
		[]string{t.lockPrefix() + member, t.expiryKey()},
		member, t.sessionPrefix(),
	).Int64()
	if err != nil {
		monitoring.SeatLockOperation("release", "error")
		return false, err
	}
	if acquiredMs < 0 {
		return false, nil
	}
	monitoring.SeatLockOperation("release", "released")
	monitoring.SeatLockReleased(t.now().Sub(time.UnixMilli(acquiredMs)))
	t.pub.Publish(ctx, model.Released(key))
	return true, nil
}

func (t *RedisTable) ReleaseAllFor(ctx context.Context, sessionID string) ([]model.SeatKey, error) {
	members, err := releaseSessionScript.Run(ctx, t.rdb,
		[]string{t.sessionPrefix() + sessionID, t.expiryKey()},
		t.lockPrefix(), sessionID,
	).StringSlice()
	if err != nil {
		monitoring.SeatLockOperation("release_session", "error")
		return nil, err
	}
	keys := parseMembers(members)
	for range keys {
		monitoring.SeatLockOperation("release_session", "released")
	}
	publishReleased(ctx, t.pub, keys)
	return keys, nil
}

func (t *RedisTable) SweepExpired(ctx context.Context) ([]model.SeatKey, error) {
	var all []model.SeatKey
	for {
		members, err := sweepScript.Run(ctx, t.rdb,
			[]string{t.expiryKey()},
			t.lockPrefix(), t.sessionPrefix(), t.now().UnixMilli(), sweepBatch,
		).StringSlice()
		if err != nil {
			monitoring.SeatLockOperation("sweep", "error")
			return all, err
		}
		keys := parseMembers(members)
		for range keys {
			monitoring.SeatLockOperation("sweep", "released")
			monitoring.SeatLockReleased(t.ttl)
		}
		publishReleased(ctx, t.pub, keys)
		all = append(all, keys...)
		if len(members) < sweepBatch {
			return all, nil
		}
	}
}

func (t *RedisTable) Get(ctx context.Context, showID, seatNumber string) (*model.SeatLock, error) {
	key := model.SeatKey{ShowID: showID, SeatNumber: seatNumber}
	fields, err := t.rdb.HGetAll(ctx, t.lockPrefix()+key.String()).Result()
	if err != nil {
		return nil, err
	}
	return t.parseLock(key, fields), nil
}

func (t *RedisTable) Locks(ctx context.Context, showID string, seats []string) (map[string]model.SeatLock, error) {
	out := make(map[string]model.SeatLock)
	if len(seats) == 0 {
		return out, nil
	}
	pipe := t.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(seats))
	for i, seat := range seats {
		cmds[i] = pipe.HGetAll(ctx, t.lockPrefix()+model.SeatKey{ShowID: showID, SeatNumber: seat}.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for i, seat := range seats {
		if l := t.parseLock(model.SeatKey{ShowID: showID, SeatNumber: seat}, cmds[i].Val()); l != nil {
			out[seat] = *l
		}
	}
	return out, nil
}

// SessionLocks reads the session's index set and then each lock hash. Set
// members whose hash now belongs to another session are skipped.
func (t *RedisTable) SessionLocks(ctx context.Context, sessionID string) ([]model.SeatLock, error) {
	members, err := t.rdb.SMembers(ctx, t.sessionPrefix()+sessionID).Result()
	if err != nil {
		return nil, err
	}
	keys := parseMembers(members)
	out := make([]model.SeatLock, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	pipe := t.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, t.lockPrefix()+k.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	for i, k := range keys {
		if l := t.parseLock(k, cmds[i].Val()); l != nil && l.SessionID == sessionID {
			out = append(out, *l)
		}
	}
	return out, nil
}

// parseLock returns nil for a missing, malformed or expired hash.
func (t *RedisTable) parseLock(key model.SeatKey, fields map[string]string) *model.SeatLock {
	if len(fields) == 0 {
		return nil
	}
	acquired, err1 := strconv.ParseInt(fields["acquired_ms"], 10, 64)
	expires, err2 := strconv.ParseInt(fields["expires_ms"], 10, 64)
	if err1 != nil || err2 != nil {
		return nil
	}
	l := &model.SeatLock{
		Key:        key,
		UserID:     fields["user"],
		SessionID:  fields["session"],
		AcquiredAt: time.UnixMilli(acquired),
		ExpiresAt:  time.UnixMilli(expires),
	}
	if l.Expired(t.now()) {
		return nil
	}
	return l
}

func parseMembers(members []string) []model.SeatKey {
	keys := make([]model.SeatKey, 0, len(members))
	for _, m := range members {
		show, seat, ok := strings.Cut(m, "|")
		if !ok {
			continue
		}
		keys = append(keys, model.SeatKey{ShowID: show, SeatNumber: seat})
	}
	return keys
}
