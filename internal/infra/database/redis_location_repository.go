package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/DioGolang/FleetDispatch/internal/domain/entity"
	"github.com/DioGolang/FleetDispatch/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	driverIndexKey = "fleet:drivers"
	driverGeoKey   = "fleet:drivers:geo"
	// Redis refuses GEOADD beyond these latitudes.
	maxGeoLat = 85.05112878
)

// putLocation stores a position unless the stored one is strictly newer.
// Timestamps are unix microseconds so they compare exactly as Lua numbers.
// The revision follows the same clock and bumps by one when it has not moved.
// KEYS: driver hash, index set, geo set. ARGV: lat, lon, ts, ttl ms, id, geo flag.
var putLocation = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'lat', 'lon', 'ts', 'rev')
local ts = tonumber(ARGV[3])
if cur[3] and tonumber(cur[3]) > ts then
  return {0, cur[1], cur[2], cur[3], cur[4] or '0'}
end
local rev = ts
local prev = tonumber(cur[4]) or 0
if prev >= rev then
  rev = prev + 1
end
if ARGV[6] == '1' then
  redis.call('GEOADD', KEYS[3], ARGV[2], ARGV[1], ARGV[5])
else
  redis.call('ZREM', KEYS[3], ARGV[5])
end
redis.call('HSET', KEYS[1], 'lat', ARGV[1], 'lon', ARGV[2], 'ts', ARGV[3], 'rev', string.format('%d', rev))
redis.call('PEXPIRE', KEYS[1], ARGV[4])
redis.call('SADD', KEYS[2], ARGV[5])
return {1, string.format('%d', rev)}
`)

// RedisLocationRepository is the shared hot store used when several
// instances serve the same fleet. Entries expire after ttl, which must be at
// least the staleness threshold.
type RedisLocationRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisLocationRepository(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisLocationRepository {
	return &RedisLocationRepository{client: client, ttl: ttl, logger: log}
}

func locationKey(driverID string) string { return "fleet:driver:" + driverID }

func (r *RedisLocationRepository) Put(ctx context.Context, loc entity.DriverLocation) (bool, entity.DriverLocation, error) {
	loc.ObservedAt = loc.ObservedAt.Truncate(time.Microsecond)
	geo := "0"
	if loc.Lat >= -maxGeoLat && loc.Lat <= maxGeoLat {
		geo = "1"
	}
	res, err := putLocation.Run(ctx, r.client,
		[]string{locationKey(loc.DriverID), driverIndexKey, driverGeoKey},
		formatFloat(loc.Lat), formatFloat(loc.Lon), loc.ObservedAt.UnixMicro(), r.ttl.Milliseconds(), loc.DriverID, geo,
	).Slice()
	if err != nil {
		r.logger.Error(ctx, "Redis location script failed", logger.String("driver_id", loc.DriverID), logger.WithError(err))
		return false, entity.DriverLocation{}, fmt.Errorf("redis put location: %w", err)
	}
	if applied, _ := res[0].(int64); applied == 1 {
		if len(res) < 2 {
			return false, entity.DriverLocation{}, errors.New("redis put location: short reply")
		}
		rev, err := parseRevision(res[1])
		if err != nil {
			return false, entity.DriverLocation{}, err
		}
		loc.Revision = rev
		return true, loc, nil
	}
	if len(res) < 5 {
		return false, entity.DriverLocation{}, errors.New("redis put location: short reply")
	}
	current, err := parseLocation(loc.DriverID, res[1:5])
	return false, current, err
}

func (r *RedisLocationRepository) Get(ctx context.Context, driverID string) (entity.DriverLocation, bool, error) {
	vals, err := r.client.HMGet(ctx, locationKey(driverID), locationFields...).Result()
	if err != nil {
		return entity.DriverLocation{}, false, err
	}
	if vals[2] == nil {
		return entity.DriverLocation{}, false, nil
	}
	loc, err := parseLocation(driverID, vals)
	return loc, err == nil, err
}

func (r *RedisLocationRepository) Snapshot(ctx context.Context) ([]entity.DriverLocation, error) {
	ids, err := r.client.SMembers(ctx, driverIndexKey).Result()
	if err != nil {
		return nil, err
	}
	return r.load(ctx, ids)
}

// Remove drops the position but leaves the revision (under the remaining TTL)
// so a returning driver continues from it.
func (r *RedisLocationRepository) Remove(ctx context.Context, driverID string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HDel(ctx, locationKey(driverID), "lat", "lon", "ts")
		p.SRem(ctx, driverIndexKey, driverID)
		p.ZRem(ctx, driverGeoKey, driverID)
		return nil
	})
	return err
}

// Nearest returns drivers within radiusKm of center, closest first.
func (r *RedisLocationRepository) Nearest(ctx context.Context, center entity.Coordinates, radiusKm float64, limit int) ([]entity.DriverLocation, error) {
	r.logger.Debug(ctx, "Redis GeoSearch query",
		logger.Float64("lat", center.Lat),
		logger.Float64("lon", center.Lon),
		logger.Float64("radius_km", radiusKm),
	)
	results, err := r.client.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   center.Lat,
			Longitude:  center.Lon,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geo search: %w", err)
	}
	ids := make([]string, len(results))
	for i, res := range results {
		ids[i] = res.Name
	}
	locs, err := r.load(ctx, ids)
	if err != nil {
		return nil, err
	}
	// load sorts by id; restore distance order.
	rank := make(map[string]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	sort.Slice(locs, func(i, j int) bool { return rank[locs[i].DriverID] < rank[locs[j].DriverID] })
	return locs, nil
}

// load reads the hashes for ids and prunes index entries whose hash expired.
func (r *RedisLocationRepository) load(ctx context.Context, ids []string) ([]entity.DriverLocation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.SliceCmd, len(ids))
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HMGet(ctx, locationKey(id), locationFields...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]entity.DriverLocation, 0, len(ids))
	var expired []string
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) < 3 || vals[2] == nil {
			expired = append(expired, ids[i])
			continue
		}
		loc, err := parseLocation(ids[i], vals)
		if err != nil {
			r.logger.Warn(ctx, "skipping malformed location entry", logger.String("driver_id", ids[i]), logger.WithError(err))
			continue
		}
		out = append(out, loc)
	}
	if len(expired) > 0 {
		members := make([]any, len(expired))
		for i, id := range expired {
			members[i] = id
		}
		r.client.SRem(ctx, driverIndexKey, members...)
		r.client.ZRem(ctx, driverGeoKey, members...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DriverID < out[j].DriverID })
	return out, nil
}

var locationFields = []string{"lat", "lon", "ts", "rev"}

// parseLocation reads lat, lon, ts and rev in locationFields order.
func parseLocation(driverID string, vals []any) (entity.DriverLocation, error) {
	if len(vals) < 4 {
		return entity.DriverLocation{}, errors.New("location entry: missing fields")
	}
	la, err := strconv.ParseFloat(fmt.Sprint(vals[0]), 64)
	if err != nil {
		return entity.DriverLocation{}, fmt.Errorf("lat: %w", err)
	}
	lo, err := strconv.ParseFloat(fmt.Sprint(vals[1]), 64)
	if err != nil {
		return entity.DriverLocation{}, fmt.Errorf("lon: %w", err)
	}
	micros, err := strconv.ParseInt(fmt.Sprint(vals[2]), 10, 64)
	if err != nil {
		return entity.DriverLocation{}, fmt.Errorf("ts: %w", err)
	}
	rev, err := parseRevision(vals[3])
	if err != nil {
		return entity.DriverLocation{}, err
	}
	return entity.DriverLocation{DriverID: driverID, Lat: la, Lon: lo, ObservedAt: time.UnixMicro(micros).UTC(), Revision: rev}, nil
}

// parseRevision treats a missing field as zero; entries written before
// revisions existed get one on their next update.
func parseRevision(v any) (int64, error) {
	if v == nil {
		return 0, nil
	}
	rev, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("rev: %w", err)
	}
	return rev, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
