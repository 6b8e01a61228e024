package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// GeoMember is one entry of a Redis geo set.
type GeoMember struct {
	Name      string
	Longitude float64
	Latitude  float64
}

// RedisClient is the narrow Redis surface the services use.
type RedisClient interface {
	GeoAdd(ctx context.Context, key string, members ...GeoMember) error
	GeoSearch(ctx context.Context, key string, lon, lat, radiusMeters float64) ([]GeoMember, error)
	GeoPos(ctx context.Context, key string, name string) (*GeoMember, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type redisAdapter struct {
	client *redis.Client
}

// NewRedisAdapter exposes a go-redis client through RedisClient.
func NewRedisAdapter(client *redis.Client) RedisClient {
	return &redisAdapter{client: client}
}

func (r *redisAdapter) GeoAdd(ctx context.Context, key string, members ...GeoMember) error {
	locs := make([]*redis.GeoLocation, 0, len(members))
	for _, m := range members {
		locs = append(locs, &redis.GeoLocation{Name: m.Name, Longitude: m.Longitude, Latitude: m.Latitude})
	}
	return r.client.GeoAdd(ctx, key, locs...).Err()
}

func (r *redisAdapter) GeoSearch(ctx context.Context, key string, lon, lat, radiusMeters float64) ([]GeoMember, error) {
	locs, err := r.client.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]GeoMember, 0, len(locs))
	for _, l := range locs {
		out = append(out, GeoMember{Name: l.Name, Longitude: l.Longitude, Latitude: l.Latitude})
	}
	return out, nil
}

func (r *redisAdapter) GeoPos(ctx context.Context, key string, name string) (*GeoMember, error) {
	positions, err := r.client.GeoPos(ctx, key, name).Result()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 || positions[0] == nil {
		return nil, nil
	}
	return &GeoMember{Name: name, Longitude: positions[0].Longitude, Latitude: positions[0].Latitude}, nil
}

func (r *redisAdapter) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *redisAdapter) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}
