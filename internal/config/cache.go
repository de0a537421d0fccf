package config

import "time"

// OccupancyCacheConfig controls the Redis snapshot cache in front of
// occupancy reads.  Snapshots are advisory and short lived.
type OccupancyCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadOccupancyCacheConfig reads OCCUPANCY_CACHE_*.
func LoadOccupancyCacheConfig() OccupancyCacheConfig {
	c := OccupancyCacheConfig{
		Enabled: envBool("OCCUPANCY_CACHE_ENABLED", true),
		TTL:     envDur("OCCUPANCY_CACHE_TTL", 5*time.Second),
		Prefix:  envStr("OCCUPANCY_CACHE_PREFIX", "occupancy"),
	}
	if c.TTL <= 0 {
		c.Enabled = false
	}
	return c
}
