package planner

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/royalcat/geoplace/distance"
	"github.com/royalcat/geoplace/roadnet"
)

const (
	ResolverGeodetic = "geodetic"
	ResolverRoad     = "road"
)

type Config struct {
	Penalty              float64        `toml:"penalty"`
	Resolver             string         `toml:"resolver"`
	BufferKm             float64        `toml:"buffer_km"`
	CacheCapacity        int            `toml:"cache_capacity"`
	FallbackStraightLine bool           `toml:"fallback_straight_line"`
	Overpass             OverpassConfig `toml:"overpass"`
	// PBF routes over a local extract instead of querying Overpass.
	PBF string `toml:"pbf"`
}

type OverpassConfig struct {
	Endpoint string        `toml:"endpoint"`
	Timeout  time.Duration `toml:"timeout"`
}

func ConfigDefault() Config {
	return Config{
		Penalty:       0.5,
		Resolver:      ResolverGeodetic,
		BufferKm:      distance.DefaultBufferKm,
		CacheCapacity: distance.DefaultCacheCapacity,
		Overpass: OverpassConfig{
			Endpoint: roadnet.DefaultOverpassEndpoint,
			Timeout:  time.Minute,
		},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := ConfigDefault()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
