package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultCatalogURL = "https://m2m.cr.usgs.gov/api/api/json/stable/"

type CatalogCfg struct {
	URL      string
	Username string
	Password string
	Timeout  time.Duration
	Backoff  time.Duration
}

type CacheCfg struct {
	Size      int
	TTL       time.Duration
	RedisAddr string
	OpTimeout time.Duration

	RedisPoolSize     int
	RedisMinIdleConns int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration
}

type SceneEventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	// WarmCache consumes the topic to seed the entity id cache.
	WarmCache bool
	GroupID   string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	Catalog        CatalogCfg
	EntityCache    CacheCfg
	SceneEvents    SceneEventsCfg
	H3Res          int
	MetricsEnabled bool
}

func FromEnv() Config {
	res := getint("H3_RES", 6)
	if res < 0 || res > 15 {
		res = 6
	}
	size := getint("ENTITY_CACHE_SIZE", 10_000)
	if size <= 0 {
		size = 10_000
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		Catalog: CatalogCfg{
			URL:      getenv("CATALOG_URL", DefaultCatalogURL),
			Username: os.Getenv("CATALOG_USERNAME"),
			Password: os.Getenv("CATALOG_PASSWORD"),
			Timeout:  getduration("CATALOG_TIMEOUT", 60*time.Second),
			Backoff:  getduration("CATALOG_RATE_LIMIT_BACKOFF", 3*time.Second),
		},
		EntityCache: CacheCfg{
			Size:      size,
			TTL:       getduration("ENTITY_CACHE_TTL", 24*time.Hour),
			RedisAddr: os.Getenv("REDIS_ADDR"),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),

			RedisPoolSize:     getint("REDIS_POOL_SIZE", 64),
			RedisMinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 4),
			RedisDialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			RedisReadTimeout:  getduration("REDIS_READ_TIMEOUT", time.Second),
			RedisWriteTimeout: getduration("REDIS_WRITE_TIMEOUT", time.Second),
		},
		SceneEvents: SceneEventsCfg{
			Enabled:   getbool("SCENE_EVENTS_ENABLED", false),
			Brokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:     getenv("KAFKA_TOPIC", "scene-discovered"),
			WarmCache: getbool("SCENE_EVENTS_WARM_CACHE", false),
			GroupID:   getenv("KAFKA_GROUP_ID", "catalog-gateway"),
		},
		H3Res:          res,
		MetricsEnabled: getbool("METRICS_ENABLED", true),
	}
}

// Brokers splits a comma separated broker list, dropping empty entries.
func Brokers(s string) []string {
	var out []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
