package config

import (
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ALCHEMY_API_KEY", "seed-key")
	t.Setenv("CACHE_BACKEND", "Postgres")
	t.Setenv("CACHE_NFT_METADATA_TTL", "30m")
	t.Setenv("IPFS_GATEWAYS", "https://a/ipfs/, ,https://b/ipfs/")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Upstream.APIKey != "seed-key" {
		t.Errorf("Upstream.APIKey = %v, want seed-key", cfg.Upstream.APIKey)
	}
	if cfg.Cache.Backend != BackendPostgres {
		t.Errorf("Cache.Backend = %v, want %v", cfg.Cache.Backend, BackendPostgres)
	}
	if cfg.Cache.NFTMetadataTTL != 30*time.Minute {
		t.Errorf("Cache.NFTMetadataTTL = %v, want %v", cfg.Cache.NFTMetadataTTL, 30*time.Minute)
	}
	if len(cfg.Gateways.URLs) != 2 || cfg.Gateways.URLs[1] != "https://b/ipfs/" {
		t.Errorf("Gateways.URLs = %v", cfg.Gateways.URLs)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"PageSize", cfg.Upstream.PageSize, 20},
		{"MaxRetries", cfg.Upstream.MaxRetries, 3},
		{"BaseDelay", cfg.Upstream.BaseDelay, time.Second},
		{"PageDelay", cfg.Upstream.PageDelay, 2 * time.Second},
		{"TokenURITimeout", cfg.Upstream.TokenURITimeout, 30 * time.Second},
		{"MaxPages", cfg.Upstream.MaxPages, 500},
		{"MemoryTTL", cfg.Cache.MemoryTTL, 5 * time.Minute},
		{"NFTMetadataTTL", cfg.Cache.NFTMetadataTTL, time.Hour},
		{"AssetPreviewTTL", cfg.Cache.AssetPreviewTTL, 24 * time.Hour},
		{"WalletDataTTL", cfg.Cache.WalletDataTTL, 5 * time.Minute},
		{"Backend", cfg.Cache.Backend, BackendRedis},
		{"Gateways", len(cfg.Gateways.URLs), 4},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadConfig_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for unknown backend")
	}
}

func TestLoadConfig_RejectsZeroPageDelay(t *testing.T) {
	t.Setenv("ALCHEMY_PAGE_DELAY", "0s")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig() expected error for zero page delay")
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{"returns integer when valid", "200", 100, 200},
		{"returns default when invalid", "invalid", 100, 100},
		{"returns default when not set", "", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			if got := getEnvAsInt("TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"returns duration when valid", "30s", 10 * time.Second, 30 * time.Second},
		{"returns default when invalid", "invalid", 10 * time.Second, 10 * time.Second},
		{"returns default when not set", "", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			if got := getEnvAsDuration("TEST_DURATION", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsList(t *testing.T) {
	def := []string{"x"}

	t.Setenv("TEST_LIST", " , ")
	if got := getEnvAsList("TEST_LIST", def); len(got) != 1 || got[0] != "x" {
		t.Errorf("getEnvAsList() = %v, want default", got)
	}

	t.Setenv("TEST_LIST", "a,b")
	if got := getEnvAsList("TEST_LIST", def); len(got) != 2 {
		t.Errorf("getEnvAsList() = %v, want [a b]", got)
	}
}
