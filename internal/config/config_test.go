package config

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.JWTIssuer != "carescope-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "carescope-auth")
	}
	if cfg.JWTAudience != "carescope-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "carescope-api")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.EventsKafkaTopic != "carescope-events" {
		t.Errorf("EventsKafkaTopic = %q, want default", cfg.EventsKafkaTopic)
	}
	if cfg.SessionCacheSize != 1024 {
		t.Errorf("SessionCacheSize = %d, want 1024", cfg.SessionCacheSize)
	}
	if cfg.OverdueSweepSchedule != "@every 1h" {
		t.Errorf("OverdueSweepSchedule = %q, want %q", cfg.OverdueSweepSchedule, "@every 1h")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}},
		{"bcrypt too high", map[string]string{"BCRYPT_COST": "32"}},
		{"unknown log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"negative cache size", map[string]string{"SESSION_CACHE_SIZE": "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer os.Clearenv()
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{JWTAccessTTL: "bogus", JWTRefreshTTL: "", SessionCacheTTL: "5s"}
	if got := c.AccessTTL(); got != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", got)
	}
	if got := c.RefreshTTL(); got != 168*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", got)
	}
	if got := c.SessionTTL(); got != 5*time.Second {
		t.Errorf("SessionTTL = %v, want 5s", got)
	}
}

func TestConfig_KafkaBrokersList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"a:9092", []string{"a:9092"}},
		{" a:9092 , ,b:9092", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		c := &Config{KafkaBrokers: tt.in}
		got := c.KafkaBrokersList()
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
