package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:  AppConfig{Env: "local", Port: 8080},
		DB:   DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "tenants"},
		Auth: AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validLocal()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Access.Cache != CacheMemory {
		t.Fatalf("expected memory cache default, got %q", c.Access.Cache)
	}
	if c.Access.CacheTTL != 30*time.Second || c.Access.StoreTimeout != 2*time.Second {
		t.Fatalf("unexpected access defaults: %+v", c.Access)
	}
}

func TestValidate_RedisCacheRequiresRedis(t *testing.T) {
	c := validLocal()
	c.Access.Cache = CacheRedis
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error when redis cache has no redis address")
	}

	c.Redis = RedisConfig{Host: "localhost", Port: 6379}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_RejectsUnknownCache(t *testing.T) {
	c := validLocal()
	c.Access.Cache = "memcached"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for unknown cache backend")
	}
}

func TestLoad_ReadsEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8081")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "tenants")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_CACHE", "none")
	t.Setenv("ACCESS_STORE_TIMEOUT", "750ms")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.App.Port != 8081 || c.Access.Cache != CacheNone || c.Access.StoreTimeout != 750*time.Millisecond {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8081")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "tenants")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("ACCESS_CACHE_TTL", "soon")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}
