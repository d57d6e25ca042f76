package config

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Store:                StorePostgres,
		PaymentProvider:      ProviderSandbox,
		JWTSecret:            "0123456789abcdef",
		BoosterShareBP:       6000,
		RejectionPenaltyStep: 3,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "memory store", mutate: func(c *Config) { c.Store = StoreMemory }},
		{name: "unknown store", mutate: func(c *Config) { c.Store = "sqlite" }, wantErr: "STORE must be"},
		{name: "omise without keys", mutate: func(c *Config) { c.PaymentProvider = ProviderOmise }, wantErr: "OMISE_PUBLIC_KEY"},
		{name: "omise with keys", mutate: func(c *Config) {
			c.PaymentProvider = ProviderOmise
			c.OmisePublicKey = "pkey_test"
			c.OmiseSecretKey = "skey_test"
		}},
		{name: "unknown provider", mutate: func(c *Config) { c.PaymentProvider = "stripe" }, wantErr: "PAYMENT_PROVIDER must be"},
		{name: "share above 100%", mutate: func(c *Config) { c.BoosterShareBP = 10001 }, wantErr: "BOOSTER_SHARE_BP"},
		{name: "negative penalty step", mutate: func(c *Config) { c.RejectionPenaltyStep = -1 }, wantErr: "REJECTION_PENALTY_STEP"},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "JWT_SECRET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	c := validConfig()
	c.Store = "sqlite"
	c.JWTSecret = ""
	err := c.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"STORE", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE", StoreMemory)
	t.Setenv("PAYMENT_PROVIDER", ProviderSandbox)
	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("RESERVATION_TTL", "2h")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	c, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Store != StoreMemory || c.ReservationTTL != 2*time.Hour {
		t.Fatalf("Load() = %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", c.CORSOrigins)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	Config{LogLevel: "debug", LogFormat: "json"}.NewLogger(&buf).Debug("hello", "k", "v")
	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("json logger wrote %q", buf.String())
	}

	buf.Reset()
	logger := Config{LogLevel: "nonsense"}.NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("shown", "k", "v")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("text logger wrote %q", buf.String())
	}
}
