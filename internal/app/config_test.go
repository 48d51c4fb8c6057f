package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func testLoaderConfig(files ...string) aconfig.Config {
	return aconfig.Config{
		EnvPrefix: "STOREFRONT",
		SkipFlags: true,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Equal(t, currency.USD, cfg.CurrencyUnit())
	assert.Equal(t, 3*time.Second, cfg.Notification.Lifetime)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)

	pc := cfg.PaymentClientConfig()
	assert.Equal(t, "/payment-service/api/payments/process", pc.Path)
	assert.Equal(t, uint32(5), pc.Breaker.MaxFailures)
	assert.Equal(t, 10*time.Second, pc.Timeout)
}

func TestLoadConfig_EnvAndPlatform(t *testing.T) {
	t.Setenv("STOREFRONT_PAYMENT_URL", "http://payments.internal:9000")
	t.Setenv("STOREFRONT_CURRENCY", "EUR")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/storefront")
	t.Setenv("PORT", "9999")

	cfg, err := loadConfig(testLoaderConfig())
	require.NoError(t, err)

	assert.Equal(t, "http://payments.internal:9000", cfg.Payment.URL)
	assert.Equal(t, currency.EUR, cfg.CurrencyUnit())
	assert.Equal(t, "postgres://u:p@db/storefront", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
payment:
  url: http://pay.example
  timeout: 2s
notification:
  lifetime: 5s
`), 0o600))

	cfg, err := loadConfig(testLoaderConfig(path))
	require.NoError(t, err)

	assert.Equal(t, "http://pay.example", cfg.Payment.URL)
	assert.Equal(t, 2*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Notification.Lifetime)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "bad currency", env: map[string]string{"STOREFRONT_CURRENCY": "XYZW"}, want: "currency"},
		{name: "zero lifetime", env: map[string]string{"STOREFRONT_NOTIFICATION_LIFETIME": "0s"}, want: "notification lifetime"},
		{name: "zero payment timeout", env: map[string]string{"STOREFRONT_PAYMENT_TIMEOUT": "0s"}, want: "payment timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadConfig(testLoaderConfig())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
