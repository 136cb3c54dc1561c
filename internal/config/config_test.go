package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, StoreDynamo, cfg.StoreDriver)
	assert.Equal(t, OTPStoreMemory, cfg.OTPStore)
	assert.Equal(t, MailSMTP, cfg.MailProvider)
	assert.Equal(t, 15*time.Second, cfg.MailTimeout)
	assert.Equal(t, 3, cfg.MailRetries)
	assert.Equal(t, "@every 10m", cfg.OTPSweepSpec)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("TABLE_PREFIX", "dev_")
	t.Setenv("ADMIN_EMAILS", " Ops@Expo.io , ,team@expo.io")
	t.Setenv("MAIL_TIMEOUT_SEC", "5")
	t.Setenv("SENDGRID_SANDBOX", "true")
	t.Setenv("MAIL_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, StoreMongo, cfg.StoreDriver)
	assert.Equal(t, "dev_visitors", cfg.Tables("visitors"))
	assert.Equal(t, []string{"ops@expo.io", "team@expo.io"}, cfg.AdminEmails)
	assert.Equal(t, 5*time.Second, cfg.MailTimeout)
	assert.True(t, cfg.SendGridSandbox)
	assert.Equal(t, 3, cfg.MailRetries)
}
