package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreDynamo = "dynamo"
	StoreMongo  = "mongo"
)

// OTP store backends.
const (
	OTPStoreMemory = "memory"
	OTPStoreRedis  = "redis"
	OTPStoreDynamo = "dynamo"
)

// Logical names of the non-registration collections. Registration collections
// come from domain.RegistrationType.Collection.
const (
	CollectionRegistrationConfigs = "registration_configs"
	CollectionDynamicFields       = "dynamic_fields"
	CollectionOTPRecords          = "otp_records"
)

// Mail providers.
const (
	MailSMTP     = "smtp"
	MailSendGrid = "sendgrid"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort        string
	AppEnv         string
	LogLevel       string
	AllowedOrigins []string // CORS allowed origins

	StoreDriver string // "dynamo" | "mongo"
	TablePrefix string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	MongoURI      string
	MongoDatabase string

	OTPStore     string // "memory" | "redis" | "dynamo"
	RedisURL     string
	OTPSweepSpec string

	MailProvider    string // "smtp" | "sendgrid"
	MailFrom        string
	MailFromName    string
	MailTimeout     time.Duration
	MailRetries     int
	SMTPHost        string
	SMTPPort        string
	SMTPUsername    string
	SMTPPassword    string
	SendGridAPIKey  string
	SendGridSandbox bool

	SNSRegion   string
	SNSTopicARN string // empty disables registration events

	S3BucketName       string
	PublicFilesBaseURL string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	AdminEmails       []string
	AdminPasswordHash string
	AdminOpen         bool // development only: serve admin routes without a token
	GoogleClientID    string
}

// Tables returns the physical collection/table name for a logical one.
func (c *Config) Tables(logical string) string {
	return c.TablePrefix + logical
}

// IsProduction reports whether the app runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:        getEnv("APP_PORT", "3000"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "*")),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StoreDynamo)),
		TablePrefix: getEnv("TABLE_PREFIX", ""),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "expo"),

		OTPStore:     strings.ToLower(getEnv("OTP_STORE", OTPStoreMemory)),
		RedisURL:     getEnv("REDIS_URL", "redis://localhost:6379/0"),
		OTPSweepSpec: getEnv("OTP_SWEEP_SPEC", "@every 10m"),

		MailProvider:    strings.ToLower(getEnv("MAIL_PROVIDER", MailSMTP)),
		MailFrom:        getEnv("MAIL_FROM", "noreply@example.com"),
		MailFromName:    getEnv("MAIL_FROM_NAME", "Expo Registrations"),
		MailTimeout:     time.Duration(getEnvInt("MAIL_TIMEOUT_SEC", 15)) * time.Second,
		MailRetries:     getEnvInt("MAIL_RETRIES", 3),
		SMTPHost:        getEnv("SMTP_HOST", "localhost"),
		SMTPPort:        getEnv("SMTP_PORT", "1025"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SendGridAPIKey:  getEnv("SENDGRID_API_KEY", ""),
		SendGridSandbox: getEnvBool("SENDGRID_SANDBOX", false),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		S3BucketName:       getEnv("S3_BUCKET_NAME", "expo-uploads"),
		PublicFilesBaseURL: getEnv("PUBLIC_FILES_BASE_URL", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 12)) * time.Hour,

		AdminEmails:       lowerAll(splitCSV(getEnv("ADMIN_EMAILS", ""))),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminOpen:         getEnvBool("ADMIN_OPEN", false),
		GoogleClientID:    getEnv("GOOGLE_CLIENT_ID", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func lowerAll(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}
