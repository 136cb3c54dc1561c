package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/expo-registration-api/internal/application/admin"
	fileapp "github.com/expo-registration-api/internal/application/file"
	"github.com/expo-registration-api/internal/application/fieldsync"
	"github.com/expo-registration-api/internal/application/otp"
	"github.com/expo-registration-api/internal/application/regconfig"
	"github.com/expo-registration-api/internal/application/registration"
	"github.com/expo-registration-api/internal/config"
	"github.com/expo-registration-api/internal/infrastructure/dynamo"
	"github.com/expo-registration-api/internal/infrastructure/google"
	jwtinfra "github.com/expo-registration-api/internal/infrastructure/jwt"
	"github.com/expo-registration-api/internal/infrastructure/memory"
	mongoinfra "github.com/expo-registration-api/internal/infrastructure/mongo"
	redisinfra "github.com/expo-registration-api/internal/infrastructure/redis"
	s3infra "github.com/expo-registration-api/internal/infrastructure/s3"
	"github.com/expo-registration-api/internal/infrastructure/sendgrid"
	"github.com/expo-registration-api/internal/infrastructure/smtp"
	"github.com/expo-registration-api/internal/infrastructure/sns"
	"github.com/expo-registration-api/internal/pkg/logger"
	"github.com/expo-registration-api/internal/pkg/retry"
	transporthttp "github.com/expo-registration-api/internal/transport/http"
	"github.com/expo-registration-api/internal/transport/http/handler"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, reading from environment")
	}

	cfg := config.Load()

	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return err
	}
	dynamoClient := dynamo.NewClient(awsCfg, cfg)
	checks := map[string]handler.Checker{}

	// Document store: registrations, configs, dynamic-field tracking and indexes.
	regDeps := registration.ServiceDeps{Logger: log}
	cfgDeps := regconfig.ServiceDeps{Logger: log}
	switch cfg.StoreDriver {
	case config.StoreDynamo:
		dynamo.Bootstrap(ctx, dynamoClient, cfg.Tables, log)
		regDeps.Repo = dynamo.NewRegistrationRepo(dynamoClient, cfg.Tables)
		cfgDeps.Repo = dynamo.NewConfigRepo(dynamoClient, cfg.Tables(config.CollectionRegistrationConfigs))
		cfgDeps.Syncer = fieldsync.NewSynchronizer(
			dynamo.NewFieldTrackerRepo(dynamoClient, cfg.Tables(config.CollectionDynamicFields)),
			dynamo.NewIndexManager(dynamoClient, cfg.Tables),
			log,
		)
		configTable := cfg.Tables(config.CollectionRegistrationConfigs)
		checks["dynamodb"] = func(ctx context.Context) error {
			_, err := dynamoClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(configTable)})
			return err
		}
	case config.StoreMongo:
		client, err := mongoinfra.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return err
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(dctx)
		}()
		db := client.Database(cfg.MongoDatabase)
		mongoinfra.Bootstrap(ctx, db, cfg.Tables, log)
		regDeps.Repo = mongoinfra.NewRegistrationRepo(db, cfg.Tables)
		cfgDeps.Repo = mongoinfra.NewConfigRepo(db, cfg.Tables(config.CollectionRegistrationConfigs))
		cfgDeps.Syncer = fieldsync.NewSynchronizer(
			mongoinfra.NewFieldTrackerRepo(db, cfg.Tables(config.CollectionDynamicFields)),
			mongoinfra.NewIndexManager(db, cfg.Tables),
			log,
		)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	// OTP store.
	var otpStore otp.Store
	switch cfg.OTPStore {
	case config.OTPStoreMemory:
		otpStore = memory.NewOTPStore()
	case config.OTPStoreRedis:
		rdb, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		otpStore = redisinfra.NewOTPStore(rdb, "otp", otp.SendWindow)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	case config.OTPStoreDynamo:
		if cfg.StoreDriver != config.StoreDynamo {
			return errors.New("OTP_STORE=dynamo requires STORE_DRIVER=dynamo")
		}
		otpStore = dynamo.NewOTPStore(dynamoClient, cfg.Tables(config.CollectionOTPRecords), otp.SendWindow)
	default:
		return fmt.Errorf("unknown OTP_STORE %q", cfg.OTPStore)
	}

	// Outbound mail.
	var mailer otp.Mailer
	switch cfg.MailProvider {
	case config.MailSMTP:
		mailer = smtp.NewMailer(cfg, log)
	case config.MailSendGrid:
		if cfg.SendGridAPIKey == "" {
			return errors.New("MAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
		}
		mailer = sendgrid.NewMailer(cfg, log)
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
	regDeps.Mailer = mailer

	// Registration events (optional).
	if cfg.SNSTopicARN != "" {
		regDeps.Events = sns.NewPublisher(sns.NewClient(awsCfg, cfg), cfg.SNSTopicARN)
	} else {
		log.Info("SNS_TOPIC_ARN not set, registration events disabled")
	}

	regSvc := registration.NewService(regDeps)
	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:  otpStore,
		Lookup: regSvc,
		Mailer: mailer,
		Logger: log,
	})

	s3Store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg), cfg.S3BucketName, cfg.PublicFilesBaseURL)
	checks["s3"] = s3Store.Ping

	deps := &transporthttp.Deps{
		OTP:           otpSvc,
		Registrations: regSvc,
		Configs:       regconfig.NewService(cfgDeps),
		Files:         fileapp.NewService(s3Store),
		HealthChecks:  checks,
		Logger:        log,
	}

	// Admin sign-in. Without keys the admin routes answer 503.
	adminDeps := admin.ServiceDeps{
		Emails:       cfg.AdminEmails,
		PasswordHash: cfg.AdminPasswordHash,
		Logger:       log,
	}
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		adminDeps.Signer = p
		deps.TokenVerifier = p
	} else {
		log.Warn("JWT provider not available, admin routes disabled", zap.Error(err))
	}
	if cfg.GoogleClientID != "" {
		adminDeps.GoogleVerifier = google.NewVerifier(cfg.GoogleClientID)
	}
	deps.Admin = admin.NewService(adminDeps)

	// Periodic OTP sweep, independent of request handling.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.OTPSweepSpec, func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := otpSvc.Sweep(sctx); err != nil {
			log.Error("scheduled otp sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule otp sweep %q: %w", cfg.OTPSweepSpec, err)
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	router := transporthttp.NewRouter(cfg, deps)
	defer router.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: transporthttp.WriteTimeout(retry.NewPolicy(cfg.MailRetries, cfg.MailTimeout).MaxDuration()),
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("env", cfg.AppEnv),
			zap.String("store", cfg.StoreDriver),
			zap.String("otp_store", cfg.OTPStore),
			zap.String("mail", cfg.MailProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
