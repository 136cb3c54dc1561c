package http

import (
	"github.com/expo-registration-api/internal/application/admin"
	fileapp "github.com/expo-registration-api/internal/application/file"
	"github.com/expo-registration-api/internal/application/otp"
	"github.com/expo-registration-api/internal/application/regconfig"
	"github.com/expo-registration-api/internal/application/registration"
	"github.com/expo-registration-api/internal/transport/http/handler"
	appmiddleware "github.com/expo-registration-api/internal/transport/http/middleware"
	"go.uber.org/zap"
)

// Deps holds the application services the router exposes.
type Deps struct {
	OTP           otp.Service
	Registrations registration.Service
	Configs       regconfig.Service
	Files         fileapp.Service
	Admin         admin.Service
	// TokenVerifier is nil when no JWT keys are configured; admin routes then
	// answer 503 unless Config.AdminOpen is set outside production.
	TokenVerifier appmiddleware.TokenVerifier
	HealthChecks  map[string]handler.Checker
	Logger        *zap.Logger
}
