package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	// SchedulingConfig bounds the operating window partitioned into free slots.
	SchedulingConfig struct {
		OpenAt      string // HH:MM
		CloseAt     string // HH:MM
		SlotMinutes int
	}

	PaymentConfig struct {
		Expiry         time.Duration
		SimulatedDelay time.Duration
	}

	Config struct {
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		WorkDir          string
		DefaultFromEmail mail.Address
		RollbarToken     string
		SendgridApiKey   string
		RoomCacheTTL     time.Duration

		Database   DatabaseConfig
		Server     ServerConfig
		Scheduling SchedulingConfig
		Payment    PaymentConfig
	}
)

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func (srv ServerConfig) Address() string {
	return net.JoinHostPort(srv.Host, srv.Port)
}

// NewConfig loads the configuration for the current ENV (DEV by default).
func NewConfig() *Config {
	conf := viper.New()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", true)
	conf.SetDefault("testMode", false)
	conf.SetDefault("appName", "Tutorias")
	conf.SetDefault("secretKey", "ce4#8qk-2u!^tq3m$x0k@6y1n&h*9dw%pz7vj5g(s)lr+bfa")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("defaultFromName", "Tutorias")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("roomCacheTTL", 5*time.Minute)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "tutorias")
	conf.SetDefault("dbUser", "tutorias")
	conf.SetDefault("dbPassword", "tutorias")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "")
	conf.SetDefault("dbDisableTLS", true)

	conf.SetDefault("serverHost", "")
	conf.SetDefault("serverPort", "8000")
	conf.SetDefault("serverDebugHost", "0.0.0.0:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)

	conf.SetDefault("scheduleOpenAt", "07:00")
	conf.SetDefault("scheduleCloseAt", "22:00")
	conf.SetDefault("scheduleSlotMinutes", 60)

	conf.SetDefault("paymentExpiry", 15*time.Minute)
	conf.SetDefault("paymentSimulatedDelay", 2*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		conf.SetDefault("testMode", true)
		conf.SetDefault("paymentSimulatedDelay", 0)
	}
	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	return &Config{
		Env:             env,
		Build:           conf.GetString("build"),
		Debug:           conf.GetBool("debug"),
		TestMode:        conf.GetBool("testMode"),
		AppName:         conf.GetString("appName"),
		SecretKey:       conf.GetString("secretKey"),
		FrontendBaseURL: conf.GetString("frontendBaseURL"),
		WorkDir:         wd,
		DefaultFromEmail: mail.Address{
			Name:    conf.GetString("defaultFromName"),
			Address: conf.GetString("defaultFromEmail"),
		},
		RollbarToken:   conf.GetString("rollbarToken"),
		SendgridApiKey: conf.GetString("sendgridApiKey"),
		RoomCacheTTL:   conf.GetDuration("roomCacheTTL"),
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTLS"),
		},
		Server: ServerConfig{
			Host:                      conf.GetString("serverHost"),
			Port:                      conf.GetString("serverPort"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
		},
		Scheduling: SchedulingConfig{
			OpenAt:      conf.GetString("scheduleOpenAt"),
			CloseAt:     conf.GetString("scheduleCloseAt"),
			SlotMinutes: conf.GetInt("scheduleSlotMinutes"),
		},
		Payment: PaymentConfig{
			Expiry:         conf.GetDuration("paymentExpiry"),
			SimulatedDelay: conf.GetDuration("paymentSimulatedDelay"),
		},
	}
}

// NewTestConfig returns the configuration used by tests: no dotenv, no simulated delays.
func NewTestConfig() *Config {
	return &Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Tutorias",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Tutorias", Address: "noreply@localhost"},
		RoomCacheTTL:     time.Minute,
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
		},
		Scheduling: SchedulingConfig{OpenAt: "07:00", CloseAt: "22:00", SlotMinutes: 60},
		Payment:    PaymentConfig{Expiry: 15 * time.Minute},
	}
}
