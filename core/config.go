package core

import (
	"fmt"
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
	Config struct {
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		AppName                   string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		WorkDir                   string
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string
		SendgridAPIKey            string

		Server    ServerConfig
		Database  DatabaseConfig
		Redis     RedisConfig
		Mongo     MongoConfig
		Dashboard DashboardConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Driver        string // postgres (lib/pq), pgx or memory
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
		TTL      time.Duration
	}

	MongoConfig struct {
		URI        string
		Database   string
		Collection string
	}

	DashboardConfig struct {
		TopSubjects int
		Concurrency int
		Interval    string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c DatabaseConfig) InMemory() bool {
	return c.Driver == "memory"
}

func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

func (c MongoConfig) Enabled() bool {
	return c.URI != ""
}

// NewConfig loads the app configuration from the environment.
// Variables are prefixed by the current env name (e.g. DEV_DATABASE_HOST) and may be set in config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Escolar")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Escolar <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridAPIKey", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "escolar")
	v.SetDefault("database.user", "escolar")
	v.SetDefault("database.password", "escolar")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 5*time.Minute)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "escolar")
	v.SetDefault("mongo.collection", "metrics_snapshots")

	v.SetDefault("dashboard.topSubjects", 5)
	v.SetDefault("dashboard.concurrency", 8)
	v.SetDefault("dashboard.interval", "week")

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetDefault("testMode", env == "TEST")
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	fromEmail, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("appName"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		WorkDir:                   workDir,
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		DefaultFromEmail:          *fromEmail,
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridAPIKey:            v.GetString("sendgridAPIKey"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Driver:        v.GetString("database.driver"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			TTL:      v.GetDuration("redis.ttl"),
		},
		Mongo: MongoConfig{
			URI:        v.GetString("mongo.uri"),
			Database:   v.GetString("mongo.database"),
			Collection: v.GetString("mongo.collection"),
		},
		Dashboard: DashboardConfig{
			TopSubjects: v.GetInt("dashboard.topSubjects"),
			Concurrency: v.GetInt("dashboard.concurrency"),
			Interval:    v.GetString("dashboard.interval"),
		},
	}
}

// NewTestConfig returns a Config suited for unit tests (no .env, in-memory database).
func NewTestConfig() *Config {
	from := mail.Address{Name: "Escolar", Address: "noreply@test.local"}
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		AppName:                   "Escolar",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:8080",
		DefaultFromEmail:          from,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			DisableReqLogs:            true,
		},
		Database:  DatabaseConfig{Driver: "memory"},
		Dashboard: DashboardConfig{TopSubjects: 5, Concurrency: 4, Interval: "week"},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (%s) env=%s db=%s", c.AppName, c.Build, c.Env, c.Database.Driver)
}
