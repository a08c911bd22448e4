package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	RedisAddr     string
	RedisPassword string

	DatabaseDSN string

	// GMAdminKey protects the gm join path. Compared in constant time.
	GMAdminKey string

	// SecureCookies should be false only for local development over http.
	SecureCookies bool
}

func Load() Config {

	// .env is a development convenience; absence is normal in production.
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg := Config{

		AppPort: os.Getenv("APP_PORT"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		DatabaseDSN: os.Getenv("DATABASE_DSN"),

		GMAdminKey: os.Getenv("GM_ADMIN_KEY"),

		SecureCookies: os.Getenv("INSECURE_COOKIES") == "",
	}

	return cfg

}
