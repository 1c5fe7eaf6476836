package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	Debug            bool   `envconfig:"debug"`
	Port             int    `envconfig:"port" default:"8080"`
	Env              string `envconfig:"env" default:"dev"`
	StoreDriver      string `envconfig:"store_driver" default:"postgres"`
	PostgresHost     string `envconfig:"postgres_host"`
	PostgresUser     string `envconfig:"postgres_user"`
	PostgresDB       string `envconfig:"postgres_db"`
	PostgresPort     int    `envconfig:"postgres_port" default:"5432"`
	PostgresPassword string `envconfig:"postgres_password"`
	SQLitePath       string `envconfig:"sqlite_path" default:"quizchat.db"`
	MongoURI         string `envconfig:"mongo_uri"`
	MongoDatabase    string `envconfig:"mongo_database" default:"quizchat"`
	JWTSecret        string `envconfig:"jwt_secret"`
	AWSRegion        string `envconfig:"aws_region"`
	AWSBucket        string `envconfig:"aws_bucket"`
	AWSAccessKeyID   string `envconfig:"aws_access_key_id"`
	AWSSecretKey     string `envconfig:"aws_secret_access_key"`
	RedisURL         string `envconfig:"redis_url"`
	// FirebaseCredentials is the service-account json used for push delivery.
	// Push is disabled when empty.
	FirebaseCredentials      string        `envconfig:"firebase_credentials"`
	AccessControlAllowOrigin string        `envconfig:"access_control_allow_origin"`
	SendMessageRateLimit     uint          `envconfig:"send_message_rate_limit" default:"20"`
	ShutdownTimeout          time.Duration `envconfig:"shutdown_timeout" default:"10s"`
	JoinCodeRetries          int           `envconfig:"join_code_retries" default:"5"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("quizchat", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
