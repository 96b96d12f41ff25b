package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrNoJWTSecret = errors.New("JWT_SECRET is empty")

type Config struct {
	ServiceName string
	Port        string
	Env         string
	LogLevel    string

	DBDriver    string
	DatabaseURL string
	MongoURI    string
	MongoDB     string

	JWTSecret   []byte
	JWTTTL      time.Duration
	OwnerRole   string
	ProductRole string

	KafkaBrokers []string
	OwnerTopic   string
	ProductTopic string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	StorageDriver  string
	UploadsDir     string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "owner_shop")
	v.SetDefault("server.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("mongo.database", "owner_shop")

	v.SetDefault("jwt.ttl", "1h")
	v.SetDefault("auth.owner_role", "owner")
	v.SetDefault("auth.product_role", "user")

	v.SetDefault("kafka.owner_topic", "owner_events")
	v.SetDefault("kafka.product_topic", "product_events")

	v.SetDefault("es.index", "products")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("minio.bucket", "pictures")
	v.SetDefault("minio.use_ssl", false)
}

// Load reads .env (if any), then configs/config.yml (if any), then the
// environment. Environment keys are the upper-case form of the config keys
// with dots replaced by underscores, e.g. database.url -> DATABASE_URL.
func Load(paths ...string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("notice: .env file not found: %v, using system environment variables", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	ttl, err := time.ParseDuration(v.GetString("jwt.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("parse JWT_TTL: %w", err)
	}

	cfg := Config{
		ServiceName: v.GetString("service.name"),
		Port:        v.GetString("server.port"),
		Env:         v.GetString("app.env"),
		LogLevel:    v.GetString("log.level"),

		DBDriver:    strings.ToLower(v.GetString("database.driver")),
		DatabaseURL: v.GetString("database.url"),
		MongoURI:    v.GetString("mongo.uri"),
		MongoDB:     v.GetString("mongo.database"),

		JWTSecret:   []byte(v.GetString("jwt.secret")),
		JWTTTL:      ttl,
		OwnerRole:   v.GetString("auth.owner_role"),
		ProductRole: v.GetString("auth.product_role"),

		KafkaBrokers: splitList(v.GetString("kafka.brokers")),
		OwnerTopic:   v.GetString("kafka.owner_topic"),
		ProductTopic: v.GetString("kafka.product_topic"),

		ESURL:      v.GetString("es.url"),
		ESUser:     v.GetString("es.user"),
		ESPassword: v.GetString("es.password"),
		ESIndex:    v.GetString("es.index"),

		StorageDriver:  strings.ToLower(v.GetString("storage.driver")),
		UploadsDir:     v.GetString("uploads.dir"),
		MinioEndpoint:  v.GetString("minio.endpoint"),
		MinioAccessKey: v.GetString("minio.access_key"),
		MinioSecretKey: v.GetString("minio.secret_key"),
		MinioBucket:    v.GetString("minio.bucket"),
		MinioUseSSL:    v.GetBool("minio.use_ssl"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.JWTSecret) == 0 {
		return ErrNoJWTSecret
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.DBDriver)
		}
	case "mongo":
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required for driver \"mongo\"")
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.DBDriver)
	}
	switch c.StorageDriver {
	case "local":
	case "minio":
		if c.MinioEndpoint == "" {
			return errors.New("MINIO_ENDPOINT is required for storage driver \"minio\"")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
