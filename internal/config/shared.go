package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port        string   `mapstructure:"port"`
		Mode        string   `mapstructure:"mode"`
		MetricsPort string   `mapstructure:"metrics_port"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"server"`
	Database struct {
		Driver   string `mapstructure:"driver"`
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		Path     string `mapstructure:"path"`
	} `mapstructure:"database"`
	Auth struct {
		Secret          string        `mapstructure:"secret"`
		TokenLifetime   time.Duration `mapstructure:"token_lifetime"`
		LoginRateLimit  int           `mapstructure:"login_rate_limit"`
		LoginRateWindow time.Duration `mapstructure:"login_rate_window"`
		AdminUsername   string        `mapstructure:"admin_username"`
		AdminPassword   string        `mapstructure:"admin_password"`
	} `mapstructure:"auth"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Log struct {
		Level      string `mapstructure:"level"`
		Format     string `mapstructure:"format"`
		File       string `mapstructure:"file"`
		MaxSize    int    `mapstructure:"max_size"`
		MaxBackups int    `mapstructure:"max_backups"`
		MaxAge     int    `mapstructure:"max_age"`
		Compress   bool   `mapstructure:"compress"`
	} `mapstructure:"log"`
	RouterOS struct {
		Scheme   string        `mapstructure:"scheme"`
		Port     int           `mapstructure:"port"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Insecure bool          `mapstructure:"insecure"`
	} `mapstructure:"routeros"`
	Yandex struct {
		BaseURL string        `mapstructure:"base_url"`
		OrgID   string        `mapstructure:"org_id"`
		Token   string        `mapstructure:"token"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"yandex"`
	Storage struct {
		Provider  string `mapstructure:"provider"`
		LocalPath string `mapstructure:"local_path"`
		KeyID     string `mapstructure:"key_id"`
		AppKey    string `mapstructure:"app_key"`
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
	} `mapstructure:"storage"`
	Archive struct {
		Schedule string `mapstructure:"schedule"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"archive"`
}

var envKeys = []string{
	"server.port",
	"server.mode",
	"server.metrics_port",
	"server.cors_origins",

	"database.driver",
	"database.host",
	"database.port",
	"database.user",
	"database.password",
	"database.name",
	"database.path",

	"auth.secret",
	"auth.token_lifetime",
	"auth.login_rate_limit",
	"auth.login_rate_window",
	"auth.admin_username",
	"auth.admin_password",

	"redis.addr",
	"redis.password",
	"redis.db",

	"log.level",
	"log.format",
	"log.file",
	"log.max_size",
	"log.max_backups",
	"log.max_age",
	"log.compress",

	"routeros.scheme",
	"routeros.port",
	"routeros.timeout",
	"routeros.insecure",

	"yandex.base_url",
	"yandex.org_id",
	"yandex.token",
	"yandex.timeout",

	"storage.provider",
	"storage.local_path",
	"storage.key_id",
	"storage.app_key",
	"storage.endpoint",
	"storage.region",
	"storage.bucket",

	"archive.schedule",
	"archive.prefix",
}

// Load reads config.yaml (if present) and SUPIK_* environment variables.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("SUPIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("../")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: Config error: %s", err)
		} else {
			log.Println("Info: config.yaml not found, using Environment Variables only.")
		}
	}

	cfg, err := decode(v)
	if err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	// Tokens cannot be signed without it, but routes that don't sign or
	// verify tokens keep working, so this is not fatal.
	if cfg.Auth.Secret == "" {
		log.Println("Warning: auth secret is missing (SUPIK_AUTH_SECRET), authenticated requests will fail")
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.metrics_port", ":9091")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "supik")
	v.SetDefault("database.path", "supik.db")

	v.SetDefault("auth.token_lifetime", "12h")
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.login_rate_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("routeros.scheme", "https")
	v.SetDefault("routeros.port", 443)
	v.SetDefault("routeros.timeout", "10s")

	v.SetDefault("yandex.base_url", "https://api360.yandex.net")
	v.SetDefault("yandex.timeout", "15s")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_path", "./data")
	v.SetDefault("storage.bucket", "supik-archive")

	v.SetDefault("archive.prefix", "audit/")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
