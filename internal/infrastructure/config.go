package infra

import (
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix env prefix for viper
const EnvPrefix = "TRACKER"

// runtime environments
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AppConfig App option object
type AppConfig struct {
	AppID          string        `mapstructure:"app_id" json:"app_id" yaml:"app_id" validate:"required"`            // Application ID
	Host           string        `mapstructure:"host" json:"host" yaml:"host"`                                      // bind host address
	Port           int           `mapstructure:"port" json:"port" yaml:"port"`                                      // bind listen port
	Env            string        `mapstructure:"env" json:"env" yaml:"env" validate:"oneof=development production"` // runtime environment
	SessionTimeout time.Duration `mapstructure:"session_timeout" json:"session_timeout" yaml:"session_timeout"`
	SessionRefresh time.Duration `mapstructure:"session_refresh" json:"session_refresh" yaml:"session_refresh"` // session refresh threshold
	Users          struct {
		Names  []string `mapstructure:"names" json:"names" yaml:"names" validate:"len=2"`    // the two tracked users
		Colors []string `mapstructure:"colors" json:"colors" yaml:"colors" validate:"len=2"` // display color per user, same order
	} `mapstructure:"users" json:"users" yaml:"users"`
	Catalog struct {
		Path string `mapstructure:"path" json:"path" yaml:"path" validate:"required"` // course catalog YAML file
	} `mapstructure:"catalog" json:"catalog" yaml:"catalog"`
	Sync struct {
		BatchSize  int           `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size" validate:"min=1"` // lessons fetched per batch
		BatchDelay time.Duration `mapstructure:"batch_delay" json:"batch_delay" yaml:"batch_delay"`               // pause between batches
		PageSize   int           `mapstructure:"page_size" json:"page_size" yaml:"page_size" validate:"min=1"`    // lesson list window growth step
	} `mapstructure:"sync" json:"sync" yaml:"sync"`
	Database struct {
		Driver   string `mapstructure:"driver" json:"driver" yaml:"driver" validate:"required"`                      // driver name
		Host     string `mapstructure:"host" json:"host" yaml:"host"`                                                // server host
		MaxConn  int32  `mapstructure:"maxconn" json:"maxconn" yaml:"maxconn" validate:"min=1"`                      // maximum opening connections number
		Password string `mapstructure:"password" json:"password" yaml:"password"`                                    // db password
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`                                                // server port
		Protocol string `mapstructure:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=tcp udp"` // connection protocol, eg.tcp
		Query    string `mapstructure:"query" json:"query" yaml:"query"`                                             // DSN query parameter
		Schema   string `mapstructure:"schema" json:"schema" yaml:"schema" validate:"required"`                      // schema name, or file path for sqlite
		User     string `mapstructure:"username" json:"username" yaml:"username"`                                    // db username
	} `mapstructure:"database" json:"database" yaml:"database"`
	Logging struct {
		FilePath string `mapstructure:"file_path" json:"file_path" yaml:"file_path"`                            // log file path
		Level    string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=debug info warn error"` // global logging level
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
	Security struct {
		SessionIDLength int    `mapstructure:"session_id_length" json:"session_id_length" yaml:"session_id_length"` // length of generated session IDs
		JWTMethod       string `mapstructure:"jwt_method" json:"jwt_method" yaml:"jwt_method" validate:"oneof=HS256 HS512 ES256"`
		JWTSecret       string `mapstructure:"jwt_secret" json:"jwt_secret" yaml:"jwt_secret" validate:"required"`
		TokenName       string `mapstructure:"token_name" json:"token_name" yaml:"token_name" validate:"required"` // jwt token name set in cookie
	} `mapstructure:"security" json:"security" yaml:"security"`
	KVStore struct {
		Host     string `mapstructure:"host" json:"host" yaml:"host"`             // redis host address
		Port     int    `mapstructure:"port" json:"port" yaml:"port"`             // redis port
		Password string `mapstructure:"password" json:"password" yaml:"password"` // redis password
	} `mapstructure:"kv" json:"kv" yaml:"kv"`
	DevOP struct {
		APM bool `mapstructure:"apm" json:"apm" yaml:"apm"`
	} `mapstructure:"devop" json:"devop" yaml:"devop"`
}

// InitConfig init app config using viper
func InitConfig() (*AppConfig, error) {
	// app
	pflag.String("host", "", "binding address")
	pflag.String("app_id", "course-tracker", "application identifier (required)")
	pflag.String("env", "development", "runtime environment, can be 'development' or 'production'")
	pflag.Int("port", 8081, "listening port")
	pflag.Duration("session_timeout", 30*time.Minute, "JWT lifetime(m, s and h units are supported), eg.30m")
	pflag.Duration("session_refresh", 5*time.Minute, "session refresh threshold(m, s and h units are supported), eg.5m")

	// users
	pflag.StringSlice("users.names", []string{"mahan", "jojo"}, "the two tracked user names")
	pflag.StringSlice("users.colors", []string{"yellow", "purple"}, "display color for each user, same order as names")

	// catalog
	pflag.String("catalog.path", "course.yaml", "path to the course catalog file")

	// sync
	pflag.Int("sync.batch_size", 15, "number of lessons fetched from the progress store per batch")
	pflag.Duration("sync.batch_delay", 400*time.Millisecond, "pause between progress fetch batches")
	pflag.Int("sync.page_size", 20, "lesson list window growth step")

	// database (local fallback cache)
	pflag.String("database.driver", "sqlite", "database driver to use, one of sqlite, mysql, postgres")
	pflag.String("database.host", "127.0.0.1", "database host (ignored by sqlite)")
	pflag.Int("database.port", 3306, "database server port (ignored by sqlite)")
	pflag.String("database.protocol", "", "connection protocol(if mysql is used, this flag must be set), eg.tcp")
	pflag.String("database.username", "", "database username")
	pflag.String("database.password", "", "database password")
	pflag.String("database.schema", "progress_cache.db", "database schema, or database file path for sqlite")
	pflag.String("database.query", "", `additional DSN query parameters('?' is auto prefixed)`)
	pflag.Int32("database.maxconn", 10, "max connection count")

	// logging
	pflag.String("logging.level", "info", "logging level")
	pflag.String("logging.file_path", "", "log to file")

	// security
	pflag.Int("security.session_id_length", 24, "length of generated session IDs")
	pflag.String("security.jwt_method", "HS256", "hash algorithm used for the session token")
	pflag.String("security.jwt_secret", "", "JWT secret (required)")
	pflag.String("security.token_name", "tracker_session", "cookie name to store the token (required)")

	// kv storage
	pflag.String("kv.host", "127.0.0.1", "redis host")
	pflag.Int("kv.port", 6379, "redis server port")
	pflag.String("kv.password", "", "redis server password")

	// DevOp
	pflag.Bool("devop.apm", false, "enable apm metrics")

	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config = new(AppConfig)
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Logging.Level == "debug" {
		if configJSON, err := json.MarshalIndent(config, "", "  "); err == nil {
			log.Printf("App config: %s\n", string(configJSON))
		}
	}
	return config, nil
}

func validateConfig(config *AppConfig) error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "-" || name == "" {
			name = fld.Tag.Get("yaml")
			if name == "-" || name == "" {
				return ""
			}
		}
		return name
	})
	err := validate.Struct(config)
	if _, ok := err.(*validator.InvalidValidationError); ok {
		log.Fatalf("Failed to validate config: %s", err)
	}
	if err == nil {
		return nil
	}

	var msg []string
	for _, field := range err.(validator.ValidationErrors) {
		namespace := field.Namespace()
		fieldName := namespace[strings.IndexByte(namespace, '.')+1:] // trim top level namespace
		switch field.Tag() {
		case "required":
			msg = append(msg, fmt.Sprintf("%s is required", fieldName))
		case "oneof":
			msg = append(msg, fmt.Sprintf("%s must be one of (%s)", fieldName, field.Param()))
		case "len":
			msg = append(msg, fmt.Sprintf("%s must have exactly %s entries", fieldName, field.Param()))
		case "min":
			msg = append(msg, fmt.Sprintf("%s must be at least %s", fieldName, field.Param()))
		}
	}
	if len(msg) > 0 {
		return fmt.Errorf("failed to validate config: \n%s", strings.Join(msg, "\n"))
	}
	return nil
}
