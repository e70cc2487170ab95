// Package config loads the entitykit configuration.
//
// Values are layered, the later source wins:
//
//  1. built-in defaults
//  2. the YAML file, when one is given
//  3. the .env file, when present; it never overrides a variable the process already has
//  4. the environment variables
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"go.llib.dev/frameless/pkg/env"
	"go.llib.dev/frameless/pkg/logging"
	"gopkg.in/yaml.v3"
)

const (
	StoreMemory     = "memory"
	StorePostgreSQL = "postgresql"
	StoreMySQL      = "mysql"
	StoreBolt       = "bolt"
	StoreMongoDB    = "mongodb"
)

type Config struct {
	HTTP  HTTP  `yaml:"http"`
	Log   Log   `yaml:"log"`
	Store Store `yaml:"store"`
}

type HTTP struct {
	Port int `yaml:"port" env:"HTTP_PORT"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" enum:"debug;info;warn;error;"`
}

type Store struct {
	Kind            string `yaml:"kind" env:"STORE" enum:"memory;postgresql;mysql;bolt;mongodb;"`
	DatabaseURL     string `yaml:"database_url" env:"DATABASE_URL"`
	MySQLDSN        string `yaml:"mysql_dsn" env:"MYSQL_DSN"`
	BoltPath        string `yaml:"bolt_path" env:"BOLT_PATH"`
	MongoDBURI      string `yaml:"mongodb_uri" env:"MONGODB_URI"`
	MongoDBDatabase string `yaml:"mongodb_database" env:"MONGODB_DATABASE"`
}

func Default() Config {
	return Config{
		HTTP: HTTP{Port: 8080},
		Log:  Log{Level: string(logging.LevelInfo)},
		Store: Store{
			Kind:            StoreMemory,
			BoltPath:        "entitykit.db",
			MongoDBDatabase: "entitykit",
		},
	}
}

type Options struct {
	// ConfigFile [optional] is the path of a YAML configuration file.
	ConfigFile string
	// DotEnvFile [optional] is loaded into the environment when it exists.
	//
	// default: .env
	DotEnvFile string
}

func Load(o Options) (Config, error) {
	cfg := Default()
	if o.ConfigFile != "" {
		data, err := os.ReadFile(o.ConfigFile)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", o.ConfigFile, err)
		}
	}
	dotenv := o.DotEnvFile
	if dotenv == "" {
		dotenv = ".env"
	}
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("env file %s: %w", dotenv, err)
	}
	if err := env.Load(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks that the selected store has its connection settings.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || 65535 < c.HTTP.Port {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	required := map[string]struct{ key, value string }{
		StorePostgreSQL: {"DATABASE_URL", c.Store.DatabaseURL},
		StoreMySQL:      {"MYSQL_DSN", c.Store.MySQLDSN},
		StoreBolt:       {"BOLT_PATH", c.Store.BoltPath},
		StoreMongoDB:    {"MONGODB_URI", c.Store.MongoDBURI},
	}
	if r, ok := required[c.Store.Kind]; ok && r.value == "" {
		return fmt.Errorf("%s store requires %s", c.Store.Kind, r.key)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func (c Config) Logger() *logging.Logger {
	return &logging.Logger{Out: os.Stdout, Level: logging.Level(c.Log.Level)}
}
