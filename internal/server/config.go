package server

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/goliatone/go-customfields/internal/storage"
)

// Config holds the server settings. Explicit flags win over the process
// environment, which wins over the .env file.
type Config struct {
	Addr           string
	DefinitionsDir string
	Watch          bool
	LogLevel       string
	CORSOrigins    []string
	OptionsRate    float64
	OptionsBurst   int
	Storage        storage.Config
}

// LoadConfig parses args and fills unset flags from getenv and the .env
// file named by -env-file.
func LoadConfig(args []string, getenv func(string) string) (Config, error) {
	fset := flag.NewFlagSet("customfields-server", flag.ContinueOnError)
	fset.SetOutput(io.Discard)

	var (
		cfg     Config
		origins string
		envFile string
	)
	fset.StringVar(&envFile, "env-file", ".env", "Path to a .env file")
	fset.StringVar(&cfg.Addr, "http", "localhost:8080", "Address to listen on")
	fset.StringVar(&cfg.DefinitionsDir, "definitions", "./definitions", "Directory holding JSON/YAML definitions")
	fset.BoolVar(&cfg.Watch, "watch", false, "Reload definitions when files change")
	fset.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fset.StringVar(&origins, "cors-origins", "*", "Comma separated list of allowed CORS origins")
	fset.Float64Var(&cfg.OptionsRate, "options-rate", 20, "Options endpoint requests per second (0 disables the limit)")
	fset.IntVar(&cfg.OptionsBurst, "options-burst", 0, "Options endpoint burst size")
	fset.StringVar(&cfg.Storage.Engine, "db-engine", storage.EngineSQLite, "Database engine (postgres, mysql, mariadb, sqlite, sqlite3)")
	fset.StringVar(&cfg.Storage.DSN, "db-dsn", "", "Database DSN, overrides the individual settings")
	fset.StringVar(&cfg.Storage.Host, "db-host", "localhost", "Database host")
	fset.StringVar(&cfg.Storage.Port, "db-port", "", "Database port")
	fset.StringVar(&cfg.Storage.Name, "db-name", "customfields", "Database name")
	fset.StringVar(&cfg.Storage.User, "db-user", "", "Database user")
	fset.StringVar(&cfg.Storage.Password, "db-pass", "", "Database password")
	fset.StringVar(&cfg.Storage.SSLMode, "db-ssl-mode", "disable", "Postgres sslmode")
	fset.StringVar(&cfg.Storage.Path, "db-path", "customfields.db", "SQLite database file")

	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	if fset.NArg() > 0 {
		return Config{}, fmt.Errorf("unknown arguments: %v", fset.Args())
	}

	env, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", envFile, err)
	}
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return env[key]
	}

	set := make(map[string]bool)
	fset.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	strOverride := func(name, key string, dst *string) {
		if set[name] {
			return
		}
		if v := lookup(key); v != "" {
			*dst = v
		}
	}

	strOverride("http", "CF_HTTP", &cfg.Addr)
	if !set["http"] {
		if port := lookup("PORT"); port != "" && lookup("CF_HTTP") == "" {
			cfg.Addr = ":" + port
		}
	}
	strOverride("definitions", "CF_DEFINITIONS", &cfg.DefinitionsDir)
	strOverride("log-level", "LOG_LEVEL", &cfg.LogLevel)
	strOverride("cors-origins", "CORS_ORIGINS", &origins)
	strOverride("db-engine", "DB_ENGINE", &cfg.Storage.Engine)
	strOverride("db-dsn", "DB_DSN", &cfg.Storage.DSN)
	strOverride("db-host", "DB_HOST", &cfg.Storage.Host)
	strOverride("db-port", "DB_PORT", &cfg.Storage.Port)
	strOverride("db-name", "DB_NAME", &cfg.Storage.Name)
	strOverride("db-user", "DB_USER", &cfg.Storage.User)
	strOverride("db-pass", "DB_PASS", &cfg.Storage.Password)
	strOverride("db-ssl-mode", "DB_SSL_MODE", &cfg.Storage.SSLMode)
	strOverride("db-path", "DB_PATH", &cfg.Storage.Path)

	if !set["watch"] {
		if v := lookup("CF_WATCH"); v != "" {
			watch, err := strconv.ParseBool(v)
			if err != nil {
				return Config{}, fmt.Errorf("CF_WATCH: %w", err)
			}
			cfg.Watch = watch
		}
	}
	if !set["options-rate"] {
		if v := lookup("OPTIONS_RATE"); v != "" {
			rate, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return Config{}, fmt.Errorf("OPTIONS_RATE: %w", err)
			}
			cfg.OptionsRate = rate
		}
	}

	for _, origin := range strings.Split(origins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}
	return cfg, nil
}
