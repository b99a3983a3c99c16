package storage

import (
	"fmt"
	"strings"
)

type dialect struct {
	name         string
	driver       string
	numbered     bool
	singleWriter bool
	createTable  string
	upsert       string
}

var dialects = map[string]dialect{
	EnginePostgres: {
		name:     EnginePostgres,
		driver:   "postgres",
		numbered: true,
		createTable: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
			definition_id VARCHAR(191) NOT NULL,
			object_id VARCHAR(191) NOT NULL,
			data JSONB NOT NULL,
			modified TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (definition_id, object_id)
		)`,
		upsert: `INSERT INTO ` + Table + ` (definition_id, object_id, data, modified) VALUES (?, ?, ?, ?)
			ON CONFLICT (definition_id, object_id) DO UPDATE SET data = EXCLUDED.data, modified = EXCLUDED.modified`,
	},
	EngineMySQL: {
		name:   EngineMySQL,
		driver: "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
			definition_id VARCHAR(191) NOT NULL,
			object_id VARCHAR(191) NOT NULL,
			data JSON NOT NULL,
			modified DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
			PRIMARY KEY (definition_id, object_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		upsert: `INSERT INTO ` + Table + ` (definition_id, object_id, data, modified) VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE data = VALUES(data), modified = VALUES(modified)`,
	},
	EngineSQLite: {
		name:         EngineSQLite,
		driver:       "sqlite",
		singleWriter: true,
		createTable:  sqliteTable,
		upsert:       sqliteUpsert,
	},
	EngineSQLite3: {
		name:         EngineSQLite3,
		driver:       "sqlite3",
		singleWriter: true,
		createTable:  sqliteTable,
		upsert:       sqliteUpsert,
	},
}

const sqliteTable = `CREATE TABLE IF NOT EXISTS ` + Table + ` (
	definition_id TEXT NOT NULL,
	object_id TEXT NOT NULL,
	data TEXT NOT NULL,
	modified DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (definition_id, object_id)
)`

const sqliteUpsert = `INSERT INTO ` + Table + ` (definition_id, object_id, data, modified) VALUES (?, ?, ?, ?)
	ON CONFLICT(definition_id, object_id) DO UPDATE SET data = excluded.data, modified = excluded.modified`

func dialectFor(engine string) (dialect, bool) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "postgres", "postgresql", "pg":
		return dialects[EnginePostgres], true
	case EngineMySQL, EngineMariaDB:
		return dialects[EngineMySQL], true
	case EngineSQLite3:
		return dialects[EngineSQLite3], true
	case EngineSQLite, "":
		return dialects[EngineSQLite], true
	default:
		return dialect{}, false
	}
}

func dsn(d dialect, cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	switch d.name {
	case EnginePostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			orDefault(cfg.Host, "localhost"), orDefault(cfg.Port, "5432"), cfg.User, cfg.Password, cfg.Name, sslMode)
	case EngineMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
			cfg.User, cfg.Password, orDefault(cfg.Host, "localhost"), orDefault(cfg.Port, "3306"), cfg.Name)
	default:
		return orDefault(cfg.Path, "customfields.db")
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
