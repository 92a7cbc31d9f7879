package queries

import (
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gitlab.com/paramountdax-exchange/genealogy_api/config"
)

// Repo structure
type Repo struct {
	Conn       *gorm.DB
	ConnReader *gorm.DB
}

// NewRepo connects to the writer and reader databases
func NewRepo(writer, reader config.DatabaseConfig) *Repo {
	return &Repo{
		Conn:       connect(writer, "writer"),
		ConnReader: connect(reader, "reader"),
	}
}

func connect(cfg config.DatabaseConfig, name string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Str("section", "queries").Str("connection", name).Msg("Unable to connect to the database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Str("section", "queries").Str("connection", name).Msg("Unable to get the database handle")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	log.Info().Str("section", "queries").Str("connection", name).Str("host", cfg.Host).Msg("Connected to the database")
	return db
}

// Close both connections
func (repo *Repo) Close() {
	for _, db := range []*gorm.DB{repo.Conn, repo.ConnReader} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
