package main

import (
	"errors"
	"flag"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"deposit-core/pkg/config"
	"deposit-core/pkg/logger"
)

// 用法:
//
//	migrate -cmd up
//	migrate -cmd steps -n -1
//	migrate -cmd force -n 1   (dirty 之后手动修好再 force)
func main() {
	command := flag.String("cmd", "up", "up, down, steps, force, version")
	dir := flag.String("dir", "migrations", "migration directory")
	n := flag.Int("n", 0, "argument for steps / force")
	flag.Parse()

	config.Init()
	logger.Init(config.Global.App.Env, logger.WithFields(zap.String("service", "migrate")))
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, config.Global.DB.MigrateURL())
	if err != nil {
		logger.Fatal("migration init failed", zap.Error(err))
	}
	defer m.Close()

	switch *command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if *n == 0 {
			logger.Fatal("steps needs -n")
		}
		err = m.Steps(*n)
	case "force":
		err = m.Force(*n)
	case "version":
	default:
		logger.Fatal("unknown command", zap.String("cmd", *command))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("migration failed", zap.String("cmd", *command), zap.Error(err))
	}

	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal("read version failed", zap.Error(err))
	}
	logger.Info("schema version", zap.String("cmd", *command), zap.String("version", strconv.FormatUint(uint64(v), 10)), zap.Bool("dirty", dirty))
}
