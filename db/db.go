package db

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/techagentng/quizchat/config"
	"github.com/techagentng/quizchat/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormDB struct {
	DB *gorm.DB
}

// Open connects the backend selected by c.StoreDriver.
func Open(ctx context.Context, c *config.Config) (*Stores, error) {
	switch c.StoreDriver {
	case config.StoreDriverMongo:
		m, err := ConnectMongo(ctx, c.MongoURI, c.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return m.Stores(), nil
	case config.StoreDriverSQLite:
		g, err := OpenSQLite(c.SQLitePath, gormConfig(c))
		if err != nil {
			return nil, err
		}
		return g.Stores(), nil
	case config.StoreDriverPostgres, "":
		g, err := GetDB(c)
		if err != nil {
			return nil, err
		}
		return g.Stores(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
}

func GetDB(c *config.Config) (*GormDB, error) {
	postgresDSN := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		DSN: postgresDSN,
	}), gormConfig(c))
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	g := &GormDB{DB: gormDB}
	if err := migrate(g.DB); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	return g, nil
}

// OpenSQLite opens a sqlite database and migrates it. A dsn of
// "file::memory:" gives a private in-memory store.
func OpenSQLite(dsn string, conf *gorm.Config) (*GormDB, error) {
	if conf == nil {
		conf = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	}
	gormDB, err := gorm.Open(sqlite.Open(dsn), conf)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	g := &GormDB{DB: gormDB}
	if err := migrate(g.DB); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	return g, nil
}

func gormConfig(c *config.Config) *gorm.Config {
	gormConfig := &gorm.Config{}
	if c.Env != "prod" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}
	return gormConfig
}

func (g *GormDB) Stores() *Stores {
	return &Stores{
		Conversations: NewConversationRepo(g),
		Messages:      NewMessageRepo(g),
		Posts:         NewPostRepo(g),
		close: func(context.Context) error {
			sqlDB, err := g.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.Post{},
	)
}

// notFound maps gorm's missing-row error onto ErrNotFound and wraps the rest.
func notFound(err error, action string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return errors.Wrap(err, action)
}
