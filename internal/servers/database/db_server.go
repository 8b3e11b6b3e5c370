package database

import (
	"fmt"
	"log"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"syncBoard/configs"
	"syncBoard/internal/enums"
	"syncBoard/internal/models"
)

var (
	db   *gorm.DB
	once sync.Once
)

func GetDB(config *configs.Config) *gorm.DB {
	once.Do(func() {
		var err error
		db, err = Open(config)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		log.Println("Database migrated successfully")
	})
	return db
}

// Open connects to the configured database driver, postgres or sqlite.
func Open(config *configs.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch driver := config.Viper.GetString("database.driver"); driver {
	case enums.DATABASE_DRIVER_POSTGRES:
		return gorm.Open(postgres.Open(postgresDSN(getPSQL(config))), gormConfig)
	case enums.DATABASE_DRIVER_SQLITE:
		return gorm.Open(sqlite.Open(config.Viper.GetString("database.dsn")), gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func postgresDSN(psql *models.PSQL) string {
	return fmt.Sprintf(
		"host=%v user=%v password=%v dbname=%v port=%v sslmode=%v TimeZone=%v",
		psql.Host, psql.User, psql.Password, psql.Name, psql.Port, psql.SSL, psql.Timezone,
	)
}

func getPSQL(config *configs.Config) *models.PSQL {
	return &models.PSQL{
		Host:     config.Viper.GetString("database.host"),
		Port:     config.Viper.GetInt("database.port"),
		User:     config.Viper.GetString("database.user"),
		Password: config.Viper.GetString("database.password"),
		Name:     config.Viper.GetString("database.name"),
		SSL:      config.Viper.GetString("database.ssl"),
		Timezone: config.Viper.GetString("database.timezone"),
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Board{},
		&models.BoardSession{},
		&models.BoardCollaborator{},
		&models.ChatMessage{},
	)
}
