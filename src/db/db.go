package db

import (
	"tix/src/config"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

func GetDb() *gorm.DB {
	if db != nil {
		return db
	}
	dsn := config.Get().Database.DSN()
	_db, err := gorm.Open(postgres.Open(dsn))
	if err != nil {
		logrus.Errorf("Error connecting to database: %s", err.Error())
		panic(err)
	}
	sqlDB, err := _db.DB()
	if err != nil {
		logrus.Fatalf("Error establishing connection to database: %s", err.Error())
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	db = _db
	return _db
}

// NewDB replaces the database instance (tests).
func NewDB(newdb *gorm.DB) {
	db = newdb
}
