package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	gormlogger "gorm.io/gorm/logger"

	"Rippers/config"
)

func TestDSN(t *testing.T) {
	cfg := &config.Config{DBUser: "rip", DBPassword: "s3cret", DBHost: "db.local", DBPort: "3307", DBName: "rippers"}
	assert.Equal(t, "rip:s3cret@tcp(db.local:3307)/rippers?charset=utf8mb4&parseTime=True&loc=Local", DSN(cfg))
}

func TestMigrateWithoutConnection(t *testing.T) {
	assert.Error(t, Migrate(nil))
	assert.NoError(t, Closer(nil)())
}

func TestGormLoggerFollowsLogLevel(t *testing.T) {
	quiet := newGormLogger(&config.Config{LogLevel: "info"})
	loud := newGormLogger(&config.Config{LogLevel: "debug"})
	assert.NotNil(t, quiet)
	assert.NotNil(t, loud)
	assert.NotPanics(t, func() {
		zapWriter{}.Printf("%s [%.3fms] %s\n", "activity.go:12", 1.5, "SELECT 1")
	})
	var _ gormlogger.Writer = zapWriter{}
}
