package database

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/slide_review_server/config"
	"github.com/qs3c/slide_review_server/internal/model"
)

func TestOpen_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "review.db"),
	}

	db, err := Open(cfg)
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&model.ReviewSession{}))
	assert.True(t, db.Migrator().HasTable(&model.InteractionEvent{}))
	assert.True(t, db.Migrator().HasIndex(&model.ReviewSession{}, "idx_reviewer_image"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(&config.DatabaseConfig{
		Host:     "db",
		Port:     3306,
		Username: "review",
		Password: "pw",
		Database: "slides",
	})

	assert.True(t, strings.HasPrefix(dsn, "review:pw@tcp(db:3306)/slides?"))
	assert.Contains(t, dsn, "parseTime=True")
}

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedis(&config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	_, err = NewRedis(&config.RedisConfig{Host: "127.0.0.1", Port: port})
	assert.Error(t, err)
}
