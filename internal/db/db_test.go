package db

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidtube/identity/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6543,
		User:     "vidtube",
		Password: "p@ss/word",
		DBName:   "vidtube_db",
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db.internal:6543", u.Host)
	assert.Equal(t, "/vidtube_db", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))

	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss/word", password)
}

func TestDSN_SSL(t *testing.T) {
	u, err := url.Parse(DSN(config.DatabaseConfig{Host: "h", Port: 5432, UseSSL: true}))
	require.NoError(t, err)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
