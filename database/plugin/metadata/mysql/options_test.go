// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mysql

import (
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/gavel/database/plugin"
)

func TestNewDefaults(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	assert.Equal(t, "localhost", store.host)
	assert.Equal(t, uint(3306), store.port)
	assert.Equal(t, "root", store.user)
	assert.Equal(t, "gavel", store.database)
	assert.Equal(t, "UTC", store.timeZone)
}

func TestNewInvalidTimeZone(t *testing.T) {
	_, err := New(WithTimeZone("Not/AZone"))
	require.Error(t, err)
}

func TestDSNFromOptions(t *testing.T) {
	store, err := New(
		WithHost("db.example.com"),
		WithPort(3307),
		WithUser("gavel"),
		WithPassword("s3cret"),
		WithDatabase("treasury"),
		WithSSLMode("skip-verify"),
	)
	require.NoError(t, err)
	cfg, err := mysql.ParseDSN(store.DSN())
	require.NoError(t, err)
	assert.Equal(t, "gavel", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.example.com:3307", cfg.Addr)
	assert.Equal(t, "treasury", cfg.DBName)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)
	assert.True(t, cfg.ParseTime)
}

func TestDSNOverride(t *testing.T) {
	dsn := "user:pass@tcp(127.0.0.1:3306)/other?parseTime=true"
	store, err := New(WithHost("ignored"), WithDSN("  "+dsn+" "))
	require.NoError(t, err)
	assert.Equal(t, dsn, store.DSN())
}

func TestStopWithoutStart(t *testing.T) {
	store, err := New()
	require.NoError(t, err)
	require.NoError(t, store.Stop())
}

func TestPluginRegistered(t *testing.T) {
	var found bool
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		if entry.Name == "mysql" {
			found = true
			assert.NotEmpty(t, entry.Options)
		}
	}
	assert.True(t, found)
	p := plugin.GetPlugin(plugin.PluginTypeMetadata, "mysql")
	require.IsType(t, &MetadataStoreMysql{}, p)
}
