package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigFileRoundTrip(t *testing.T) {
	home := t.TempDir()
	cfg := DefaultConfig(home)
	cfg.App.IndexerListen = "127.0.0.1:9999"
	cfg.App.MetricsNS = "gov"
	WriteConfigFile(ConfigFilePath(home), cfg)

	read, err := ReadConfigFile(home)
	require.NoError(t, err)
	require.Equal(t, home, read.App.Home)
	require.Equal(t, "127.0.0.1:9999", read.App.IndexerListen)
	require.Equal(t, "gov", read.App.MetricsNS)
	require.Equal(t, filepath.Join(home, "indexer.db"), read.App.IndexerDBPath())
	require.Equal(t, uint64(1), read.App.TimeoutCommit)
}

func TestReadConfigFileInvalid(t *testing.T) {
	home := t.TempDir()
	_, err := ReadConfigFile(home)
	require.Error(t, err)

	cfg := DefaultConfig(home)
	cfg.App.IndexerListen = ""
	WriteConfigFile(ConfigFilePath(home), cfg)
	_, err = ReadConfigFile(home)
	require.ErrorContains(t, err, "indexer_listen")
}

func TestIndexerDBPath(t *testing.T) {
	c := DefaultDAOAppConfig("/srv/dao")
	require.Equal(t, "/srv/dao/indexer.db", c.IndexerDBPath())
	c.IndexerDB = filepath.Join(os.TempDir(), "idx.db")
	require.Equal(t, c.IndexerDB, c.IndexerDBPath())
}
