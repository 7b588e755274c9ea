package main

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resdb/frs"
)

func TestGenInfoLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "gen.frs")
	require.NoError(t, cmdGen("resdb", []string{"-out", out, "-objects", "3"}))

	f, err := frs.Open(out)
	require.NoError(t, err)
	assert.Len(t, f.Objects, 3)
	assert.Equal(t, "resdb-gen", f.Module)

	require.NoError(t, cmdInfo("resdb", []string{out}))
	require.NoError(t, cmdLoad("resdb", []string{"-type", "Beam", "-vars", "Stress|Axial", out}))
	require.NoError(t, cmdDump("resdb", []string{out}))
}

func TestGenBigEndian(t *testing.T) {
	out := filepath.Join(t.TempDir(), "big.frs")
	require.NoError(t, cmdGen("resdb", []string{"-out", out, "-big"}))

	f, err := frs.Open(out)
	require.NoError(t, err)
	assert.Equal(t, binary.ByteOrder(binary.BigEndian), f.Order)
}

func TestLoadRequiresFiles(t *testing.T) {
	require.Error(t, cmdLoad("resdb", nil))
	require.Error(t, cmdGen("resdb", nil))
	require.Error(t, cmdInfo("resdb", nil))
}

func TestLoadToleratesPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.frs")
	require.NoError(t, cmdGen("resdb", []string{"-out", good}))

	bad := filepath.Join(dir, "bad.frs")
	require.NoError(t, os.WriteFile(bad, []byte("not a result file"), 0o644))

	// One loadable file keeps the verb successful.
	require.NoError(t, cmdLoad("resdb", []string{"-type", "Beam", bad, good}))

	// Nothing loadable is an error.
	require.Error(t, cmdLoad("resdb", []string{bad}))
}

func TestConfigParsing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resdb.yaml")
	cfgData := "cache_capacity: 64MB\nstage_dir: " + filepath.Join(dir, "stage") + "\nstore:\n  dir: " + dir + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfgData), 0o644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "64MB", cfg.CacheCapacity)
	require.NotNil(t, cfg.Store)
	assert.Equal(t, dir, cfg.Store.Dir)

	opts, err := cfg.extractorOptions(context.Background())
	require.NoError(t, err)
	assert.Len(t, opts, 3)
}

func TestConfigBadCapacity(t *testing.T) {
	cfg := &cliConfig{CacheCapacity: "not-a-size"}
	_, err := cfg.extractorOptions(context.Background())
	require.Error(t, err)
}

func TestConfigMissingDefaultIsEmpty(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.CacheCapacity)
	assert.Nil(t, cfg.Store)
}

func TestPutThenLoadFromStore(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  dir: "+storeDir+"\n"), 0o644))

	out := filepath.Join(dir, "a.frs")
	require.NoError(t, cmdGen("resdb", []string{"-out", out}))
	require.NoError(t, cmdPut("resdb", []string{"-config", cfgPath, "-prefix", "runs/r1", out}))

	require.FileExists(t, filepath.Join(storeDir, "runs", "r1", "a.frs"))

	// With a store configured, references are store keys.
	require.NoError(t, cmdLoad("resdb", []string{"-config", cfgPath, "-type", "Beam", "store://runs/r1/a.frs"}))
}

func TestFetchRequiresStoreAndRegistry(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  dir: "+dir+"\n"), 0o644))

	require.Error(t, cmdFetch("resdb", []string{"-config", cfgPath}))
	require.Error(t, cmdFetch("resdb", []string{"-config", cfgPath, "-run", "r1"}))
}
