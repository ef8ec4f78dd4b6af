package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eve.evalgo.org/muninn/muninnerr"
)

func writeConf(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "test.cfg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadTypedFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, `
[archive]
database = postgresql://localhost/muninn
storage = /data/archive
namespace_extensions = core geo
cascade_grace_period = 5
max_cascade_cycles = 7
auth_file = /etc/muninn/auth.cfg
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "postgresql://localhost/muninn", cfg.Database)
	assert.Equal(t, "/data/archive", cfg.Storage)
	assert.Equal(t, []string{"core", "geo"}, cfg.NamespaceExtensions)
	assert.Equal(t, 5*time.Minute, cfg.CascadeGracePeriod)
	assert.Equal(t, 7, cfg.MaxCascadeCycles)
	assert.Equal(t, "/etc/muninn/auth.cfg", cfg.AuthFile)
}

func TestLoadRejectsUnrecognizedKey(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, `
[archive]
database = postgresql://localhost/muninn
bogus_option = true
`)

	_, err := Load(path, nil)
	require.Error(t, err)
	var userErr *muninnerr.UserError
	assert.ErrorAs(t, err, &userErr)
	assert.Contains(t, err.Error(), "bogus_option")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.cfg"), nil)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxCascadeCycles)
	assert.Equal(t, time.Duration(0), cfg.CascadeGracePeriod)
}

func TestLoadFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConf(t, dir, `
[archive]
database = postgresql://localhost/muninn
`)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database", "", "")
	require.NoError(t, flags.Set("database", "postgresql://override/muninn"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "postgresql://override/muninn", cfg.Database)
}

func TestSearchPathSplitsAndFiltersEmpty(t *testing.T) {
	t.Setenv(EnvConfigPath, "/a:/b::/c")
	assert.Equal(t, []string{"/a", "/b", "/c"}, SearchPath())
}

func TestLocateFindsFileInDirectory(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "myarchive.cfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[archive]\n"), 0o644))
	t.Setenv(EnvConfigPath, dir)

	found, err := Locate("myarchive")
	require.NoError(t, err)
	assert.Equal(t, cfgPath, found)
}

func TestLocateMatchesExactFileEntry(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "myarchive.cfg")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[archive]\n"), 0o644))
	t.Setenv(EnvConfigPath, cfgPath)

	found, err := Locate("myarchive")
	require.NoError(t, err)
	assert.Equal(t, cfgPath, found)
}

func TestLocateNotFoundReturnsUserError(t *testing.T) {
	t.Setenv(EnvConfigPath, t.TempDir())
	_, err := Locate("nosuch")
	require.Error(t, err)
	var userErr *muninnerr.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestListArchivesListsCfgFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.cfg"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.cfg"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte(""), 0o644))
	t.Setenv(EnvConfigPath, dir)

	names, err := ListArchives()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, names)
}
