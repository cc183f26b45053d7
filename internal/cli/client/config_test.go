package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateConfig points the global config at a temp file and clears the
// connection env vars.
func isolateConfig(t *testing.T) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "vocab", "config.json")

	old := getConfigPathFunc
	getConfigPathFunc = func() (string, error) { return configPath, nil }
	t.Cleanup(func() { getConfigPathFunc = old })

	t.Setenv(envAPIToken, "")
	t.Setenv(envAPIURL, "")
	return configPath
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join("vocab", "config.json")))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	isolateConfig(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	configPath := isolateConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte("{not json"), 0600))

	_, err := LoadGlobalConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse ")
}

func TestSaveLoadDeleteGlobalConfig(t *testing.T) {
	configPath := isolateConfig(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: "secret-token", APIURL: "http://vocab:8080"}))

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "secret-token", raw["api_token"])

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, &GlobalConfig{APIToken: "secret-token", APIURL: "http://vocab:8080"}, config)

	require.NoError(t, DeleteGlobalConfig())
	assert.NoFileExists(t, configPath)
	require.NoError(t, DeleteGlobalConfig())
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	isolateConfig(t)
	assert.Error(t, SaveGlobalConfig(nil))
}

func TestResolveConnection_Cascade(t *testing.T) {
	isolateConfig(t)

	conn, err := ResolveConnection("", "")
	require.NoError(t, err)
	assert.Equal(t, Connection{Source: SourceDefault, URL: defaultAPIURL}, conn)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: "global-token", APIURL: "http://global"}))
	conn, err = ResolveConnection("", "")
	require.NoError(t, err)
	assert.Equal(t, Connection{Source: SourceGlobalConfig, URL: "http://global", Token: "global-token"}, conn)

	t.Setenv(envAPIURL, "http://env")
	conn, err = ResolveConnection("", "")
	require.NoError(t, err)
	assert.Equal(t, Connection{Source: SourceEnv, URL: "http://env", Token: "global-token"}, conn)

	t.Setenv(envAPIToken, "env-token")
	conn, err = ResolveConnection("flag-token", "http://flag")
	require.NoError(t, err)
	assert.Equal(t, Connection{Source: SourceFlag, URL: "http://flag", Token: "flag-token"}, conn)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "(none)", maskToken(""))
	assert.Equal(t, "***", maskToken("short"))
	assert.Equal(t, "abcd...wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}
