package accounts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPlainText(t *testing.T) {
	path := writeAccountsFile(t, `
# photography accounts
https://www.instagram.com/natgeo/

https://www.xiaohongshu.com/user/profile/abc123
`)
	accounts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "https://www.instagram.com/natgeo/", accounts[0].URL)
	assert.Equal(t, "https://www.xiaohongshu.com/user/profile/abc123", accounts[1].URL)
	assert.Empty(t, accounts[0].Category)
}

func TestLoadJSONArrayMixed(t *testing.T) {
	path := writeAccountsFile(t, `[
		"https://www.instagram.com/natgeo/",
		{"url": "https://www.instagram.com/nasa/", "category": "science"}
	]`)
	accounts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "https://www.instagram.com/natgeo/", accounts[0].URL)
	assert.Equal(t, "science", accounts[1].Category)
}

func TestLoadJSONCategoryMap(t *testing.T) {
	path := writeAccountsFile(t, `{
		"travel": ["https://www.xiaohongshu.com/user/profile/abc123"],
		"nature": [
			"https://www.instagram.com/natgeo/",
			{"url": "https://www.instagram.com/bbcearth/", "category": "tv"}
		]
	}`)
	accounts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	// Categories come out in sorted order; explicit categories win over
	// the map key.
	assert.Equal(t, "nature", accounts[0].Category)
	assert.Equal(t, "tv", accounts[1].Category)
	assert.Equal(t, "travel", accounts[2].Category)
}

func TestLoadSkipsBlankURLs(t *testing.T) {
	path := writeAccountsFile(t, `[{"category": "empty"}, "https://www.instagram.com/natgeo/"]`)
	accounts, err := Load(path)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeAccountsFile(t, "   \n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeAccountsFile(t, `{"travel": "not-a-list"}`)
	_, err := Load(path)
	assert.Error(t, err)
}
