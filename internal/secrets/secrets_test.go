package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/errors"
)

func TestExpand(t *testing.T) {
	t.Setenv("EVMTRACK_TEST_TOKEN", "s3cret")
	t.Setenv("EVMTRACK_TEST_USER", "custodian")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr string
	}{
		{name: "empty", input: "", want: ""},
		{name: "literal", input: "plain-value", want: "plain-value"},
		{name: "single reference", input: "${EVMTRACK_TEST_TOKEN}", want: "s3cret"},
		{name: "embedded references", input: "${EVMTRACK_TEST_USER}:${EVMTRACK_TEST_TOKEN}", want: "custodian:s3cret"},
		{name: "fallback unused", input: "${EVMTRACK_TEST_TOKEN:-other}", want: "s3cret"},
		{name: "fallback used", input: "${EVMTRACK_TEST_UNSET:-other}", want: "other"},
		{name: "empty fallback", input: "${EVMTRACK_TEST_UNSET:-}", want: ""},
		{name: "bare dollar kept", input: "pa$word${EVMTRACK_TEST_TOKEN}", want: "pa$words3cret"},
		{name: "missing", input: "${EVMTRACK_TEST_UNSET}", wantErr: "EVMTRACK_TEST_UNSET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	private := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(private, []byte("token-value\n"), 0o600))
	secret, warning, err := ReadFile(private)
	require.NoError(t, err)
	assert.Equal(t, "token-value", secret)
	assert.Empty(t, warning)

	shared := filepath.Join(dir, "shared")
	require.NoError(t, os.WriteFile(shared, []byte("token-value"), 0o644))
	_, warning, err = ReadFile(shared)
	require.NoError(t, err)
	assert.Contains(t, warning, "group or others")

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	_, _, err = ReadFile(empty)
	assert.ErrorContains(t, err, "empty")

	_, _, err = ReadFile(dir)
	assert.ErrorContains(t, err, "not a regular file")

	_, _, err = ReadFile(filepath.Join(dir, "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}

func TestResolvePrefersFile(t *testing.T) {
	t.Setenv("EVMTRACK_TEST_JWT", "from-env")
	path := filepath.Join(t.TempDir(), "jwt")
	require.NoError(t, os.WriteFile(path, []byte("from-file"), 0o400))

	got, _, err := Resolve("security.jwtsecret", path, "${EVMTRACK_TEST_JWT}")
	require.NoError(t, err)
	assert.Equal(t, "from-file", got)

	got, _, err = Resolve("security.jwtsecret", "", "${EVMTRACK_TEST_JWT}")
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, _, err = Resolve("security.jwtsecret", filepath.Join(t.TempDir(), "absent"), "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
