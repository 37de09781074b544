package buildinfo_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/buildinfo"
)

func TestGetInfo_Defaults(t *testing.T) {
	t.Parallel()

	info := buildinfo.GetInfo()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.Date)
}

func TestInfoString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info buildinfo.Info
		want string
	}{
		{
			name: "release",
			info: buildinfo.Info{Version: "0.3.0", Commit: "a1b2c3d", Date: "2026-10-01T10:00:00Z"},
			want: "testsmith 0.3.0 (commit: a1b2c3d, built: 2026-10-01T10:00:00Z)",
		},
		{
			name: "empty",
			info: buildinfo.Info{},
			want: "testsmith  (commit: , built: )",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestInfoJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(buildinfo.Info{Version: "1.0.0", Commit: "abc", Date: "d"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"1.0.0","commit":"abc","date":"d"}`, string(data))
}
