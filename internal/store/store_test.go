package store

import (
	"testing"

	"github.com/danielolaszy/issuebot/internal/store/file"
	"github.com/danielolaszy/issuebot/internal/store/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	testCases := []struct {
		name    string
		kind    Kind
		wantErr bool
		check   func(t *testing.T, v any)
	}{
		{
			name: "Default is json",
			kind: "",
			check: func(t *testing.T, v any) {
				assert.IsType(t, &file.Store{}, v)
			},
		},
		{
			name: "Explicit json",
			kind: KindJSON,
			check: func(t *testing.T, v any) {
				assert.IsType(t, &file.Store{}, v)
			},
		},
		{
			name: "SQLite is case insensitive",
			kind: "SQLite",
			check: func(t *testing.T, v any) {
				assert.IsType(t, &sqlite.Store{}, v)
			},
		},
		{
			name:    "Unknown backend",
			kind:    "redis",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st, err := Open(tc.kind, t.TempDir())
			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown state store")
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.Close() })
			tc.check(t, st)
		})
	}
}
