package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRuntimeVersion(t *testing.T) {
	tests := []struct {
		name      string
		banner    string
		wantMajor int
		wantMinor int
		wantErr   bool
	}{
		{
			name:      "standard banner",
			banner:    "PHP 8.2.12 (cli) (built: Oct 26 2023 09:45:36) (NTS)",
			wantMajor: 8, wantMinor: 2,
		},
		{
			name:      "major version nine",
			banner:    "PHP 9.0.0 (cli)",
			wantMajor: 9, wantMinor: 0,
		},
		{
			name:      "double digit minor",
			banner:    "PHP 8.10.1 (cli)",
			wantMajor: 8, wantMinor: 10,
		},
		{name: "garbage", banner: "zsh: command not found: php", wantErr: true},
		{name: "empty", banner: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			major, minor, err := parseRuntimeVersion(tt.banner)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMajor, major)
			assert.Equal(t, tt.wantMinor, minor)
		})
	}
}

func TestMeetsMinimum(t *testing.T) {
	tests := []struct {
		name         string
		major, minor int
		want         bool
	}{
		{name: "8.0 below gate", major: 8, minor: 0, want: false},
		{name: "8.1 at gate", major: 8, minor: 1, want: true},
		{name: "8.2 above gate", major: 8, minor: 2, want: true},
		{name: "9.0 newer major", major: 9, minor: 0, want: true},
		{name: "10.0 numeric not lexical", major: 10, minor: 0, want: true},
		{name: "7.9 older major with big minor", major: 7, minor: 9, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, meetsMinimum(tt.major, tt.minor, 8, 1))
		})
	}
}
