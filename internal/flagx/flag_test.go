package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		names []string
		want  []string
	}{
		{
			name:  "short flag with separate value",
			args:  []string{"-c", "conf.json", "--data-dir", "/tmp/x"},
			names: []string{"c", "config"},
			want:  []string{"-c", "conf.json"},
		},
		{
			name:  "long flag with equals",
			args:  []string{"--config=alt.json", "status", "alice"},
			names: []string{"c", "config"},
			want:  []string{"--config=alt.json"},
		},
		{
			name:  "dashes in names are ignored",
			args:  []string{"--config", "a.json"},
			names: []string{"--config"},
			want:  []string{"--config", "a.json"},
		},
		{
			name:  "positional arguments and unknown flags dropped",
			args:  []string{"exec", "bob", "-x", "1", "--y=2"},
			names: []string{"c", "config"},
			want:  []string{},
		},
		{
			name:  "flag without value at end is kept",
			args:  []string{"-c"},
			names: []string{"c"},
			want:  []string{"-c"},
		},
		{
			name:  "next dash-starting token is not a value",
			args:  []string{"-c", "--config=alt.json"},
			names: []string{"c", "config"},
			want:  []string{"-c", "--config=alt.json"},
		},
		{
			name:  "repeated flag preserved in order",
			args:  []string{"-c", "one.json", "-c", "two.json"},
			names: []string{"c"},
			want:  []string{"-c", "one.json", "-c", "two.json"},
		},
		{
			name:  "empty args",
			args:  nil,
			names: []string{"c"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, tt.names))
		})
	}
}

func TestConfigPath(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "short", args: []string{"-c", "/etc/userdb.json", "status", "alice"}, want: "/etc/userdb.json"},
		{name: "long with equals", args: []string{"query", "--config=/tmp/c.json"}, want: "/tmp/c.json"},
		{name: "absent", args: []string{"status", "alice", "--data-dir", "/x"}, want: ""},
		{name: "last wins", args: []string{"-c", "/a.json", "--config", "/b.json"}, want: "/b.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigPath(tt.args))
		})
	}
}
