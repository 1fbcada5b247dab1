package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoCmd(out *string) *cobra.Command {
	cmd := &cobra.Command{
		Use: "demo",
		RunE: func(cmd *cobra.Command, args []string) error {
			*out = viper.GetString("foo-bar")
			return nil
		},
	}
	cmd.Flags().String("foo-bar", "", "a test value")
	return cmd
}

func TestPrepareBaseCmdSources(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte(`foo-bar = "from-file"`), 0600))

	testCases := []struct {
		name     string
		args     []string
		env      map[string]string
		expected string
	}{
		{"default", nil, nil, "from-file"},
		{"flag", []string{"--foo-bar", "from-flag"}, nil, "from-flag"},
		{"separated env", nil, map[string]string{"DEMO_FOO_BAR": "from-env"}, "from-env"},
		{"joined env", nil, map[string]string{"DEMOFOO_BAR": "joined"}, "joined"},
		{"flag over env", []string{"--foo-bar", "from-flag"}, map[string]string{"DEMO_FOO_BAR": "from-env"}, "from-flag"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(func() { os.Unsetenv("DEMO_FOO_BAR") })
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			var got string
			cmd := PrepareBaseCmd(newDemoCmd(&got), "DEMO", home)
			cmd.SetArgs(append([]string{}, tc.args...))
			require.NoError(t, cmd.Execute())
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestExecuteReportsErrors(t *testing.T) {
	viper.Reset()
	cmd := &cobra.Command{
		Use:  "fail",
		RunE: func(*cobra.Command, []string) error { return errors.New("boom") },
	}
	cmd.SetArgs([]string{})

	var buf bytes.Buffer
	assert.Equal(t, 1, execute(cmd, &buf))
	assert.Equal(t, "ERROR: boom\n", buf.String())
}
