package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.llib.dev/testcase"
)

func TestMigrateCommand(t *testing.T) {
	s := testcase.NewSpec(t)
	s.Before(func(t *testcase.T) {
		for _, key := range []string{"STORE", "BOLT_PATH", "HTTP_PORT", "LOG_LEVEL"} {
			testcase.UnsetEnv(t, key)
		}
	})

	configFile := testcase.Let(s, func(t *testcase.T) string {
		dir := t.TempDir()
		path := filepath.Join(dir, "entitykit.yaml")
		content := "store:\n  kind: bolt\n  bolt_path: " + filepath.Join(dir, "entitykit.db") + "\n"
		t.Must.NoError(os.WriteFile(path, []byte(content), 0600))
		return path
	})

	execute := func(t *testcase.T, args ...string) (string, error) {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}

	s.Test("migrate prepares the configured store", func(t *testcase.T) {
		out, err := execute(t, "migrate", "--config", configFile.Get(t))
		t.Must.NoError(err)
		t.Must.Equal("bolt store is up to date\n", out)
	})

	s.Test("a missing config file fails", func(t *testcase.T) {
		_, err := execute(t, "migrate", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
		t.Must.Error(err)
	})

	s.Test("unexpected arguments are rejected", func(t *testcase.T) {
		_, err := execute(t, "migrate", "now")
		t.Must.Error(err)
	})
}
