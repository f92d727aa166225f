package config

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
)

func write(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, configName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestDefaults(t *testing.T) {
	conf, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if conf != Default() {
		t.Errorf("Load of empty dir = %+v, want defaults", conf)
	}
	if conf.Analysis.WideningDelay != 1 || !conf.Analysis.Simplify {
		t.Errorf("unexpected defaults: %+v", conf)
	}
	if conf.LogLevel() != log.WarnLevel {
		t.Errorf("default log level = %s, want warning", conf.LogLevel())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "[analysis]\nwidening_delay = 3\nsimplify = false\n[logging]\nverbosity = \"debug\"\n")
	conf, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Analysis.WideningDelay != 3 || conf.Analysis.Simplify {
		t.Errorf("loaded config = %+v", conf)
	}
	if conf.LogLevel() != log.DebugLevel {
		t.Errorf("log level = %s, want debug", conf.LogLevel())
	}
}

func TestParentMerge(t *testing.T) {
	parent := t.TempDir()
	child := filepath.Join(parent, "sub")
	if err := os.Mkdir(child, 0o700); err != nil {
		t.Fatal(err)
	}
	write(t, parent, "[analysis]\nwidening_delay = 5\nsimplify = false\n")
	write(t, child, "[analysis]\nwidening_delay = 2\n")

	conf, err := Load(child)
	if err != nil {
		t.Fatal(err)
	}
	// The nearer file wins for the keys it sets; the parent fills the rest.
	if conf.Analysis.WideningDelay != 2 {
		t.Errorf("widening_delay = %d, want 2", conf.Analysis.WideningDelay)
	}
	if conf.Analysis.Simplify {
		t.Error("simplify = true, want false inherited from parent")
	}
}

func TestUnknownKey(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "[analysis]\nwildening_delay = 3\n")
	if _, err := Load(dir); err == nil {
		t.Error("unknown key did not error")
	}
}

func TestBadVerbosity(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "[logging]\nverbosity = \"chatty\"\n")
	if _, err := Load(dir); err == nil {
		t.Error("invalid verbosity did not error")
	}
}
