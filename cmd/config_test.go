package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"thoreinstein.com/chronicle/pkg/config"
)

func TestConfigShowCommand(t *testing.T) {
	setupTestConfig(t, `
[analysis]
top_n = 11
`)

	var out bytes.Buffer
	if err := runConfigShowCommand(&out); err != nil {
		t.Fatalf("config show: %v", err)
	}

	var decoded config.Config
	if err := toml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("config show output is not TOML: %v\n%s", err, out.String())
	}
	if decoded.Analysis.TopN != 11 {
		t.Errorf("top_n = %d, want 11", decoded.Analysis.TopN)
	}
	if decoded.Classifier.Scheme != "keyword" {
		t.Errorf("classifier.scheme = %q, want keyword", decoded.Classifier.Scheme)
	}
}

func TestConfigInitCommand(t *testing.T) {
	resetConfig()
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	oldCfgFile := cfgFile
	cfgFile = path
	t.Cleanup(func() {
		cfgFile = oldCfgFile
		configInitForce = false
		resetConfig()
	})

	var out bytes.Buffer
	if err := runConfigInitCommand(&out); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("config init should report the path, got %q", out.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("written config is not TOML: %v", err)
	}
	if decoded.Analysis.MaxPatternLength != 5 {
		t.Errorf("max_pattern_length = %d, want 5", decoded.Analysis.MaxPatternLength)
	}

	// The written file loads back through the normal config path
	t.Chdir(t.TempDir())
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Analysis.SessionIdleThreshold != config.Default().Analysis.SessionIdleThreshold {
		t.Errorf("idle threshold = %v, want default", cfg.Analysis.SessionIdleThreshold)
	}

	if err := runConfigInitCommand(&out); err == nil {
		t.Error("config init should refuse to overwrite without --force")
	}
	configInitForce = true
	if err := runConfigInitCommand(&out); err != nil {
		t.Errorf("config init --force: %v", err)
	}
}
