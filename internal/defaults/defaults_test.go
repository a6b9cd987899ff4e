package defaults

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeSagarrr/Resturant-Ai-Agent/internal/config"
)

func TestConfigYAML_LoadsAndValidates(t *testing.T) {
	t.Setenv("GEMINI_KEY", "example-key")
	t.Setenv("PORT", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, ConfigYAML, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	def := config.Default()
	if cfg.Listen.Port != def.Listen.Port || cfg.Relay.Port != def.Relay.Port {
		t.Errorf("ports = %d/%d, want %d/%d", cfg.Listen.Port, cfg.Relay.Port, def.Listen.Port, def.Relay.Port)
	}
	if cfg.Generator.APIKey != "example-key" {
		t.Errorf("api key = %q, want expanded GEMINI_KEY", cfg.Generator.APIKey)
	}
	if cfg.Agent.MaxIterations != config.DefaultMaxIterations {
		t.Errorf("max_iterations = %d", cfg.Agent.MaxIterations)
	}
	if cfg.MQTT.Configured() {
		t.Error("example config should leave mqtt unconfigured")
	}
}
