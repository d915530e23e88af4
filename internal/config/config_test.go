package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %s, want 8080", cfg.Port)
	}
	if cfg.Optimizer.VehicleCapacity != 20 || cfg.Optimizer.Workers != 4 {
		t.Fatalf("optimizer defaults = %+v", cfg.Optimizer)
	}
}

func TestLoadYAMLThenEnvWins(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	body := "port: \"9000\"\noptimizer:\n  vehicleCapacity: 35\n  workers: 2\n"
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("PORT", "7777")
	t.Setenv("MAX_VEHICLES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7777" {
		t.Fatalf("port = %s, want env override 7777", cfg.Port)
	}
	if cfg.Optimizer.VehicleCapacity != 35 || cfg.Optimizer.Workers != 2 {
		t.Fatalf("yaml values not applied: %+v", cfg.Optimizer)
	}
	if cfg.Optimizer.MaxVehicles != 3 {
		t.Fatalf("maxVehicles = %d, want 3", cfg.Optimizer.MaxVehicles)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("VEHICLE_CAPACITY", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("want error for negative capacity")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("want error for missing config file")
	}
}
