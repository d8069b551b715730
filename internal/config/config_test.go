package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoFileOrEnv(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("MQTT.Port = %d, want default 1883", cfg.MQTT.Port)
	}
	if cfg.MQTT.KeepAliveSeconds != 60 {
		t.Errorf("MQTT.KeepAliveSeconds = %d, want default 60", cfg.MQTT.KeepAliveSeconds)
	}
	if cfg.EmergencyBufLen != 512 {
		t.Errorf("EmergencyBufLen = %d, want default 512", cfg.EmergencyBufLen)
	}
}

func TestLoadReadsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	body := "mqtt:\n  server: broker.example.com\n  port: 8883\nupdate:\n  channel: stable\n  auto_update: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Server != "broker.example.com" {
		t.Errorf("MQTT.Server = %q, want broker.example.com", cfg.MQTT.Server)
	}
	if cfg.MQTT.Port != 8883 {
		t.Errorf("MQTT.Port = %d, want 8883", cfg.MQTT.Port)
	}
	if cfg.Update.Channel != "stable" {
		t.Errorf("Update.Channel = %q, want stable", cfg.Update.Channel)
	}
	if !cfg.Update.AutoUpdate {
		t.Error("Update.AutoUpdate = false, want true")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	body := "mqtt:\n  server: broker.example.com\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	os.Setenv("MQTT_SERVER", "override.example.com")
	defer os.Unsetenv("MQTT_SERVER")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Server != "override.example.com" {
		t.Errorf("MQTT.Server = %q, want env override.example.com", cfg.MQTT.Server)
	}
}
