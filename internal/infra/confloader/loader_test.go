package confloader

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type storageSection struct {
	Backend string `koanf:"backend"`
	DataDir string `koanf:"data_dir"`
}

type testConfig struct {
	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`
	Storage  storageSection `koanf:"storage"`
	Interval time.Duration  `koanf:"persist_interval"`
	Ignored  string
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestKeysOf(t *testing.T) {
	got := KeysOf(&testConfig{})
	want := []string{"log.format", "log.level", "persist_interval", "storage.backend", "storage.data_dir"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("KeysOf() = %v, want %v", got, want)
	}
	if KeysOf(42) != nil {
		t.Error("KeysOf(non-struct) should be nil")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "log:\n  level: debug\nstorage:\n  data_dir: /var/lib/canvas\n")

	cfg := testConfig{}
	cfg.Log.Format = "json"
	cfg.Storage.Backend = "memory"

	if err := NewLoader(WithConfigFile(path), WithEnvPrefix("CMTEST_A_")).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Storage.DataDir != "/var/lib/canvas" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Log.Format != "json" || cfg.Storage.Backend != "memory" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "log:\n  level: debug\n")
	t.Setenv("CMTEST_B_LOG_LEVEL", "error")
	t.Setenv("CMTEST_B_STORAGE_DATA_DIR", "/data")
	t.Setenv("CMTEST_B_PERSIST_INTERVAL", "3s")

	var cfg testConfig
	l := NewLoader(
		WithConfigFile(path),
		WithEnvPrefix("CMTEST_B_"),
		WithKnownKeys(KeysOf(&cfg)),
	)
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log.level = %q, want error", cfg.Log.Level)
	}
	if cfg.Storage.DataDir != "/data" {
		t.Errorf("storage.data_dir = %q, want /data", cfg.Storage.DataDir)
	}
	if cfg.Interval != 3*time.Second {
		t.Errorf("persist_interval = %v, want 3s", cfg.Interval)
	}
}

func TestLoadEnv_UnknownKeySplitsOnUnderscore(t *testing.T) {
	t.Setenv("CMTEST_C_STORAGE_DATA_DIR", "/x")

	l := NewLoader(WithEnvPrefix("CMTEST_C_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatal(err)
	}
	if !l.Exists("storage.data.dir") {
		t.Errorf("keys = %v", l.Keys())
	}
	if l.Exists("storage.data_dir") {
		t.Error("unregistered key should not be resolved")
	}
}

func TestLoadEnv_KnownKeysIgnoreOthers(t *testing.T) {
	t.Setenv("CMTEST_E_LOG", "")
	t.Setenv("CMTEST_E_LOG_LEVEL", "warn")

	var cfg testConfig
	cfg.Log.Format = "json"
	l := NewLoader(WithEnvPrefix("CMTEST_E_"), WithKnownKeys(KeysOf(&cfg)))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadMap_OverridesEnv(t *testing.T) {
	t.Setenv("CMTEST_D_LOG_LEVEL", "warn")

	var cfg testConfig
	l := NewLoader(WithEnvPrefix("CMTEST_D_"))
	if err := l.LoadEnv(); err != nil {
		t.Fatal(err)
	}
	if err := l.LoadMap(map[string]any{"log.level": "debug", "storage.backend": "badger"}); err != nil {
		t.Fatal(err)
	}
	if err := l.Unmarshal(&cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Level != "debug" || cfg.Storage.Backend != "badger" {
		t.Errorf("cfg = %+v", cfg)
	}
	if l.GetString("storage.backend") != "badger" {
		t.Errorf("GetString() = %q", l.GetString("storage.backend"))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))).Load(&cfg)
	if err == nil {
		t.Fatal("Load() should fail for a missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "log: [unterminated\n")
	var cfg testConfig
	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err == nil {
		t.Fatal("Load() should fail for invalid YAML")
	}
}

func TestLoadFile_EmptyPath(t *testing.T) {
	if err := NewLoader().LoadFile(""); err != nil {
		t.Errorf("LoadFile(\"\") error = %v", err)
	}
}

func TestUnflatten(t *testing.T) {
	got := unflatten(map[string]any{"a.b.c": 1, "a.d": 2, "e": 3})
	want := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 1}, "d": 2},
		"e": 3,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unflatten() = %v", got)
	}
}

func TestToMap_LoadsBack(t *testing.T) {
	in := &testConfig{Interval: 1500 * time.Millisecond, Ignored: "x"}
	in.Log.Level = "debug"
	in.Storage = storageSection{Backend: "redis", DataDir: "/data"}

	m := ToMap(in)
	if m["persist_interval"] != "1.5s" {
		t.Errorf("persist_interval = %#v", m["persist_interval"])
	}
	if _, ok := m["Ignored"]; ok {
		t.Error("untagged field exported")
	}

	l := NewLoader()
	if err := l.LoadMap(m); err != nil {
		t.Fatal(err)
	}
	var out testConfig
	if err := l.Unmarshal(&out); err != nil {
		t.Fatal(err)
	}
	in.Ignored = ""
	if !reflect.DeepEqual(&out, in) {
		t.Errorf("round trip = %+v, want %+v", out, *in)
	}
}

func TestToMap_NotAStruct(t *testing.T) {
	if ToMap(42) != nil || ToMap((*testConfig)(nil)) != nil {
		t.Error("ToMap should return nil for non-structs")
	}
}
