package confloader

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "CANVASMESH_"

// Loader loads configuration from a YAML file, the environment and maps,
// later sources overriding earlier ones.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	envKeys   map[string]string
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithKnownKeys registers the configuration keys environment variables
// may set. Keys containing underscores (storage.data_dir) can only be
// reached from the environment when registered.
func WithKnownKeys(keys []string) Option {
	return func(l *Loader) {
		for _, k := range keys {
			l.envKeys[envName(k)] = k
		}
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		envKeys:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the file (if configured) and the environment, then
// unmarshals into target. Fields absent from every source keep the
// values target already holds, so callers pass a populated default.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return err
		}
	}
	if err := l.LoadEnv(); err != nil {
		return err
	}
	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile loads configuration from a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads prefixed environment variables.
//
// CANVASMESH_STORAGE_DATA_DIR sets storage.data_dir when that key is
// known. Once known keys are registered, other names are ignored, so
// variables meant for other programs (CANVASMESH_SERVER for the CLI)
// cannot clobber a section. Without registered keys every underscore
// maps to a dot (CANVASMESH_LOG_LEVEL -> log.level).
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		if key, ok := l.envKeys[name]; ok {
			return key
		}
		if len(l.envKeys) > 0 {
			return ""
		}
		return strings.ReplaceAll(name, "_", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// LoadMap loads configuration from a flat or nested map (flags, tests).
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into target using
// koanf struct tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// Exists reports whether any source set key.
func (l *Loader) Exists(key string) bool {
	return l.k.Exists(key)
}

// Keys returns all loaded configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

func envName(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), ".", "_")
}

// KeysOf lists the dotted koanf keys of the leaf fields of v, a struct
// or pointer to struct. Fields without a koanf tag are skipped.
func KeysOf(v any) []string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys)
	sort.Strings(keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, out *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("koanf"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft.PkgPath() != "time" {
			collectKeys(ft, key, out)
			continue
		}
		*out = append(*out, key)
	}
}

// ToMap converts v, a struct or pointer to struct, into nested maps
// keyed by koanf tags, suitable for writing back as YAML. Durations
// become strings such as "10s".
func ToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return structToMap(rv)
}

var durationType = reflect.TypeOf(time.Duration(0))

func structToMap(rv reflect.Value) map[string]any {
	out := make(map[string]any)
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("koanf"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		fv := rv.Field(i)
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				break
			}
			fv = fv.Elem()
		}
		switch {
		case fv.Kind() == reflect.Pointer:
			out[tag] = nil
		case fv.Type() == durationType:
			out[tag] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct && fv.Type().PkgPath() != "time":
			out[tag] = structToMap(fv)
		default:
			out[tag] = fv.Interface()
		}
	}
	return out
}
