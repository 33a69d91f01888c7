package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"zcas/internal/digest"
)

const (
	DefaultCodec         = "zlib"
	DefaultHashAlgorithm = string(digest.Default)
	DefaultFileMode      = "0644"
	DefaultDirMode       = "0755"
	DefaultLogLevel      = "info"
	DefaultAPIURL        = "http://127.0.0.1:7380"

	DefaultDataDirName = ".zcas"
	DefaultBlobDirName = "blobs"
	DefaultDBFileName  = "registry.db"

	configFileName = ".zcas.toml"

	configDirEnvKey          = "ZCAS_CONFIG_DIR"
	trustProjectConfigEnvKey = "ZCAS_TRUST_PROJECT_CONFIG"
	storageRootEnvKey        = "ZCAS_STORAGE_ROOT"
	codecEnvKey              = "ZCAS_CODEC"
	hashAlgorithmEnvKey      = "ZCAS_HASH_ALGORITHM"
	dbPathEnvKey             = "ZCAS_DB"
	apiURLEnvKey             = "ZCAS_API_URL"
)

// Config defines runtime configuration for zcas.
type Config struct {
	StorageRoot              string `toml:"storage_root"`
	Codec                    string `toml:"codec"`
	HashAlgorithm            string `toml:"hash_algorithm"`
	FileMode                 string `toml:"file_mode"`
	DirMode                  string `toml:"dir_mode"`
	DBPath                   string `toml:"db_path"`
	LogLevel                 string `toml:"log_level"`
	APIURL                   string `toml:"api_url"`
	TrustedProjectConfigPath string `toml:"-"`
}

// Default returns default configuration values. Paths are resolved by Load.
func Default() Config {
	return Config{
		Codec:         DefaultCodec,
		HashAlgorithm: DefaultHashAlgorithm,
		FileMode:      DefaultFileMode,
		DirMode:       DefaultDirMode,
		LogLevel:      DefaultLogLevel,
		APIURL:        DefaultAPIURL,
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

var allowedKeys = []string{
	"storage_root",
	"codec",
	"hash_algorithm",
	"file_mode",
	"dir_mode",
	"db_path",
	"log_level",
	"api_url",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "storage_root":
		return c.StorageRoot, nil
	case "codec":
		return c.Codec, nil
	case "hash_algorithm":
		return c.HashAlgorithm, nil
	case "file_mode":
		return c.FileMode, nil
	case "dir_mode":
		return c.DirMode, nil
	case "db_path":
		return c.DBPath, nil
	case "log_level":
		return c.LogLevel, nil
	case "api_url":
		return c.APIURL, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// FileModeValue returns the parsed blob file mode.
func (c *Config) FileModeValue() (os.FileMode, error) {
	return parseMode("file_mode", c.FileMode)
}

// DirModeValue returns the parsed directory mode.
func (c *Config) DirModeValue() (os.FileMode, error) {
	return parseMode("dir_mode", c.DirMode)
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	data[key] = parsedValue

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from trusted files and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv(storageRootEnvKey)); v != "" {
		cfg.StorageRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(codecEnvKey)); v != "" {
		cfg.Codec = v
	}
	if v := strings.TrimSpace(os.Getenv(hashAlgorithmEnvKey)); v != "" {
		cfg.HashAlgorithm = v
	}
	if v := strings.TrimSpace(os.Getenv(dbPathEnvKey)); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		cfg.APIURL = v
	}

	cfg.normalizeDefaults()
	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "file_mode", "dir_mode":
		if _, err := parseMode(key, value); err != nil {
			return nil, err
		}
		return value, nil
	case "hash_algorithm":
		alg, err := digest.ParseAlgorithm(value)
		if err != nil {
			return nil, err
		}
		return string(alg), nil
	case "codec":
		if value == "" {
			return nil, fmt.Errorf("codec must not be empty")
		}
		return strings.ToLower(value), nil
	case "api_url":
		u, err := url.Parse(value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("api_url must be an http(s) URL, got %q", value)
		}
		return strings.TrimRight(value, "/"), nil
	default:
		return value, nil
	}
}

func parseMode(key, raw string) (os.FileMode, error) {
	raw = strings.TrimSpace(raw)
	parsed, err := strconv.ParseUint(raw, 8, 32)
	if err != nil || parsed == 0 || parsed > 0o777 {
		return 0, fmt.Errorf("%s must be an octal permission such as 0644, got %q", key, raw)
	}
	return os.FileMode(parsed), nil
}

// normalizeDefaults fills empty values. Storage paths default to
// ~/.zcas, or ./.zcas when the home directory is unknown.
func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.Codec) == "" {
		c.Codec = DefaultCodec
	}
	if strings.TrimSpace(c.HashAlgorithm) == "" {
		c.HashAlgorithm = DefaultHashAlgorithm
	}
	if strings.TrimSpace(c.FileMode) == "" {
		c.FileMode = DefaultFileMode
	}
	if strings.TrimSpace(c.DirMode) == "" {
		c.DirMode = DefaultDirMode
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.StorageRoot != "" && c.DBPath != "" {
		return
	}
	dataDir := DefaultDataDirName
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, DefaultDataDirName)
	}
	if c.StorageRoot == "" {
		c.StorageRoot = filepath.Join(dataDir, DefaultBlobDirName)
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dataDir, DefaultDBFileName)
	}
}
