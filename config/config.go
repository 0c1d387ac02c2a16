// C:\Users\wasab\OneDrive\デスクトップ\TSUSHO\config\config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
	_ "time/tzdata" // Windows 端末でも Asia/Tokyo を解決する

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定です。
// 秘密情報 (JWT署名鍵・初期管理者パスワード) は JSON には保存せず、環境変数からのみ読み込みます。
type Config struct {
	ListenAddr          string `json:"listenAddr"`
	DatabasePath        string `json:"databasePath"`
	OfficeID            string `json:"officeId"`
	TimeZone            string `json:"timeZone"`
	PollIntervalSeconds int    `json:"pollIntervalSeconds"`
	ScanQuietMillis     int    `json:"scanQuietMillis"`
	ScanMaxLength       int    `json:"scanMaxLength"`
	ScannerReversed     bool   `json:"scannerReversed"`
	DailyGenerateCron   string `json:"dailyGenerateCron"`
	ReportFolderPath    string `json:"reportFolderPath"`
	TokenTTLMinutes     int    `json:"tokenTTLMinutes"`
	LogLevel            string `json:"logLevel"`
	OpenBrowser         bool   `json:"openBrowser"`
	RedisAddr           string `json:"redisAddr"`
	RedisChannel        string `json:"redisChannel"`

	JWTSecret     string `json:"-"`
	AdminLoginID  string `json:"-"`
	AdminPassword string `json:"-"`
}

const DefaultConfigPath = "./tsusho_config.json"

// Default は設定ファイルが無い場合の初期値を返します。
func Default() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(c *Config) {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "./tsusho.db"
	}
	if c.TimeZone == "" {
		c.TimeZone = "Asia/Tokyo"
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = 10
	}
	if c.ScanQuietMillis <= 0 {
		c.ScanQuietMillis = 500
	}
	if c.ScanMaxLength <= 0 {
		c.ScanMaxLength = 20
	}
	if c.DailyGenerateCron == "" {
		c.DailyGenerateCron = "0 5 * * *"
	}
	if c.TokenTTLMinutes <= 0 {
		c.TokenTTLMinutes = 480
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RedisChannel == "" {
		c.RedisChannel = "tsusho:visit_records"
	}
}

// applyEnv は .env と環境変数の値で設定を上書きします。
func applyEnv(c *Config) {
	if v := os.Getenv("TSUSHO_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("TSUSHO_ADMIN_LOGIN_ID"); v != "" {
		c.AdminLoginID = v
	}
	if v := os.Getenv("TSUSHO_ADMIN_PASSWORD"); v != "" {
		c.AdminPassword = v
	}
	if v := os.Getenv("TSUSHO_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("TSUSHO_LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
}

// Location は施設のタイムゾーンを返します。
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid timeZone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c Config) ScanQuiet() time.Duration {
	return time.Duration(c.ScanQuietMillis) * time.Millisecond
}

func (c Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Manager は設定ファイルの読み書きを管理します。
// 生成した Manager を各コンポーネントへ明示的に渡して使います。
type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func NewManager(path string) *Manager {
	if path == "" {
		path = DefaultConfigPath
	}
	return &Manager{path: path, cfg: Default()}
}

// PathFromEnv は TSUSHO_CONFIG_PATH を考慮した設定ファイルパスを返します。
func PathFromEnv() string {
	_ = godotenv.Load()
	if p := os.Getenv("TSUSHO_CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load は設定ファイルを読み込みます。ファイルが無い場合はデフォルト値を使います。
func (m *Manager) Load() (Config, error) {
	_ = godotenv.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			applyEnv(&cfg)
			m.cfg = cfg
			return cfg, nil
		}
		return m.cfg, err
	}

	var tempCfg Config
	if err := json.Unmarshal(file, &tempCfg); err != nil {
		return m.cfg, fmt.Errorf("failed to parse %s: %w", m.path, err)
	}
	applyDefaults(&tempCfg)
	applyEnv(&tempCfg)
	m.cfg = tempCfg

	return m.cfg, nil
}

// Save は秘密情報を除いた設定を保存します。
func (m *Manager) Save(newCfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	applyDefaults(&newCfg)
	newCfg.JWTSecret = m.cfg.JWTSecret
	newCfg.AdminLoginID = m.cfg.AdminLoginID
	newCfg.AdminPassword = m.cfg.AdminPassword

	file, err := json.MarshalIndent(newCfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(m.path, file, 0644); err != nil {
		return err
	}
	m.cfg = newCfg
	return nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}
