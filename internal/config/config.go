package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

const (
	// ErrCodeNotFound 表示没有从 CLI/环境变量拿到牌表路径，且配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingDeck 表示配置文件存在但缺少 deck 字段。
	ErrCodeMissingDeck = "config_missing_deck"
)

const (
	FileName  = "deckprice.json"
	EnvPrefix = "DECKPRICE_"

	DefaultShop       = "bootlegmage"
	DefaultCacheName  = "cards.db"
	DefaultStaleAfter = 5 * 24 * time.Hour
	DefaultTabDelay   = time.Second
	DefaultTotalMode  = "unique"
	DefaultTimeout    = 20 * time.Second
	DefaultLogLevel   = "info"
)

// CLIArgs 保留“是否显式指定”的信息，保证 --mass-import=false 这类参数能覆盖配置文件中的 true。
type CLIArgs struct {
	DeckPath   string
	ConfigPath string

	Shop    string
	ShopSet bool

	CacheDB string

	OpenBrowser    bool
	OpenBrowserSet bool

	MassImport    bool
	MassImportSet bool

	TotalMode    string
	TotalModeSet bool

	StaleAfter    time.Duration
	StaleAfterSet bool

	ReportPath string
	Debug      bool
}

// FileConfig 对应 deckprice.json。时长字段使用 Go duration 字符串（如 "120h"、"1s"）。
type FileConfig struct {
	Deck            string       `json:"deck"`
	Shop            string       `json:"shop"`
	CacheDB         string       `json:"cache_db"`
	StaleAfter      string       `json:"stale_after"`
	TabDelay        string       `json:"tab_delay"`
	OpenBrowser     *bool        `json:"open_browser"`
	MassImport      *bool        `json:"mass_import"`
	TotalMode       string       `json:"total_mode"`
	Proxy           *ProxyConfig `json:"proxy"`
	ScryfallBaseURL string       `json:"scryfall_base_url"`
	ShopBaseURL     string       `json:"shop_base_url"`
	Timeout         string       `json:"timeout"`
	LogLevel        string       `json:"log_level"`
	Browser         string       `json:"browser"`
	Report          string       `json:"report"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EnvConfig 是 DECKPRICE_* 环境变量（含 .env）的解析结构。未设置的字段保持零值/nil。
type EnvConfig struct {
	Deck            string         `env:"DECK"`
	Shop            string         `env:"SHOP"`
	CacheDB         string         `env:"CACHE_DB"`
	StaleAfter      *time.Duration `env:"STALE_AFTER"`
	TabDelay        *time.Duration `env:"TAB_DELAY"`
	OpenBrowser     *bool          `env:"OPEN_BROWSER"`
	MassImport      *bool          `env:"MASS_IMPORT"`
	TotalMode       string         `env:"TOTAL_MODE"`
	ProxyURL        string         `env:"PROXY_URL"`
	ScryfallBaseURL string         `env:"SCRYFALL_BASE_URL"`
	ShopBaseURL     string         `env:"SHOP_BASE_URL"`
	Timeout         *time.Duration `env:"TIMEOUT"`
	LogLevel        string         `env:"LOG_LEVEL"`
	Browser         string         `env:"BROWSER"`
}

// EffectiveConfig 是合并、规范化并校验后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	DeckPath string `validate:"required"`
	// ConfigPath 是实际读取到的配置文件（没有读取时为空）。
	ConfigPath string

	Shop    string `validate:"required,oneof=bootlegmage acardgameshop magiccardplus"`
	CacheDB string `validate:"required"`

	StaleAfter time.Duration `validate:"gt=0"`
	TabDelay   time.Duration `validate:"gte=0"`

	OpenBrowser bool
	MassImport  bool
	TotalMode   string `validate:"oneof=unique per_copy"`

	ProxyURL        string        `validate:"omitempty,url"`
	ScryfallBaseURL string        `validate:"omitempty,http_url"`
	ShopBaseURL     string        `validate:"omitempty,http_url"`
	Timeout         time.Duration `validate:"gt=0"`

	LogLevel string `validate:"oneof=debug info warn error"`
	Debug    bool

	// BrowserCommand 为空时按平台选择 Firefox 的默认路径。
	BrowserCommand string
	ReportPath     string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q（也可以用参数或 %sDECK 指定牌表）", e.Code, e.Path, EnvPrefix)
	case ErrCodeMissingDeck:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 deck", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件、进程环境变量与 <cwd>/.env，然后与 CLI 参数合并为最终配置。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return LoadEffectiveEnv(cwd, cli, processEnv())
}

// LoadEffectiveEnv 与 LoadEffective 相同，但环境变量由调用方给出（.env 仍从 cwd 读取，且优先级低于 environ）。
//
// 覆盖优先级（固定，低 → 高）：默认值 → 配置文件 → 环境变量 → CLI。
//
// 配置文件发现规则：
// 1) --config 指定：必须存在
// 2) 否则读取 <cwd>/deckprice.json（可选）
// 3) 最终没有牌表路径时：文件不存在报 config_not_found，文件存在报 config_missing_deck
func LoadEffectiveEnv(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if explicit && !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}

	ec, err := readEnvConfig(filepath.Join(cwdAbs, ".env"), environ)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "env", Err: err}
	}

	eff, err := merge(cwdAbs, cli, fc, ec, filepath.Dir(cfgPath))
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if exists {
		eff.ConfigPath = cfgPath
	}

	if eff.DeckPath == "" {
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingDeck, Path: cfgPath}
	}
	if eff.CacheDB == "" {
		eff.CacheDB = filepath.Join(filepath.Dir(eff.DeckPath), DefaultCacheName)
	}

	if err := validate(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return eff, nil
}

// merge 按 默认值 → 文件 → 环境变量 → CLI 的顺序叠加。
// 文件中的相对路径以配置文件所在目录为基准；环境变量与 CLI 的相对路径以 cwd 为基准。
func merge(cwd string, cli CLIArgs, fc FileConfig, ec EnvConfig, cfgDir string) (EffectiveConfig, error) {
	eff := EffectiveConfig{
		Shop:       DefaultShop,
		StaleAfter: DefaultStaleAfter,
		TabDelay:   DefaultTabDelay,
		TotalMode:  DefaultTotalMode,
		Timeout:    DefaultTimeout,
		LogLevel:   DefaultLogLevel,
	}

	// 文件
	setPath(&eff.DeckPath, cfgDir, fc.Deck)
	setString(&eff.Shop, fc.Shop)
	setPath(&eff.CacheDB, cfgDir, fc.CacheDB)
	if err := setDuration(&eff.StaleAfter, "stale_after", fc.StaleAfter); err != nil {
		return EffectiveConfig{}, err
	}
	if err := setDuration(&eff.TabDelay, "tab_delay", fc.TabDelay); err != nil {
		return EffectiveConfig{}, err
	}
	if err := setDuration(&eff.Timeout, "timeout", fc.Timeout); err != nil {
		return EffectiveConfig{}, err
	}
	setBool(&eff.OpenBrowser, fc.OpenBrowser)
	setBool(&eff.MassImport, fc.MassImport)
	setString(&eff.TotalMode, fc.TotalMode)
	if fc.Proxy != nil {
		setString(&eff.ProxyURL, fc.Proxy.URL)
	}
	setString(&eff.ScryfallBaseURL, fc.ScryfallBaseURL)
	setString(&eff.ShopBaseURL, fc.ShopBaseURL)
	setString(&eff.LogLevel, fc.LogLevel)
	setString(&eff.BrowserCommand, fc.Browser)
	setPath(&eff.ReportPath, cfgDir, fc.Report)

	// 环境变量
	setPath(&eff.DeckPath, cwd, ec.Deck)
	setString(&eff.Shop, ec.Shop)
	setPath(&eff.CacheDB, cwd, ec.CacheDB)
	if ec.StaleAfter != nil {
		eff.StaleAfter = *ec.StaleAfter
	}
	if ec.TabDelay != nil {
		eff.TabDelay = *ec.TabDelay
	}
	if ec.Timeout != nil {
		eff.Timeout = *ec.Timeout
	}
	setBool(&eff.OpenBrowser, ec.OpenBrowser)
	setBool(&eff.MassImport, ec.MassImport)
	setString(&eff.TotalMode, ec.TotalMode)
	setString(&eff.ProxyURL, ec.ProxyURL)
	setString(&eff.ScryfallBaseURL, ec.ScryfallBaseURL)
	setString(&eff.ShopBaseURL, ec.ShopBaseURL)
	setString(&eff.LogLevel, ec.LogLevel)
	setString(&eff.BrowserCommand, ec.Browser)

	// CLI
	setPath(&eff.DeckPath, cwd, cli.DeckPath)
	if cli.ShopSet {
		eff.Shop = strings.TrimSpace(cli.Shop)
	}
	setPath(&eff.CacheDB, cwd, cli.CacheDB)
	if cli.OpenBrowserSet {
		eff.OpenBrowser = cli.OpenBrowser
	}
	if cli.MassImportSet {
		eff.MassImport = cli.MassImport
	}
	if cli.TotalModeSet {
		eff.TotalMode = strings.TrimSpace(cli.TotalMode)
	}
	if cli.StaleAfterSet {
		eff.StaleAfter = cli.StaleAfter
	}
	setPath(&eff.ReportPath, cwd, cli.ReportPath)
	if cli.Debug {
		eff.Debug = true
		eff.LogLevel = "debug"
	}

	eff.Shop = strings.ToLower(eff.Shop)
	eff.TotalMode = strings.ToLower(eff.TotalMode)
	eff.LogLevel = strings.ToLower(eff.LogLevel)
	return eff, nil
}

var validate = func() func(EffectiveConfig) error { //nolint:gochecknoglobals
	v := validator.New(validator.WithRequiredStructEnabled())
	return func(eff EffectiveConfig) error {
		return v.Struct(eff)
	}
}()

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setPath(dst *string, base, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = absCleanFrom(base, v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s 无效：%w", field, err)
	}
	*dst = d
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// readEnvConfig 合并 .env 与 environ（environ 优先），再按 DECKPRICE_ 前缀解析。
func readEnvConfig(dotenv string, environ map[string]string) (EnvConfig, error) {
	merged := map[string]string{}
	if m, err := godotenv.Read(dotenv); err == nil {
		for k, v := range m {
			merged[k] = v
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return EnvConfig{}, fmt.Errorf("读取 .env 失败：%w", err)
	}
	for k, v := range environ {
		merged[k] = v
	}

	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{
		Prefix:      EnvPrefix,
		Environment: merged,
	}); err != nil {
		return EnvConfig{}, err
	}
	return ec, nil
}

func processEnv() map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			out[k] = v
		}
	}
	return out
}
