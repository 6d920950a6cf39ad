package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"menucrawler/crawler/internal/domain"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Log        LogConfig                     `mapstructure:"log"`
	Crawler    CrawlerConfig                 `mapstructure:"crawler"`
	Platform   PlatformConfig                `mapstructure:"platform"`
	Classifier ClassifierConfig              `mapstructure:"classifier"`
	Export     ExportConfig                  `mapstructure:"export"`
	Session    SessionConfig                 `mapstructure:"session"`
	Database   DatabaseConfig                `mapstructure:"database"`
	Redis      RedisConfig                   `mapstructure:"redis"`
	Presets    map[string]domain.SelectorSet `mapstructure:"presets"`
}

// LogConfig holds logrus settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// CrawlerConfig holds HTTP fetching and pacing configuration
type CrawlerConfig struct {
	Timeout              int      `mapstructure:"timeout"` // Seconds per request
	MaxRetries           int      `mapstructure:"max_retries"`
	UserAgent            string   `mapstructure:"user_agent"`
	VerifySSL            bool     `mapstructure:"verify_ssl"`
	MaxRedirects         int      `mapstructure:"max_redirects"`
	DelayMS              int      `mapstructure:"delay_ms"` // Pause between sequential requests
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	MaxDepth             int      `mapstructure:"max_depth"`
	RespectRobots        bool     `mapstructure:"respect_robots"`
	Proxies              []string `mapstructure:"proxies"`
}

// PlatformConfig describes the markup of the platform whose category tree is discovered
type PlatformConfig struct {
	Name                     string   `mapstructure:"name"`
	BaseURL                  string   `mapstructure:"base_url"`
	CategoryLinkSelector     string   `mapstructure:"category_link_selector"`
	SubcategoryLinkSelectors []string `mapstructure:"subcategory_link_selectors"` // Most specific first
	ProductSelector          string   `mapstructure:"product_selector"`
	DetailURLPattern         string   `mapstructure:"detail_url_pattern"`
	SocialKeywords           []string `mapstructure:"social_keywords"`
	MinSubcategoryNameLength int      `mapstructure:"min_subcategory_name_length"`
}

// ClassifierConfig holds the leaf/branch heuristic thresholds
type ClassifierConfig struct {
	MinBranchLinks     int     `mapstructure:"min_branch_links"`
	SparseProductCount int     `mapstructure:"sparse_product_count"`
	LinkDensityRatio   float64 `mapstructure:"link_density_ratio"`
}

// ExportConfig holds export file settings
type ExportConfig struct {
	Directory      string `mapstructure:"directory"`
	FilenamePrefix string `mapstructure:"filename_prefix"`
}

// SessionConfig selects where accumulated crawl items are kept between calls
type SessionConfig struct {
	Backend   string `mapstructure:"backend"` // sqlite, redis or memory
	Path      string `mapstructure:"path"`    // sqlite database file
	DefaultID string `mapstructure:"default_id"`
}

// DatabaseConfig holds the crawl archive database configuration
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	BlockTimeout  int    `mapstructure:"block_timeout"` // Seconds to wait on an empty stream
	MaxRetries    int    `mapstructure:"max_retries"`
}

// Load loads configuration from a YAML file with environment variable overrides.
// An empty path searches for config.yaml in the current directory; a missing
// file is not an error in that case and defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix("MENUCRAWLER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the crawler cannot run with
func (c *Config) Validate() error {
	if c.Crawler.Timeout <= 0 {
		return fmt.Errorf("crawler.timeout must be positive, got %d", c.Crawler.Timeout)
	}
	if c.Crawler.MaxDepth < 1 {
		return fmt.Errorf("crawler.max_depth must be at least 1, got %d", c.Crawler.MaxDepth)
	}
	if c.Platform.BaseURL == "" {
		return fmt.Errorf("platform.base_url is required")
	}
	switch c.Session.Backend {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("session.backend must be sqlite, redis or memory, got %q", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("session.backend redis requires redis.enabled")
	}
	// go-redis turns a zero block into BLOCK 0, which waits forever on an empty stream
	if c.Redis.Enabled && c.Redis.BlockTimeout <= 0 {
		return fmt.Errorf("redis.block_timeout must be positive, got %d", c.Redis.BlockTimeout)
	}
	return nil
}

// Preset returns a named selector preset
func (c *Config) Preset(name string) (domain.SelectorSet, bool) {
	preset, ok := c.Presets[strings.ToLower(name)]
	return preset, ok
}

// PresetForURL picks the preset whose name appears in the URL, if any
func (c *Config) PresetForURL(rawURL string) (string, domain.SelectorSet, bool) {
	lower := strings.ToLower(rawURL)
	for _, name := range c.PresetNames() {
		if name == "generic" {
			continue
		}
		if strings.Contains(lower, name) {
			return name, c.Presets[name], true
		}
	}
	return "", domain.SelectorSet{}, false
}

// PresetNames returns the preset names in sorted order
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("crawler.timeout", 30)
	v.SetDefault("crawler.max_retries", 2)
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("crawler.verify_ssl", false)
	v.SetDefault("crawler.max_redirects", 5)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.max_requests_per_second", 0)
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.respect_robots", false)
	v.SetDefault("crawler.proxies", []string{})

	v.SetDefault("platform.name", "notifybee")
	v.SetDefault("platform.base_url", "https://notifybee.com.tr")
	v.SetDefault("platform.category_link_selector", `a[href*="menudetay"]`)
	v.SetDefault("platform.subcategory_link_selectors", []string{`li a[href*="menudetay"]`, `a[href*="menudetay"]`})
	v.SetDefault("platform.product_selector", ".vertical-menu-list__item")
	v.SetDefault("platform.detail_url_pattern", `/menudetay\?(.*&)?menu=\d+`)
	v.SetDefault("platform.social_keywords", []string{
		"facebook", "twitter", "instagram", "whatsapp", "linkedin", "pinterest",
		"telegram", "youtube", "tiktok", "share", "paylas", "paylaş", "mailto:", "tel:",
	})
	v.SetDefault("platform.min_subcategory_name_length", 2)

	v.SetDefault("classifier.min_branch_links", 2)
	v.SetDefault("classifier.sparse_product_count", 5)
	v.SetDefault("classifier.link_density_ratio", 0.5)

	v.SetDefault("export.directory", "exports")
	v.SetDefault("export.filename_prefix", "menu_data_")

	v.SetDefault("session.backend", "sqlite")
	v.SetDefault("session.path", "menucrawler.db")
	v.SetDefault("session.default_id", "default")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "menucrawler")
	v.SetDefault("database.user", "menucrawler")
	v.SetDefault("database.password", "menucrawler")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "menucrawler_consumer")
	v.SetDefault("redis.block_timeout", 2)
	v.SetDefault("redis.max_retries", 3)

	setPresetDefaults(v)
}

// setPresetDefaults registers the built-in selector presets for common platforms
func setPresetDefaults(v *viper.Viper) {
	presets := map[string]domain.SelectorSet{
		"notifybee": {
			Container:   ".arabas",
			Item:        ".vertical-menu-list__item",
			Name:        "h6",
			Description: ".col-8 p",
			Price:       ".text-orange",
			Image:       `.food-background div[style*="background-image"]`,
		},
		"yemeksepeti": {
			Container:   ".restaurant-menu, .menu-category",
			Item:        ".menu-item, .product-item",
			Name:        ".product-name, .item-name, h3",
			Description: ".product-description, .item-description",
			Price:       ".price, .product-price",
			Image:       ".product-image img, .item-image img",
		},
		"getir": {
			Container:   ".product-list, .menu-container",
			Item:        ".product-card, .menu-item",
			Name:        ".product-title, .item-title",
			Description: ".product-description",
			Price:       ".product-price, .price",
			Image:       ".product-image img",
		},
		"zomato": {
			Container:   ".menu-container, .dish-container",
			Item:        ".menu-item, .dish-item",
			Name:        ".dish-name, .item-name",
			Description: ".dish-description",
			Price:       ".dish-price, .price",
			Image:       ".dish-image img",
		},
		"generic": {
			Container:   ".menu, .food-menu, .restaurant-menu",
			Item:        ".menu-item, .food-item, .dish, li",
			Name:        ".name, .title, .dish-name, h3, h4",
			Description: ".description, .desc, .details, p",
			Price:       ".price, .cost, .amount, .money",
			Image:       "img, .image img, .photo img",
		},
	}

	for name, preset := range presets {
		for _, field := range preset.Named() {
			v.SetDefault(fmt.Sprintf("presets.%s.%s", name, field.Field), field.Selector)
		}
	}
}
