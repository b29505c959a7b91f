package pagination

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mode selects the remote pagination protocol.
type Mode string

const (
	// ModeStandard walks the collection with page/size query parameters.
	ModeStandard Mode = "standard"

	// ModeScroll walks the collection with server-issued continuation tokens.
	ModeScroll Mode = "scroll"
)

// ParseMode converts a string into a Mode.
// An empty string selects ModeStandard.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeScroll:
		return ModeScroll, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// Default configuration values.
const (
	DefaultMaxPageSize     = 1000
	DefaultMaxTotalResults = 10000
	DefaultScrollTimeout   = "1m"
	DefaultPageSize        = 10
)

// Config holds pagination engine configuration.
// A Config is never mutated by the engine and can be shared between
// concurrent enumerations.
type Config struct {
	// Mode selects the pagination protocol
	Mode Mode

	// MaxPageSize is the ceiling for a single page
	MaxPageSize int

	// MaxTotalResults is the ceiling for page*size, checked before any fetch
	MaxTotalResults int

	// ScrollTimeout is forwarded to the remote scroll protocol as-is
	ScrollTimeout string

	// EnableAutoScroll continues across scroll pages without caller involvement
	EnableAutoScroll bool

	// PreserveOrder keeps batches and items in yield order when aggregating
	PreserveOrder bool

	// DefaultPageSize replaces a requested size below 1
	DefaultPageSize int
}

// DefaultConfig returns the default pagination configuration.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeStandard,
		MaxPageSize:      DefaultMaxPageSize,
		MaxTotalResults:  DefaultMaxTotalResults,
		ScrollTimeout:    DefaultScrollTimeout,
		EnableAutoScroll: true,
		PreserveOrder:    true,
		DefaultPageSize:  DefaultPageSize,
	}
}

// Validate checks the configuration for values the engine cannot work with.
func (c Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("max_page_size must be >= 1 (got %d)", c.MaxPageSize)
	}
	if c.MaxTotalResults < 1 {
		return fmt.Errorf("max_total_results must be >= 1 (got %d)", c.MaxTotalResults)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default_page_size must be between 1 and %d (got %d)", c.MaxPageSize, c.DefaultPageSize)
	}
	return nil
}

// LoadFromEnv loads pagination config from environment variables.
// Supported environment variables:
//   - PAGINATION_MODE: standard or scroll
//   - PAGINATION_MAX_PAGE_SIZE
//   - PAGINATION_MAX_TOTAL_RESULTS
//   - PAGINATION_SCROLL_TIMEOUT
//   - PAGINATION_AUTO_SCROLL
//   - PAGINATION_DEFAULT_PAGE_SIZE
//
// Unset or unparsable variables keep their DefaultConfig value.
func LoadFromEnv() (Config, error) {
	cfg := DefaultConfig()

	mode, err := ParseMode(os.Getenv("PAGINATION_MODE"))
	if err != nil {
		return cfg, err
	}
	cfg.Mode = mode
	cfg.MaxPageSize = getEnvAsInt("PAGINATION_MAX_PAGE_SIZE", cfg.MaxPageSize)
	cfg.MaxTotalResults = getEnvAsInt("PAGINATION_MAX_TOTAL_RESULTS", cfg.MaxTotalResults)
	cfg.DefaultPageSize = getEnvAsInt("PAGINATION_DEFAULT_PAGE_SIZE", cfg.DefaultPageSize)
	if v := os.Getenv("PAGINATION_SCROLL_TIMEOUT"); v != "" {
		cfg.ScrollTimeout = v
	}
	if v, err := strconv.ParseBool(os.Getenv("PAGINATION_AUTO_SCROLL")); err == nil {
		cfg.EnableAutoScroll = v
	}

	return cfg, cfg.Validate()
}

func getEnvAsInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
