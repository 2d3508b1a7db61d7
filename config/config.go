package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tmnet "github.com/tendermint/tendermint/libs/net"
)

const (
	// HeightBackendFile keeps the height record in a single file.
	HeightBackendFile = "file"
	// HeightBackendGoLevelDB keeps the height record in a goleveldb database.
	HeightBackendGoLevelDB = "goleveldb"

	defaultConfigDir  = "config"
	defaultDataDir    = "data"
	defaultConfigName = "config.toml"
	defaultHeightName = "abci.height"
)

var (
	// DefaultHomeDir is the home directory below $HOME.
	DefaultHomeDir = ".starkmint"

	defaultConfigFilePath = filepath.Join(defaultConfigDir, defaultConfigName)
	defaultHeightFilePath = filepath.Join(defaultDataDir, defaultHeightName)
)

// Config defines the top level configuration for a starkmint node.
type Config struct {
	BaseConfig `mapstructure:",squash"`

	Lanes *LanesConfig `mapstructure:"lanes"`
	RPC   *RPCConfig   `mapstructure:"rpc"`
}

// DefaultConfig returns a default configuration for a starkmint node.
func DefaultConfig() *Config {
	return &Config{
		BaseConfig: DefaultBaseConfig(),
		Lanes:      DefaultLanesConfig(),
		RPC:        DefaultRPCConfig(),
	}
}

// TestConfig returns a configuration that can be used for testing.
func TestConfig() *Config {
	return &Config{
		BaseConfig: TestBaseConfig(),
		Lanes:      TestLanesConfig(),
		RPC:        TestRPCConfig(),
	}
}

// SetRoot sets the RootDir for all Config structs.
func (cfg *Config) SetRoot(root string) *Config {
	cfg.BaseConfig.RootDir = root
	return cfg
}

// ValidateBasic performs basic validation and returns an error if any check
// fails.
func (cfg *Config) ValidateBasic() error {
	if err := cfg.BaseConfig.ValidateBasic(); err != nil {
		return err
	}
	if err := cfg.Lanes.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [lanes] section: %w", err)
	}
	if err := cfg.RPC.ValidateBasic(); err != nil {
		return fmt.Errorf("error in [rpc] section: %w", err)
	}
	return nil
}

//-----------------------------------------------------------------------------
// BaseConfig

// BaseConfig defines the base configuration for a starkmint node.
type BaseConfig struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// TCP or UNIX socket address the consensus engine connects to
	ProxyApp string `mapstructure:"proxy_app"`

	// Size of the per connection read buffer, in bytes
	ReadBufferSize int `mapstructure:"read_buffer_size"`

	// Where the block height is kept: "file" or "goleveldb"
	HeightBackend string `mapstructure:"height_backend"`

	// Height record file, relative to the root directory
	HeightFile string `mapstructure:"height_file"`

	// Database directory, relative to the root directory
	DBPath string `mapstructure:"db_dir"`

	// Output level for logging
	LogLevel string `mapstructure:"log_level"`
}

// DefaultBaseConfig returns a default base configuration.
func DefaultBaseConfig() BaseConfig {
	return BaseConfig{
		ProxyApp:       "tcp://127.0.0.1:26658",
		ReadBufferSize: 1 << 20,
		HeightBackend:  HeightBackendFile,
		HeightFile:     defaultHeightFilePath,
		DBPath:         defaultDataDir,
		LogLevel:       "info",
	}
}

// TestBaseConfig returns a base configuration for testing.
func TestBaseConfig() BaseConfig {
	cfg := DefaultBaseConfig()
	cfg.ProxyApp = "tcp://127.0.0.1:36658"
	cfg.ReadBufferSize = 64 << 10
	cfg.LogLevel = "debug"
	return cfg
}

// ConfigFile returns the full path to the config.toml file.
func (cfg BaseConfig) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

// HeightFilePath returns the full path to the height record file.
func (cfg BaseConfig) HeightFilePath() string {
	return rootify(cfg.HeightFile, cfg.RootDir)
}

// DBDir returns the full path to the database directory.
func (cfg BaseConfig) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// ValidateBasic performs basic validation.
func (cfg BaseConfig) ValidateBasic() error {
	if cfg.ReadBufferSize <= 0 {
		return errors.New("read_buffer_size must be positive")
	}
	switch cfg.HeightBackend {
	case HeightBackendFile, HeightBackendGoLevelDB:
	default:
		return fmt.Errorf("unknown height_backend %q", cfg.HeightBackend)
	}
	if cfg.HeightBackend == HeightBackendFile && cfg.HeightFile == "" {
		return errors.New("height_file can't be empty")
	}
	return validateAddress("proxy_app", cfg.ProxyApp)
}

//-----------------------------------------------------------------------------
// LanesConfig

// LanesConfig sets the capacities of the request lanes.
type LanesConfig struct {
	// Pending CheckTx requests before new ones are shed
	MempoolQueueSize int `mapstructure:"mempool_queue_size"`

	// Pending Info/Query/Echo/SetOption requests before new ones are shed
	InfoQueueSize int `mapstructure:"info_queue_size"`

	// Info lane requests per second
	InfoRateLimit float64 `mapstructure:"info_rate_limit"`

	// Info lane burst size
	InfoRateBurst int `mapstructure:"info_rate_burst"`
}

func DefaultLanesConfig() *LanesConfig {
	return &LanesConfig{
		MempoolQueueSize: 10,
		InfoQueueSize:    100,
		InfoRateLimit:    50,
		InfoRateBurst:    50,
	}
}

func TestLanesConfig() *LanesConfig {
	return DefaultLanesConfig()
}

func (cfg *LanesConfig) ValidateBasic() error {
	if cfg.MempoolQueueSize <= 0 {
		return errors.New("mempool_queue_size must be positive")
	}
	if cfg.InfoQueueSize <= 0 {
		return errors.New("info_queue_size must be positive")
	}
	if cfg.InfoRateLimit <= 0 {
		return errors.New("info_rate_limit must be positive")
	}
	if cfg.InfoRateBurst <= 0 {
		return errors.New("info_rate_burst must be positive")
	}
	return nil
}

//-----------------------------------------------------------------------------
// RPCConfig

// RPCConfig defines the optional status and metrics JSON-RPC server.
type RPCConfig struct {
	// TCP or UNIX socket address for the RPC server to listen on.
	// Empty disables the server.
	ListenAddress string `mapstructure:"laddr"`
}

func DefaultRPCConfig() *RPCConfig {
	return &RPCConfig{ListenAddress: ""}
}

func TestRPCConfig() *RPCConfig {
	return &RPCConfig{ListenAddress: "tcp://127.0.0.1:36657"}
}

func (cfg *RPCConfig) ValidateBasic() error {
	if cfg.ListenAddress == "" {
		return nil
	}
	return validateAddress("laddr", cfg.ListenAddress)
}

func (cfg *RPCConfig) IsEnabled() bool {
	return cfg.ListenAddress != ""
}

//-----------------------------------------------------------------------------
// Utils

func validateAddress(field, addr string) error {
	proto, address := tmnet.ProtocolAndAddress(addr)
	if address == "" {
		return fmt.Errorf("%s can't be empty", field)
	}
	switch strings.ToLower(proto) {
	case "tcp", "unix":
		return nil
	default:
		return fmt.Errorf("%s: unsupported protocol %q", field, proto)
	}
}

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
