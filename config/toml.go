package config

import (
	"bytes"
	"path/filepath"
	"text/template"

	tmos "github.com/tendermint/tendermint/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate")
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and writes the given config file if it doesn't exist.
func EnsureRoot(cfg *Config) {
	rootDir := cfg.RootDir
	if err := tmos.EnsureDir(rootDir, DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(filepath.Join(rootDir, defaultConfigDir), DefaultDirPerm); err != nil {
		panic(err.Error())
	}
	if err := tmos.EnsureDir(cfg.DBDir(), DefaultDirPerm); err != nil {
		panic(err.Error())
	}

	if !tmos.FileExists(cfg.ConfigFile()) {
		WriteConfigFile(cfg.ConfigFile(), cfg)
	}
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath.
func WriteConfigFile(configFilePath string, config *Config) {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}

	tmos.MustWriteFile(configFilePath, buffer.Bytes(), 0644)
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# TCP or UNIX socket address the consensus engine connects to
proxy_app = "{{ .BaseConfig.ProxyApp }}"

# Size of the per connection read buffer, in bytes
read_buffer_size = {{ .BaseConfig.ReadBufferSize }}

# Where the block height is kept: "file" or "goleveldb"
height_backend = "{{ .BaseConfig.HeightBackend }}"

# Height record file, relative to the home directory
height_file = "{{ js .BaseConfig.HeightFile }}"

# Database directory, relative to the home directory
db_dir = "{{ js .BaseConfig.DBPath }}"

# Output level for logging: "debug", "info", "error" or "none"
log_level = "{{ .BaseConfig.LogLevel }}"

#######################################################################
###                      Request Lanes Options                      ###
#######################################################################
[lanes]

# Pending CheckTx requests before new ones are rejected
mempool_queue_size = {{ .Lanes.MempoolQueueSize }}

# Pending Info/Query/Echo/SetOption requests before new ones are rejected
info_queue_size = {{ .Lanes.InfoQueueSize }}

# Info lane requests per second, and burst size
info_rate_limit = {{ .Lanes.InfoRateLimit }}
info_rate_burst = {{ .Lanes.InfoRateBurst }}

#######################################################################
###                  Status and Metrics RPC Options                 ###
#######################################################################
[rpc]

# TCP or UNIX socket address for the RPC server to listen on.
# Leave empty to disable.
laddr = "{{ .RPC.ListenAddress }}"
`
