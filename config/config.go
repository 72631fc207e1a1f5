// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config reads the daemon settings from flags, the environment and
// an optional config file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/xwallet/chains"
	"github.com/ava-labs/xwallet/market"
	"github.com/ava-labs/xwallet/providers"
)

const (
	VersionKey          = "version"
	ConfigFileKey       = "config-file"
	HTTPHostKey         = "http-host"
	HTTPPortKey         = "http-port"
	DataDirKey          = "data-dir"
	DBTypeKey           = "db-type"
	LogLevelKey         = "log-level"
	ExtensionIDKey      = "extension-id"
	L1XFeeLimitKey      = "l1x-fee-limit"
	ConfirmDelayKey     = "confirm-delay"
	CallConfirmDelayKey = "call-confirm-delay"
	ApprovalTimeoutKey  = "approval-timeout"
	IPFSGatewayKey      = "ipfs-gateway"
	RateEndpointKey     = "rate-endpoint"

	envPrefix = "xwallet"
)

// Database backends.
const (
	LevelDB = "leveldb"
	MemDB   = "memdb"
)

var errUnknownDBType = errors.New("unknown db type")

// rpcKeys maps each rpc-* key to the chain symbol it overrides.
var rpcKeys = map[string]string{
	"rpc-l1x":       "L1X",
	"rpc-ethereum":  "ETH",
	"rpc-polygon":   "MATIC",
	"rpc-binance":   "BNB",
	"rpc-avalanche": "AVAX",
	"rpc-optimism":  "OP",
	"rpc-solana":    "SOL",
}

type Config struct {
	Version bool

	HTTPHost string
	HTTPPort uint16

	DataDir  string
	DBType   string
	LogLevel log.Lvl

	// ExtensionID is the source tag events carry.
	ExtensionID string

	L1XFeeLimit      string
	ConfirmDelay     time.Duration
	CallConfirmDelay time.Duration
	// ApprovalTimeout bounds how long a page waits for the user. Zero
	// waits for as long as the page stays connected.
	ApprovalTimeout time.Duration

	// RPCOverrides replaces mainnet RPCs by chain symbol.
	RPCOverrides map[string]string

	Market market.Config
}

// Address is the host:port the daemon listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}

// Registry builds the chain registry with the configured RPC overrides.
func (c *Config) Registry() *chains.Registry {
	return chains.NewRegistry(c.RPCOverrides)
}

func BuildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("xwallet", flag.ContinueOnError)

	fs.Bool(VersionKey, false, "If true, prints the version and quits")
	fs.String(ConfigFileKey, "", "Path to a config file")

	fs.String(HTTPHostKey, "127.0.0.1", "Address the API listens on")
	fs.Uint(HTTPPortKey, 9650, "Port the API listens on")
	fs.String(DataDirKey, "./data", "Directory of the wallet database")
	fs.String(DBTypeKey, LevelDB, fmt.Sprintf("Database backend, %s or %s", LevelDB, MemDB))
	fs.String(LogLevelKey, "info", "Log level")
	fs.String(ExtensionIDKey, "xwallet", "Source tag carried by outbound events")

	fs.String(L1XFeeLimitKey, providers.DefaultL1XFeeLimit, "Fee limit of L1X transactions")
	fs.Duration(ConfirmDelayKey, 3*time.Second, "Wait before checking an L1X transfer receipt")
	fs.Duration(CallConfirmDelayKey, 5*time.Second, "Wait before checking an L1X contract call receipt")
	fs.Duration(ApprovalTimeoutKey, 0, "How long a page request may wait for the user, 0 for no limit")

	for key, symbol := range rpcKeys {
		fs.String(key, "", fmt.Sprintf("Overrides the mainnet RPC of %s", symbol))
	}
	fs.String(IPFSGatewayKey, market.DefaultIPFSGateway, "Gateway ipfs:// NFT metadata is fetched through")
	fs.String(RateEndpointKey, market.DefaultRateEndpoint, "Token rate endpoint")

	return fs
}

// GetViper binds fs and the XWALLET_* environment, then reads the config
// file if one was named.
func GetViper(fs *flag.FlagSet, args []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	pfs := pflag.NewFlagSet(fs.Name(), pflag.ContinueOnError)
	pfs.AddGoFlagSet(fs)
	if err := pfs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(pfs); err != nil {
		return nil, err
	}

	if file := v.GetString(ConfigFileKey); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("couldn't read config file %s: %w", file, err)
		}
	}
	return v, nil
}

// Load parses args into a Config.
func Load(args []string) (*Config, error) {
	v, err := GetViper(BuildFlagSet(), args)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	level, err := log.LvlFromString(v.GetString(LogLevelKey))
	if err != nil {
		return nil, err
	}
	dbType := strings.ToLower(v.GetString(DBTypeKey))
	if dbType != LevelDB && dbType != MemDB {
		return nil, fmt.Errorf("%w: %q", errUnknownDBType, dbType)
	}

	overrides := make(map[string]string)
	for key, symbol := range rpcKeys {
		if rpc := v.GetString(key); rpc != "" {
			overrides[symbol] = rpc
		}
	}

	m := market.DefaultConfig()
	m.IPFSGateway = v.GetString(IPFSGatewayKey)
	m.RateEndpoint = v.GetString(RateEndpointKey)

	return &Config{
		Version:          v.GetBool(VersionKey),
		HTTPHost:         v.GetString(HTTPHostKey),
		HTTPPort:         uint16(v.GetUint(HTTPPortKey)),
		DataDir:          v.GetString(DataDirKey),
		DBType:           dbType,
		LogLevel:         level,
		ExtensionID:      v.GetString(ExtensionIDKey),
		L1XFeeLimit:      v.GetString(L1XFeeLimitKey),
		ConfirmDelay:     v.GetDuration(ConfirmDelayKey),
		CallConfirmDelay: v.GetDuration(CallConfirmDelayKey),
		ApprovalTimeout:  v.GetDuration(ApprovalTimeoutKey),
		RPCOverrides:     overrides,
		Market:           m,
	}, nil
}
