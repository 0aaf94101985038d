// Package config loads the settings shared by the keyserver and relay
// binaries: bind addresses, the node RPC endpoint, store path, PoP secrets
// and the size/timeout limits from the original settings table.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Bitcoin holds the node RPC connection the keyserver and relay both need
// for C3 (send_tx / get_new_addr / get_raw_transaction) and block events.
type Bitcoin struct {
	RPCAddr     string `mapstructure:"rpc_addr" json:"rpc_addr"`
	RPCUser     string `mapstructure:"rpc_user" json:"rpc_user"`
	RPCPassword string `mapstructure:"rpc_password" json:"rpc_password"`
	Network     string `mapstructure:"network" json:"network"`
}

// Limits bounds request/response sizes, mirroring the original's
// message/filter/payment size caps.
type Limits struct {
	MessageSize        uint64 `mapstructure:"message_size" json:"message_size"`
	TopicSize           uint64 `mapstructure:"topic_size" json:"topic_size"`
	PaymentSize         uint64 `mapstructure:"payment_size" json:"payment_size"`
	WebsocketPayloadCap uint64 `mapstructure:"websocket_payload_cap" json:"websocket_payload_cap"`
}

// Wallet configures C7's ephemeral expected-output table.
type Wallet struct {
	TimeoutMS uint64 `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// Payment configures the BIP70 invoices minted by relay/keyserver.
type Payment struct {
	TokenFeeSats uint64 `mapstructure:"token_fee_sats" json:"token_fee_sats"`
	Memo         string `mapstructure:"memo" json:"memo"`
	PaymentURL   string `mapstructure:"payment_url" json:"payment_url"`
}

// Config is the settings struct for both the keyserver and relay processes;
// each binary only reads the fields relevant to its role.
type Config struct {
	Bind            string   `mapstructure:"bind" json:"bind"`
	DBPath          string   `mapstructure:"db_path" json:"db_path"`
	Bitcoin         Bitcoin  `mapstructure:"bitcoin" json:"bitcoin"`
	Limits          Limits   `mapstructure:"limits" json:"limits"`
	Wallet          Wallet   `mapstructure:"wallet" json:"wallet"`
	Payment         Payment  `mapstructure:"payment" json:"payment"`
	HMACSecret      string   `mapstructure:"hmac_secret" json:"hmac_secret"`
	PingIntervalSec uint64   `mapstructure:"ping_interval_sec" json:"ping_interval_sec"`
	Peers           []string `mapstructure:"peers" json:"peers"`
}

const (
	defaultBind            = "127.0.0.1:8080"
	defaultRPCAddr          = "http://127.0.0.1:18443"
	defaultRPCUser          = "user"
	defaultRPCPassword      = "password"
	defaultNetwork          = "regtest"
	defaultDBPath           = ".pondrelay/db"
	defaultPingIntervalSec  = 10
	defaultMessageLimit     = 1024 * 1024 * 20 // 20MB
	defaultTopicLimit       = 1024 * 512       // 512KB
	defaultPaymentLimit     = 1024 * 3         // 3KB
	defaultWebsocketPayload = 1024 * 16        // 16KB, beyond which live pushes are truncated
	defaultWalletTimeoutMS  = 1_000 * 60       // 60 seconds
	defaultTokenFeeSats     = 100_000
	defaultMemo             = "Thanks for your custom!"
)

// Defaults returns the baseline configuration, matching the values the
// original implementation's settings table pinned.
func Defaults() Config {
	return Config{
		Bind:   defaultBind,
		DBPath: defaultDBPath,
		Bitcoin: Bitcoin{
			RPCAddr:     defaultRPCAddr,
			RPCUser:     defaultRPCUser,
			RPCPassword: defaultRPCPassword,
			Network:     defaultNetwork,
		},
		Limits: Limits{
			MessageSize:         defaultMessageLimit,
			TopicSize:           defaultTopicLimit,
			PaymentSize:         defaultPaymentLimit,
			WebsocketPayloadCap: defaultWebsocketPayload,
		},
		Wallet: Wallet{TimeoutMS: defaultWalletTimeoutMS},
		Payment: Payment{
			TokenFeeSats: defaultTokenFeeSats,
			Memo:         defaultMemo,
			PaymentURL:   "/payments",
		},
		PingIntervalSec: defaultPingIntervalSec,
	}
}

// Load reads configuration from the given path (a config.json file, or a
// directory containing one) over the defaults, then applies environment
// overrides. An empty path looks for config.json in the working directory.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("json")
	v.AutomaticEnv()

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return cfg, fmt.Errorf("error accessing config path %s: %w", path, err)
		}
		if info.IsDir() {
			v.SetConfigName("config")
			v.AddConfigPath(path)
		} else {
			v.SetConfigFile(path)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("bind", cfg.Bind)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("bitcoin.rpc_addr", cfg.Bitcoin.RPCAddr)
	v.SetDefault("bitcoin.rpc_user", cfg.Bitcoin.RPCUser)
	v.SetDefault("bitcoin.rpc_password", cfg.Bitcoin.RPCPassword)
	v.SetDefault("bitcoin.network", cfg.Bitcoin.Network)
	v.SetDefault("limits.message_size", cfg.Limits.MessageSize)
	v.SetDefault("limits.topic_size", cfg.Limits.TopicSize)
	v.SetDefault("limits.payment_size", cfg.Limits.PaymentSize)
	v.SetDefault("limits.websocket_payload_cap", cfg.Limits.WebsocketPayloadCap)
	v.SetDefault("wallet.timeout_ms", cfg.Wallet.TimeoutMS)
	v.SetDefault("payment.token_fee_sats", cfg.Payment.TokenFeeSats)
	v.SetDefault("payment.memo", cfg.Payment.Memo)
	v.SetDefault("payment.payment_url", cfg.Payment.PaymentURL)
	v.SetDefault("ping_interval_sec", cfg.PingIntervalSec)
}
