package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"

	"github.com/pondio/pondrelay/config"
	"github.com/pondio/pondrelay/relay"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

const serverIdentity = "relay"

func run(ctx context.Context, cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	svc, err := relay.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to build relay service: %w", err)
	}
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start relay service: %w", err)
	}

	host, port, splitErr := net.SplitHostPort(cfg.Bind)
	if splitErr != nil {
		log.Info().Str("bind", cfg.Bind).Msg("relay listening")
	} else {
		log.Info().Str("host", host).Int("port", cast.ToInt(port)).Msg("relay listening")
	}

	<-ctx.Done()
	return svc.Stop()
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		bind       string
		rpcAddr    string
		rpcUser    string
		rpcPass    string
		network    string
		dbPath     string
		hmacSecret string
		logLevel   string
		pretty     bool
	)

	cmd := &cobra.Command{
		Use:   serverIdentity,
		Short: "Run the pondrelay message relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			initLog(logLevel, pretty)

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.Bind = bind
			}
			if rpcAddr != "" {
				cfg.Bitcoin.RPCAddr = rpcAddr
			}
			if rpcUser != "" {
				cfg.Bitcoin.RPCUser = rpcUser
			}
			if rpcPass != "" {
				cfg.Bitcoin.RPCPassword = rpcPass
			}
			if network != "" {
				cfg.Bitcoin.Network = network
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if hmacSecret != "" {
				cfg.HMACSecret = hmacSecret
			}
			if cfg.HMACSecret == "" {
				return fmt.Errorf("hmac secret is required: set --hmac-secret or hmac_secret in config")
			}

			return run(context.Background(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config.json or a directory containing one")
	flags.StringVar(&bind, "bind", "", "address to listen on, overrides config")
	flags.StringVar(&rpcAddr, "rpc-addr", "", "bitcoin node RPC address, overrides config")
	flags.StringVar(&rpcUser, "rpc-user", "", "bitcoin node RPC username, overrides config")
	flags.StringVar(&rpcPass, "rpc-password", "", "bitcoin node RPC password, overrides config")
	flags.StringVar(&network, "network", "", "bitcoin network (mainnet, testnet, regtest), overrides config")
	flags.StringVar(&dbPath, "db-path", "", "leveldb data directory, overrides config")
	flags.StringVar(&hmacSecret, "hmac-secret", "", "HMAC signing secret for bearer PoP tokens")
	flags.StringVarP(&logLevel, "log-level", "l", "info", "log level")
	flags.BoolVarP(&pretty, "pretty-log", "p", false, "enable unstructured prettified logging")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("relay exited")
	}
}

func initLog(level string, pretty bool) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Msgf("%s is not a valid log-level, falling back to 'info'", level)
		l = zerolog.InfoLevel
	}
	out := os.Stdout
	zerolog.SetGlobalLevel(l)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Str("service", serverIdentity).Logger()
		return
	}
	log.Logger = log.Output(out).With().Timestamp().Str("service", serverIdentity).Logger()
}
