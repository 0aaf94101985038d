// Package relay implements the relay core (C11): the end-to-end encrypted
// message/feed/profile store fronted by an HTTP+WebSocket API.
package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/bus"
	"github.com/pondio/pondrelay/config"
	"github.com/pondio/pondrelay/httpmw"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/stamp"
	"github.com/pondio/pondrelay/store"
	"github.com/pondio/pondrelay/wallet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service wires together the relay's HTTP surface and its collaborators:
// the message store, the bus, the wallet, and the node client.
type Service struct {
	cfg    config.Config
	store  *store.Store
	bus    *bus.Bus
	hmac   *pop.HMACScheme
	wallet *wallet.Wallet
	stampV *stamp.Verifier
	node   *bitcoin.Client
	router *mux.Router
	hs     *http.Server
	logger zerolog.Logger
}

func NewService(cfg config.Config) (*Service, error) {
	db, err := store.NewLevelDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("relay: open store: %w", err)
	}
	node, err := bitcoin.NewClient(cfg.Bitcoin)
	if err != nil {
		return nil, fmt.Errorf("relay: connect node: %w", err)
	}

	s := &Service{
		cfg:    cfg,
		store:  store.New(db),
		bus:    bus.New(),
		hmac:   pop.NewHMACScheme([]byte(cfg.HMACSecret)),
		wallet: wallet.New(time.Duration(cfg.Wallet.TimeoutMS) * time.Millisecond),
		stampV: stamp.NewVerifier(node, cfg.Bitcoin.Network),
		node:   node,
		logger: log.With().Str("module", "relay_service").Logger(),
	}
	s.router = s.registerRoutes()
	s.hs = &http.Server{Addr: cfg.Bind, Handler: s.router}
	return s, nil
}

func (s *Service) registerRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(httpmw.RequestID(s.logger))
	r.HandleFunc("/profiles/{addr}", s.handleGetProfile).Methods(http.MethodGet)
	r.HandleFunc("/profiles/{addr}", s.handlePutProfile).Methods(http.MethodPut)

	r.HandleFunc("/messages/{addr}", s.handleGetMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{addr}", s.handlePutMessages).Methods(http.MethodPut)
	r.HandleFunc("/messages/{addr}", s.handleDeleteMessages).Methods(http.MethodDelete)

	r.HandleFunc("/feeds/{addr}", s.handleGetFeed).Methods(http.MethodGet)
	r.HandleFunc("/feeds/{addr}", s.handlePutFeed).Methods(http.MethodPut)
	r.HandleFunc("/feeds/{addr}", s.handleDeleteFeed).Methods(http.MethodDelete)

	r.HandleFunc("/payloads/{addr}", s.handleGetPayloads).Methods(http.MethodGet)

	r.HandleFunc("/ws/messages/{addr}", s.handleWSMessages).Methods(http.MethodGet)
	r.HandleFunc("/ws/feeds/{addr}", s.handleWSFeeds).Methods(http.MethodGet)

	r.HandleFunc("/payments", s.handlePayments).Methods(http.MethodPost)
	return r
}

func (s *Service) Start() error {
	go func() {
		if err := s.hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	s.logger.Info().Str("bind", s.cfg.Bind).Msg("relay service started")
	return nil
}

func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.hs.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to shut down http server")
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close store")
	}
	return s.node.Close()
}
