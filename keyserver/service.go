// Package keyserver implements the keyserver core (C10): signed address
// metadata storage fronted by an HTTP API, with peer gossip and
// chain-commitment-gated writes that rebroadcast on every new block.
package keyserver

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/pondio/pondrelay/bitcoin"
	"github.com/pondio/pondrelay/config"
	"github.com/pondio/pondrelay/httpmw"
	"github.com/pondio/pondrelay/pop"
	"github.com/pondio/pondrelay/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// blockPollInterval is how often WatchBlocks checks the node for a new tip.
const blockPollInterval = 15 * time.Second

// Service wires together the keyserver's HTTP surface and its
// collaborators: the metadata store, the topic-indexed message store, the
// node client, the peer set, and the block-triggered rebroadcast loop.
type Service struct {
	cfg        config.Config
	meta       *store.Store
	topics     *store.TopicStore
	node       *bitcoin.Client
	commitment *pop.CommitmentScheme
	peers      *PeerSet
	tokens     *TokenCache
	httpClient *http.Client
	router     *mux.Router
	hs         *http.Server
	logger     zerolog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewService(cfg config.Config) (*Service, error) {
	metaDB, err := store.NewLevelDB(dbSubPath(cfg.DBPath, "meta"))
	if err != nil {
		return nil, fmt.Errorf("keyserver: open meta store: %w", err)
	}
	payloadsDB, err := store.NewLevelDB(dbSubPath(cfg.DBPath, "payloads"))
	if err != nil {
		return nil, fmt.Errorf("keyserver: open payloads store: %w", err)
	}
	messagesDB, err := store.NewLevelDB(dbSubPath(cfg.DBPath, "messages"))
	if err != nil {
		return nil, fmt.Errorf("keyserver: open messages store: %w", err)
	}
	peersDB, err := store.NewLevelDB(dbSubPath(cfg.DBPath, "peers"))
	if err != nil {
		return nil, fmt.Errorf("keyserver: open peers store: %w", err)
	}

	node, err := bitcoin.NewClient(cfg.Bitcoin)
	if err != nil {
		return nil, fmt.Errorf("keyserver: connect node: %w", err)
	}

	peers, err := NewPeerSet(peersDB, cfg.Peers)
	if err != nil {
		return nil, fmt.Errorf("keyserver: load peer set: %w", err)
	}

	s := &Service{
		cfg:        cfg,
		meta:       store.New(metaDB),
		topics:     store.NewTopicStore(payloadsDB, messagesDB),
		node:       node,
		commitment: pop.NewCommitmentScheme(node),
		peers:      peers,
		tokens:     NewTokenCache(),
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     log.With().Str("module", "keyserver_service").Logger(),
		stopChan:   make(chan struct{}),
	}
	s.router = s.registerRoutes()
	s.hs = &http.Server{Addr: cfg.Bind, Handler: s.router}
	return s, nil
}

func (s *Service) registerRoutes() *mux.Router {
	r := mux.NewRouter()
	r.Use(httpmw.RequestID(s.logger))
	r.HandleFunc("/keys/{addr}", s.handleGetKey).Methods(http.MethodGet)
	r.HandleFunc("/keys/{addr}", s.handlePutKey).Methods(http.MethodPut)
	r.HandleFunc("/peers", s.handleGetPeers).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handleGetMessagesByTopic).Methods(http.MethodGet).Queries("topic", "{topic}")
	r.HandleFunc("/messages/{digest}", s.handleGetMessageByDigest).Methods(http.MethodGet)
	r.HandleFunc("/messages", s.handlePutMessage).Methods(http.MethodPut)
	r.HandleFunc("/payments", s.handlePayments).Methods(http.MethodPost)
	return r
}

func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-s.stopChan
		cancel()
	}()

	s.inflatePeers(ctx)

	s.wg.Add(1)
	go s.watchBlocks(ctx)

	go func() {
		if err := s.hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	s.logger.Info().Str("bind", s.cfg.Bind).Msg("keyserver started")
	return nil
}

func (s *Service) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.hs.Shutdown(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to shut down http server")
	}
	if err := s.meta.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close meta store")
	}
	if err := s.topics.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close topic store")
	}
	if err := s.peers.Close(); err != nil {
		s.logger.Error().Err(err).Msg("failed to close peer store")
	}
	return s.node.Close()
}

// dbSubPath builds a per-collaborator data directory, preserving the
// in-memory sentinel ("" selects a goleveldb MemStorage) instead of
// resolving it to a relative "name" directory.
func dbSubPath(base, name string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(base, name)
}
