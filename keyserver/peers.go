package keyserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pondio/pondrelay/wire"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
)

var peersKey = []byte("peers")

// PeerSet owns the persisted union of configured and discovered peer URLs
// (§4.7). Mutations are serialized by a single mutex; reads return a cloned
// snapshot so callers can fan out without holding the lock.
type PeerSet struct {
	mu     chan struct{}
	db     *leveldb.DB
	urls   map[string]struct{}
	logger zerolog.Logger
}

// NewPeerSet loads any persisted peer list from db and seeds it with the
// configured bootstrap peers.
func NewPeerSet(db *leveldb.DB, configured []string) (*PeerSet, error) {
	p := &PeerSet{
		mu:     make(chan struct{}, 1),
		db:     db,
		urls:   make(map[string]struct{}),
		logger: log.With().Str("module", "keyserver_peers").Logger(),
	}
	p.mu <- struct{}{}

	raw, err := db.Get(peersKey, nil)
	if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("keyserver: read persisted peers: %w", err)
	}
	if err == nil {
		list, uerr := wire.UnmarshalPeerList(raw)
		if uerr != nil {
			return nil, fmt.Errorf("keyserver: decode persisted peers: %w", uerr)
		}
		for _, u := range list.URLs() {
			p.urls[u] = struct{}{}
		}
	}
	for _, u := range configured {
		p.urls[u] = struct{}{}
	}
	if err := p.persist(); err != nil {
		return nil, err
	}
	return p, nil
}

// Add registers url as a known peer, reporting whether it was new, and
// persists the updated set.
func (p *PeerSet) Add(url string) (bool, error) {
	<-p.mu
	defer func() { p.mu <- struct{}{} }()

	if _, ok := p.urls[url]; ok {
		return false, nil
	}
	p.urls[url] = struct{}{}
	return true, p.persist()
}

// URLs returns a cloned snapshot of every known peer.
func (p *PeerSet) URLs() []string {
	<-p.mu
	defer func() { p.mu <- struct{}{} }()

	out := make([]string, 0, len(p.urls))
	for u := range p.urls {
		out = append(out, u)
	}
	return out
}

// persist must be called with mu held.
func (p *PeerSet) persist() error {
	list := wire.NewPeerList(p.urlsLocked())
	if err := p.db.Put(peersKey, list.Marshal(), nil); err != nil {
		return fmt.Errorf("keyserver: persist peers: %w", err)
	}
	return nil
}

func (p *PeerSet) urlsLocked() []string {
	out := make([]string, 0, len(p.urls))
	for u := range p.urls {
		out = append(out, u)
	}
	return out
}

func (p *PeerSet) Close() error {
	return p.db.Close()
}

// Inflate asks peerURL for its own peer list, adding every URL the
// response carries. Failures are the caller's responsibility to log.
func (p *PeerSet) Inflate(ctx context.Context, client *http.Client, peerURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/peers", nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyserver: peer %s returned status %d", peerURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	list, err := wire.UnmarshalPeerList(body)
	if err != nil {
		return nil, err
	}

	var added []string
	for _, u := range list.URLs() {
		isNew, aerr := p.Add(u)
		if aerr != nil {
			return added, aerr
		}
		if isNew {
			added = append(added, u)
		}
	}
	return added, nil
}

// inflatePeers queries every currently-known peer for its peer list,
// best-effort, logging failures rather than propagating them (§4.7).
func (s *Service) inflatePeers(ctx context.Context) {
	for _, peerURL := range s.peers.URLs() {
		if _, err := s.peers.Inflate(ctx, s.httpClient, peerURL); err != nil {
			s.logger.Warn().Err(err).Str("peer", peerURL).Msg("peer inflation failed")
		}
	}
}
