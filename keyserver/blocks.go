package keyserver

import (
	"bytes"
	"context"
	"net/http"

	"github.com/pondio/pondrelay/address"
)

// watchBlocks drains the token cache on every new block and rebroadcasts
// the affected metadata to every known peer, mirroring the teacher's
// processBitcoinBlocks lifecycle: a cancellable loop guarded by wg so Stop
// can wait for it to exit cleanly.
func (s *Service) watchBlocks(ctx context.Context) {
	defer s.wg.Done()

	events := s.node.WatchBlocks(ctx, blockPollInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug().Int64("height", ev.Height).Msg("new block observed")
			s.rebroadcast(ctx)
		}
	}
}

// rebroadcast pushes every address written since the last drain to every
// known peer, best-effort (§4.7).
func (s *Service) rebroadcast(ctx context.Context) {
	entries := s.tokens.Drain()
	if len(entries) == 0 {
		return
	}
	peers := s.peers.URLs()
	for _, e := range entries {
		raw, err := s.meta.GetByDigest(e.addr, nsMeta, e.addr)
		if err != nil {
			s.logger.Warn().Err(err).Int64("written_at_height", e.height).Msg("rebroadcast: metadata missing for cached token")
			continue
		}
		for _, peerURL := range peers {
			if err := s.pushToPeer(ctx, peerURL, e.addr, e.token, raw); err != nil {
				s.logger.Warn().Err(err).Str("peer", peerURL).Msg("rebroadcast failed")
			}
		}
	}
}

func (s *Service) pushToPeer(ctx context.Context, peerURL string, addr []byte, token string, raw []byte) error {
	url := peerURL + "/keys/" + address.Encode(addr)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Sample-Peers", "false")
	req.Header.Set("Authorization", "POP "+token)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
