package keyserver

import (
	"net/http"

	"github.com/pondio/pondrelay/wire"
)

// handleGetPeers implements GET /peers: the locally known peer set.
func (s *Service) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	list := wire.NewPeerList(s.peers.URLs())
	writeBinary(w, http.StatusOK, list.Marshal())
}
