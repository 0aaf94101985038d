package wire

import "google.golang.org/protobuf/encoding/protowire"

const fieldPeerURL protowire.Number = 1

// Peer is one gossiped peer URL.
type Peer struct {
	URL string
}

func (p *Peer) marshal() []byte {
	return appendStringField(nil, fieldPeerURL, p.URL)
}

func unmarshalPeer(data []byte) (*Peer, error) {
	p := &Peer{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldPeerURL || typ != protowire.BytesType {
			return 0
		}
		v, n := consumeString(b)
		if n < 0 {
			return -1
		}
		p.URL = v
		return n
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

const fieldPeerListPeers protowire.Number = 1

// PeerList is the body of GET /peers.
type PeerList struct {
	Peers []*Peer
}

// NewPeerList builds a PeerList from plain URL strings.
func NewPeerList(urls []string) *PeerList {
	pl := &PeerList{}
	for _, u := range urls {
		pl.Peers = append(pl.Peers, &Peer{URL: u})
	}
	return pl
}

// URLs returns the plain URL strings carried by the list.
func (pl *PeerList) URLs() []string {
	urls := make([]string, 0, len(pl.Peers))
	for _, p := range pl.Peers {
		urls = append(urls, p.URL)
	}
	return urls
}

func (pl *PeerList) Marshal() []byte {
	var b []byte
	for _, p := range pl.Peers {
		b = appendMessageField(b, fieldPeerListPeers, p.marshal())
	}
	return b
}

func UnmarshalPeerList(data []byte) (*PeerList, error) {
	pl := &PeerList{}
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != fieldPeerListPeers || typ != protowire.BytesType {
			return 0
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return -1
		}
		p, err := unmarshalPeer(raw)
		if err != nil {
			return -1
		}
		pl.Peers = append(pl.Peers, p)
		return n
	})
	if err != nil {
		return nil, err
	}
	return pl, nil
}
