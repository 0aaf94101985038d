package keyserver

import "sync"

// tokenEntry is one address whose metadata was written under a freshly
// minted PoP token, pending rebroadcast to peers on the next block.
type tokenEntry struct {
	addr   []byte
	token  string
	height int64
}

// TokenCache accumulates addresses written since the last observed block,
// so watchBlocks knows what to push to peers on the next tip (§4.7).
type TokenCache struct {
	mu      sync.Mutex
	entries []tokenEntry
}

func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Insert records that addr was written with token at the given block
// height.
func (c *TokenCache) Insert(addr []byte, token string, height int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body := make([]byte, len(addr))
	copy(body, addr)
	c.entries = append(c.entries, tokenEntry{addr: body, token: token, height: height})
}

// Drain returns every entry accumulated so far and clears the cache.
func (c *TokenCache) Drain() []tokenEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.entries
	c.entries = nil
	return out
}
