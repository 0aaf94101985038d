package bitcoin

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pondio/pondrelay/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is a thin async wrapper around a Bitcoin-daemon-compatible node,
// exposing the three RPC methods the handlers depend on (send_tx,
// get_new_addr, get_raw_transaction) plus the block-count and block-hash
// calls the block poller uses.
type Client struct {
	cfg    config.Bitcoin
	client *rpc.Client
	logger zerolog.Logger
}

// NewClient dials the configured node over HTTP JSON-RPC with basic auth.
func NewClient(cfg config.Bitcoin) (*Client, error) {
	authFn := func(h http.Header) error {
		auth := base64.StdEncoding.EncodeToString([]byte(cfg.RPCUser + ":" + cfg.RPCPassword))
		h.Set("Authorization", fmt.Sprintf("Basic %s", auth))
		return nil
	}
	c, err := rpc.DialOptions(context.Background(), cfg.RPCAddr, rpc.WithHTTPAuth(authFn))
	if err != nil {
		return nil, fmt.Errorf("bitcoin: dial node rpc: %w", err)
	}
	return &Client{
		cfg:    cfg,
		client: c,
		logger: log.With().Str("module", "bitcoin_client").Logger(),
	}, nil
}

// SendTx broadcasts a raw transaction, returning its txid.
func (c *Client) SendTx(ctx context.Context, rawTx []byte) (string, error) {
	var txid string
	err := c.client.CallContext(ctx, &txid, "sendrawtransaction", hex.EncodeToString(rawTx))
	return txid, extractRPCError(err)
}

// GetNewAddr asks the node to mint a fresh P2PKH address, used to build the
// ephemeral invoice output for relay payments.
func (c *Client) GetNewAddr(ctx context.Context) (string, error) {
	var addr string
	err := c.client.CallContext(ctx, &addr, "getnewaddress")
	return addr, extractRPCError(err)
}

// GetRawTransaction fetches the raw bytes of a confirmed transaction, used
// by the keyserver to validate chain-commitment PoP tokens.
func (c *Client) GetRawTransaction(ctx context.Context, txid string) ([]byte, error) {
	var hexTx string
	err := c.client.CallContext(ctx, &hexTx, "getrawtransaction", txid, false)
	if err != nil {
		return nil, extractRPCError(err)
	}
	raw, err := hex.DecodeString(hexTx)
	if err != nil {
		return nil, fmt.Errorf("bitcoin: decode getrawtransaction hex: %w", err)
	}
	return raw, nil
}

// GetBlockHash returns the hash of the block at the given height.
func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	err := c.client.CallContext(ctx, &hash, "getblockhash", height)
	return hash, extractRPCError(err)
}

// GetBlockCount returns the node's current chain tip height.
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	var height int64
	err := c.client.CallContext(ctx, &height, "getblockcount")
	return height, extractRPCError(err)
}

// ShouldBackoff reports whether err indicates a transient "block not ready
// yet" condition that merits a short retry rather than logging as an error.
func (c *Client) ShouldBackoff(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "Block not available") || strings.Contains(err.Error(), "Block height out of range") {
		return true
	}
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCBlockNotFound
}

func (c *Client) Close() error {
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// extractRPCError pulls a btcjson.RPCError out of the go-ethereum rpc
// client's "<http status>: <json body>" error text, the same best-effort
// parse the teacher's bitcoin client performs.
func extractRPCError(err error) error {
	if err == nil {
		return nil
	}
	parts := strings.SplitN(err.Error(), ": ", 2)
	if len(parts) != 2 {
		return err
	}
	var response struct {
		Error struct {
			Code    btcjson.RPCErrorCode `json:"code"`
			Message string               `json:"message"`
		} `json:"error"`
	}
	if jsonErr := json.Unmarshal([]byte(parts[1]), &response); jsonErr != nil {
		return err
	}
	return btcjson.NewRPCError(response.Error.Code, response.Error.Message)
}
