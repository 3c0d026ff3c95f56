package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/peer"
	"github.com/google/uuid"
)

// AddressError is returned when a peer address can't be turned into a
// network endpoint.
type AddressError struct {
	Address string
	Err     error
}

// Error implements the error interface.
func (ae *AddressError) Error() string {
	return fmt.Sprintf("invalid peer address %q: %s", ae.Address, ae.Err)
}

// Unwrap provides access to the underlying parse failure.
func (ae *AddressError) Unwrap() error {
	return ae.Err
}

// IsAddressError checks if an error of type AddressError exists.
func IsAddressError(err error) bool {
	var ae *AddressError
	return errors.As(err, &ae)
}

// Endpoint parses the peer address into the host:port the client dials.
func Endpoint(address string) (string, error) {
	hostPort := peer.HostPort(address)

	host, port, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", &AddressError{Address: address, Err: err}
	}

	if host == "" {
		return "", &AddressError{Address: address, Err: errors.New("missing host")}
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return "", &AddressError{Address: address, Err: fmt.Errorf("invalid port %q", port)}
	}

	return net.JoinHostPort(host, port), nil
}

// =============================================================================

// Client issues procedure calls to exactly one peer.
type Client struct {
	address string
	url     string
	http    *http.Client
}

// NewClient constructs a client bound to the peer address. A zero timeout
// leaves the call deadline to the context.
func NewClient(address string, timeout time.Duration) (*Client, error) {
	hostPort, err := Endpoint(address)
	if err != nil {
		return nil, err
	}

	cln := Client{
		address: address,
		url:     "http://" + hostPort + Path,
		http:    &http.Client{Timeout: timeout},
	}

	return &cln, nil
}

// Address returns the peer address the client is bound to.
func (c *Client) Address() string {
	return c.address
}

// Ping checks the peer is alive.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	var alive bool
	if err := c.call(ctx, ProcPing, nil, &alive); err != nil {
		return false, err
	}
	return alive, nil
}

// GetBlockchain returns the peer's blocks.
func (c *Client) GetBlockchain(ctx context.Context) ([]database.Block, error) {
	var blocks []database.Block
	if err := c.call(ctx, ProcGetBlockchain, nil, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// GetTransactions returns the peer's confirmed transactions.
func (c *Client) GetTransactions(ctx context.Context) ([]database.Transaction, error) {
	var txs []database.Transaction
	if err := c.call(ctx, ProcGetTransactions, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetUntransactions returns the peer's pending transactions.
func (c *Client) GetUntransactions(ctx context.Context) ([]database.Transaction, error) {
	var txs []database.Transaction
	if err := c.call(ctx, ProcGetUntransactions, nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// GetNodes returns the peer's known peer addresses.
func (c *Client) GetNodes(ctx context.Context) ([]string, error) {
	var nodes []string
	if err := c.call(ctx, ProcGetNodes, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// NewBlock hands a block to the peer.
func (c *Client) NewBlock(ctx context.Context, block database.Block) error {
	return c.command(ctx, ProcNewBlock, block)
}

// AddNode announces a peer address to the peer.
func (c *Client) AddNode(ctx context.Context, address string) error {
	return c.command(ctx, ProcAddNode, address)
}

// NewUntransaction hands a pending transaction to the peer.
func (c *Client) NewUntransaction(ctx context.Context, tx database.Transaction) error {
	return c.command(ctx, ProcNewUntransaction, tx)
}

// BlockTransaction hands a confirmed transaction to the peer.
func (c *Client) BlockTransaction(ctx context.Context, tx database.Transaction) error {
	return c.command(ctx, ProcBlockTransaction, tx)
}

// =============================================================================

// command calls a mutating procedure and checks the acknowledgement.
func (c *Client) command(ctx context.Context, method string, payload any) error {
	var ack bool
	if err := c.call(ctx, method, payload, &ack); err != nil {
		return err
	}

	if !ack {
		return fmt.Errorf("%s: %s: not acknowledged", c.address, method)
	}

	return nil
}

// call is a helper function to send a request envelope to the peer.
func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	req, err := NewRequest(uuid.NewString(), method, payload)
	if err != nil {
		return err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		if err != nil {
			return err
		}
		return fmt.Errorf("%s: %s: status %d: %s", c.address, method, httpResp.StatusCode, bytes.TrimSpace(msg))
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("%s: %s: decoding response: %w", c.address, method, err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if result != nil {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("%s: %s: decoding result: %w", c.address, method, err)
		}
	}

	return nil
}
