// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"github.com/ardanlabs/ledger/foundation/validate"
	"github.com/ardanlabs/ledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of public ledger endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Accounts *accounts.Accounts
	WS       websocket.Upgrader
	Evts     *events.Events
}

// Events handles a web socket to provide events to a client. The filter
// query parameter takes a comma separated list of event prefixes.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var prefixes []string
	if filter := r.URL.Query().Get("filter"); filter != "" {
		prefixes = strings.Split(filter, ",")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, prefixes...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Status returns the current status of the node.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.RetrieveStatus(), http.StatusOK)
}

// Blocks returns the blocks ordered by index.
func (h Handlers) Blocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.State.CurrentBlocks()
	slices.SortStableFunc(blocks, func(a, b database.Block) int {
		return int(a.Index) - int(b.Index)
	})

	resp := make([]block, len(blocks))
	for i, b := range blocks {
		resp[i] = toBlock(b)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByHash returns the block with the specified hash.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	b, exists := h.State.FindBlock(hash)
	if !exists {
		return errs.NotFound("block", hash)
	}

	return web.Respond(ctx, w, toBlock(b), http.StatusOK)
}

// Transactions returns the confirmed transactions.
func (h Handlers) Transactions(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.toTxs(h.State.CurrentTransactions(), false), http.StatusOK)
}

// Pending returns the transactions waiting to be mined.
func (h Handlers) Pending(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.toTxs(h.State.PendingTransactions(), true), http.StatusOK)
}

// TransactionByHash returns the confirmed or pending transaction with the
// specified hash.
func (h Handlers) TransactionByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	tran, exists := h.State.FindTransaction(hash)
	if !exists {
		return errs.NotFound("transaction", hash)
	}

	_, confirmed := h.State.RetrieveDatabase().Transactions.FindByHash(hash)

	return web.Respond(ctx, w, h.toTx(tran, !confirmed), http.StatusOK)
}

// Balance returns the confirmed balance for the specified address.
func (h Handlers) Balance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	address := web.Param(r, "address")

	if !database.IsAddress(address) {
		return errs.NewTrusted(fmt.Errorf("invalid address %q", address), http.StatusBadRequest)
	}

	resp := balance{
		Address: address,
		Balance: accounts.Balance(address, h.State.CurrentTransactions()),
	}
	if name := h.lookup(address); name != address {
		resp.Name = name
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Peers returns the known peers of the node.
func (h Handlers) Peers(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	peers := h.State.ListPeers()
	if peers == nil {
		peers = []string{}
	}

	return web.Respond(ctx, w, peers, http.StatusOK)
}

// SubmitTransaction stores a transaction as pending and shares it with the
// known peers. Peers that could not be reached are listed in the response,
// they never fail the request.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var tran database.Transaction
	if err := web.Decode(r, &tran); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if tran.Hash != database.HashTransaction(tran) {
		return errs.NewTrusted(errors.New("transaction hash does not match its content"), http.StatusBadRequest)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "hash", tran.Hash, "inputs", len(tran.Inputs), "outputs", len(tran.Outputs))

	report, err := h.State.SubmitTransaction(ctx, tran)
	if err != nil {
		if validate.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, toDelivery(tran.Hash, report), http.StatusOK)
}

// AddPeer registers a new peer and announces it to the known peers.
func (h Handlers) AddPeer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var ap addPeer
	if err := web.Decode(r, &ap); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(ap); err != nil {
		return err
	}

	h.Log.Infow("add peer", "traceid", v.TraceID, "address", ap.Address)

	report, err := h.State.AddPeer(ctx, ap.Address)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	return web.Respond(ctx, w, toDelivery("", report), http.StatusOK)
}

// =============================================================================

func (h Handlers) toTxs(trans []database.Transaction, pending bool) []tx {
	resp := make([]tx, len(trans))
	for i, tran := range trans {
		resp[i] = h.toTx(tran, pending)
	}
	return resp
}

func (h Handlers) toTx(tran database.Transaction, pending bool) tx {
	t := tx{
		Hash:      tran.Hash,
		Timestamp: tran.Timestamp,
		Pending:   pending,
		Inputs:    make([]input, len(tran.Inputs)),
		Outputs:   make([]output, len(tran.Outputs)),
		Total:     tran.Total(),
	}

	for i, in := range tran.Inputs {
		t.Inputs[i] = input{
			Sender:     in.SenderAddress,
			SenderName: h.name(in.SenderAddress),
			Amount:     in.Amount,
			SourceHash: in.SourceHash,
		}
	}

	for i, out := range tran.Outputs {
		t.Outputs[i] = output{
			Receiver:     out.ReceiverAddress,
			ReceiverName: h.name(out.ReceiverAddress),
			Amount:       out.Amount,
			Hash:         out.Hash,
		}
	}

	return t
}

// name returns the local account name for the address, or empty when the
// address does not belong to a local account.
func (h Handlers) name(address string) string {
	if name := h.lookup(address); name != address {
		return name
	}
	return ""
}

func (h Handlers) lookup(address string) string {
	if h.Accounts == nil {
		return address
	}
	return h.Accounts.Lookup(address)
}
