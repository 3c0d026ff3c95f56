// Package private maintains the group of handlers for node to node access.
package private

import (
	"context"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"github.com/ardanlabs/ledger/foundation/web"
	"go.uber.org/zap"
)

// Handlers manages the set of node to node endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Server *rpc.Server
}

// RPC decodes a JSON-RPC envelope sent by a peer and executes it against
// the node. Protocol failures are reported inside the envelope so the
// HTTP status is always 200.
func (h Handlers) RPC(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	req, rpcErr := rpc.DecodeRequest(r.Body)
	if rpcErr != nil {
		h.Log.Infow("rpc", "traceid", v.TraceID, "remoteaddr", r.RemoteAddr, "code", rpcErr.Code, "ERROR", rpcErr.Message)

		resp := rpc.Response{
			JSONRPC: rpc.Version,
			Error:   rpcErr,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}

	resp := h.Server.Handle(ctx, req)
	if resp.Error != nil {
		h.Log.Infow("rpc", "traceid", v.TraceID, "method", req.Method, "code", resp.Error.Code, "ERROR", resp.Error.Message)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}
