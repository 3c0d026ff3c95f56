package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardanlabs/ledger/app/services/node/handlers"
	"github.com/ardanlabs/ledger/business/web/errs"
	"github.com/ardanlabs/ledger/foundation/blockchain/accounts"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/rpc"
	"github.com/ardanlabs/ledger/foundation/blockchain/state"
	"github.com/ardanlabs/ledger/foundation/events"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const receiver = "0xF01813E4B85e178A83e29B8E7bF26BD830a25f32"

type node struct {
	st      *state.State
	public  http.Handler
	private http.Handler
}

func newNode(t *testing.T) node {
	log := zap.NewNop().Sugar()

	db, err := database.New(filepath.Join(t.TempDir(), "data"), nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to open the database: %v", failed, err)
	}

	accts, err := accounts.New(filepath.Join(t.TempDir(), "accounts"), db.Accounts)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load accounts: %v", failed, err)
	}

	st, err := state.New(state.Config{
		Database:    db,
		CallTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %v", failed, err)
	}
	t.Cleanup(func() { st.Shutdown() })

	srv, err := rpc.NewServer(st, nil)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the rpc server: %v", failed, err)
	}

	evts := events.New()
	t.Cleanup(evts.Shutdown)

	cfg := handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		State:    st,
		Accounts: accts,
		RPC:      srv,
		Evts:     evts,
	}

	return node{
		st:      st,
		public:  handlers.PublicMux(cfg),
		private: handlers.PrivateMux(cfg),
	}
}

func call(h http.Handler, method string, path string, body any, resp any) int {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	r := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if resp != nil {
		json.NewDecoder(w.Body).Decode(resp)
	}

	return w.Code
}

func newTx(amount uint32) database.Transaction {
	const ts = 1700000000
	return database.NewTransaction(ts, nil, []database.Output{database.NewOutput(receiver, amount, ts)})
}

// =============================================================================

func Test_PublicTransactions(t *testing.T) {
	t.Log("Given the need to submit and read transactions through the public api.")
	{
		n := newNode(t)
		tx := newTx(10)

		testID := 0
		t.Logf("\tTest %d:\tWhen submitting a transaction.", testID)
		{
			var d struct {
				Hash      string   `json:"hash"`
				Delivered []string `json:"delivered"`
			}
			if status := call(n.public, http.MethodPost, "/v1/tx/submit", tx, &d); status != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200, got %d.", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 200.", success, testID)

			if d.Hash != tx.Hash {
				t.Fatalf("\t%s\tTest %d:\tShould get back the hash %s, got %s.", failed, testID, tx.Hash, d.Hash)
			}
			t.Logf("\t%s\tTest %d:\tShould get back the hash.", success, testID)

			var pending []struct {
				Hash    string `json:"hash"`
				Pending bool   `json:"pending"`
			}
			call(n.public, http.MethodGet, "/v1/tx/pending/list", nil, &pending)
			if len(pending) != 1 || pending[0].Hash != tx.Hash || !pending[0].Pending {
				t.Fatalf("\t%s\tTest %d:\tShould list the pending transaction: %+v", failed, testID, pending)
			}
			t.Logf("\t%s\tTest %d:\tShould list the pending transaction.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen submitting a transaction with a forged hash.", testID)
		{
			forged := newTx(20)
			forged.Hash = tx.Hash

			var er errs.Response
			if status := call(n.public, http.MethodPost, "/v1/tx/submit", forged, &er); status != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould get a 400, got %d.", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 400: %s", success, testID, er.Error)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the transaction is confirmed.", testID)
		{
			if err := n.st.AcceptBlockTransaction(context.Background(), tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to confirm the transaction: %v", failed, testID, err)
			}

			var bal struct {
				Balance int64 `json:"balance"`
			}
			if status := call(n.public, http.MethodGet, "/v1/balances/"+receiver, nil, &bal); status != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200, got %d.", failed, testID, status)
			}
			if bal.Balance != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould get a balance of 10, got %d.", failed, testID, bal.Balance)
			}
			t.Logf("\t%s\tTest %d:\tShould get a balance of 10.", success, testID)

			var got struct {
				Hash    string `json:"hash"`
				Pending bool   `json:"pending"`
			}
			call(n.public, http.MethodGet, "/v1/tx/"+tx.Hash, nil, &got)
			if got.Hash != tx.Hash || got.Pending {
				t.Fatalf("\t%s\tTest %d:\tShould find the confirmed transaction: %+v", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould find the confirmed transaction.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen asking for unknown records.", testID)
		{
			if status := call(n.public, http.MethodGet, "/v1/blocks/unknown", nil, nil); status != http.StatusNotFound {
				t.Fatalf("\t%s\tTest %d:\tShould get a 404 for a block, got %d.", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 404 for a block.", success, testID)

			if status := call(n.public, http.MethodGet, "/v1/balances/bad", nil, nil); status != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould get a 400 for a bad address, got %d.", failed, testID, status)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 400 for a bad address.", success, testID)
		}
	}
}

func Test_PrivateRPC(t *testing.T) {
	t.Log("Given the need to serve the node protocol on the private api.")
	{
		n := newNode(t)

		testID := 0
		t.Logf("\tTest %d:\tWhen a peer calls ping.", testID)
		{
			req, err := rpc.NewRequest("1", rpc.ProcPing, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build a request: %v", failed, testID, err)
			}

			var resp rpc.Response
			if status := call(n.private, http.MethodPost, rpc.Path, req, &resp); status != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200, got %d.", failed, testID, status)
			}
			if resp.Error != nil {
				t.Fatalf("\t%s\tTest %d:\tShould not get an error: %v", failed, testID, resp.Error)
			}
			if string(resp.Result) != "true" {
				t.Fatalf("\t%s\tTest %d:\tShould get true from the node, got %s.", failed, testID, resp.Result)
			}
			t.Logf("\t%s\tTest %d:\tShould get true from the node.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a peer sends garbage.", testID)
		{
			r := httptest.NewRequest(http.MethodPost, rpc.Path, bytes.NewBufferString("{not json"))
			w := httptest.NewRecorder()
			n.private.ServeHTTP(w, r)

			var resp rpc.Response
			json.NewDecoder(w.Body).Decode(&resp)
			if resp.Error == nil || resp.Error.Code != rpc.CodeParseError {
				t.Fatalf("\t%s\tTest %d:\tShould get a parse error: %+v", failed, testID, resp.Error)
			}
			t.Logf("\t%s\tTest %d:\tShould get a parse error.", success, testID)
		}
	}
}
