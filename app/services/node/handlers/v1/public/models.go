package public

import (
	"github.com/ardanlabs/ledger/foundation/blockchain/broadcast"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

type input struct {
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name,omitempty"`
	Amount     uint32 `json:"amount"`
	SourceHash string `json:"source_hash"`
}

type output struct {
	Receiver     string `json:"receiver"`
	ReceiverName string `json:"receiver_name,omitempty"`
	Amount       uint32 `json:"amount"`
	Hash         string `json:"hash"`
}

type tx struct {
	Hash      string   `json:"hash"`
	Timestamp uint64   `json:"timestamp"`
	Pending   bool     `json:"pending"`
	Inputs    []input  `json:"inputs"`
	Outputs   []output `json:"outputs"`
	Total     uint64   `json:"total"`
}

type block struct {
	Index             uint32   `json:"index"`
	Hash              string   `json:"hash"`
	PreviousBlockHash string   `json:"previous_block_hash"`
	Timestamp         uint64   `json:"timestamp"`
	Nonce             uint32   `json:"nonce"`
	Transactions      []string `json:"transactions"`
}

type balance struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Balance int64  `json:"balance"`
}

type addPeer struct {
	Address string `json:"address" validate:"required"`
}

type delivery struct {
	Hash      string            `json:"hash,omitempty"`
	Delivered []string          `json:"delivered"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// =============================================================================

func toBlock(b database.Block) block {
	hashes := b.TransactionHashes
	if hashes == nil {
		hashes = []string{}
	}

	return block{
		Index:             b.Index,
		Hash:              b.Hash,
		PreviousBlockHash: b.PreviousBlockHash,
		Timestamp:         b.Timestamp,
		Nonce:             b.Nonce,
		Transactions:      hashes,
	}
}

func toDelivery(hash string, report broadcast.Report[bool]) delivery {
	d := delivery{
		Hash:      hash,
		Delivered: []string{},
	}

	for _, o := range report.Successes() {
		d.Delivered = append(d.Delivered, o.Peer)
	}

	failures := report.Failures()
	if len(failures) > 0 {
		d.Failed = make(map[string]string, len(failures))
		for _, o := range failures {
			d.Failed[o.Peer] = o.Err.Error()
		}
	}

	return d
}
