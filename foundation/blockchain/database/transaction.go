package database

// Input represents value consumed by a transaction.
type Input struct {
	SenderAddress string `json:"sender"`
	Amount        uint32 `json:"amount"`
	SourceHash    string `json:"hash"`
}

// Output represents value received from a transaction.
type Output struct {
	ReceiverAddress string `json:"receiver" validate:"required"`
	Amount          uint32 `json:"amount"`
	Hash            string `json:"hash"`
}

// Transaction is the transactional information between parties. The same
// type is held in the confirmed and the pending collections.
type Transaction struct {
	Timestamp uint64   `json:"timestamp"`
	Inputs    []Input  `json:"vin" validate:"dive"`
	Outputs   []Output `json:"vout" validate:"dive"`
	Hash      string   `json:"hash" validate:"required"`
}

// Digest implements the storage.Record interface.
func (tx Transaction) Digest() string {
	return tx.Hash
}

// NewTransaction constructs a transaction and stamps it with its hash.
func NewTransaction(timestamp uint64, inputs []Input, outputs []Output) Transaction {
	if inputs == nil {
		inputs = []Input{}
	}
	if outputs == nil {
		outputs = []Output{}
	}

	tx := Transaction{
		Timestamp: timestamp,
		Inputs:    inputs,
		Outputs:   outputs,
	}
	tx.Hash = HashTransaction(tx)

	return tx
}

// HashTransaction returns the content hash for the transaction. The hash
// field itself is not part of the hashed content.
func HashTransaction(tx Transaction) string {
	tx.Hash = ""
	return hashValue(tx)
}

// NewOutput constructs an output with the hash of its content.
func NewOutput(receiver string, amount uint32, timestamp uint64) Output {
	out := Output{
		ReceiverAddress: receiver,
		Amount:          amount,
	}

	out.Hash = hashValue(struct {
		Output
		Timestamp uint64 `json:"timestamp"`
	}{out, timestamp})

	return out
}

// Total returns the sum of all output amounts.
func (tx Transaction) Total() uint64 {
	var total uint64
	for _, out := range tx.Outputs {
		total += uint64(out.Amount)
	}
	return total
}
