package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is a block header with its transaction summaries.
type Block struct {
	Number       uint64
	Hash         common.Hash
	Timestamp    uint64 // unix seconds
	Transactions []TxSummary
}

// TxSummary holds the transaction fields the mapping needs.
type TxSummary struct {
	Hash  common.Hash
	From  common.Address
	Index uint
}

// Header is a newHeads notification.
type Header struct {
	Number    uint64
	Hash      common.Hash
	Timestamp uint64
}

// FilterQuery selects logs for eth_getLogs.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

// Raw JSON-RPC shapes.

type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []rpcTx        `json:"transactions"`
}

type rpcTx struct {
	Hash             common.Hash    `json:"hash"`
	From             common.Address `json:"from"`
	TransactionIndex hexutil.Uint   `json:"transactionIndex"`
}

type rpcHeader struct {
	Number    hexutil.Uint64 `json:"number"`
	Hash      common.Hash    `json:"hash"`
	Timestamp hexutil.Uint64 `json:"timestamp"`
}

func (b *rpcBlock) toBlock() *Block {
	block := &Block{
		Number:       uint64(b.Number),
		Hash:         b.Hash,
		Timestamp:    uint64(b.Timestamp),
		Transactions: make([]TxSummary, 0, len(b.Transactions)),
	}
	for _, tx := range b.Transactions {
		block.Transactions = append(block.Transactions, TxSummary{
			Hash:  tx.Hash,
			From:  tx.From,
			Index: uint(tx.TransactionIndex),
		})
	}
	return block
}

func (h *rpcHeader) toHeader() Header {
	return Header{
		Number:    uint64(h.Number),
		Hash:      h.Hash,
		Timestamp: uint64(h.Timestamp),
	}
}

func (q FilterQuery) toArg() map[string]interface{} {
	arg := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(q.FromBlock),
		"toBlock":   hexutil.EncodeUint64(q.ToBlock),
	}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	return arg
}
