// Package storage provides data persistence for the uhashminer process.
package storage

import "time"

// FoundProof represents a proof-of-work solution found by the miner.
type FoundProof struct {
	SessionID string `json:"session_id"`
	Address   string `json:"address"`
	Hash      string `json:"hash"`
	Nonce     uint64 `json:"nonce"`
	Timestamp uint64 `json:"timestamp"`
	Submitted bool   `json:"submitted"`
	TxHash    string `json:"tx_hash,omitempty"`
	FoundAt   int64  `json:"found_at"`
}

// HashrateSample is one hashrate measurement taken by the worker pool's
// monitor goroutine.
type HashrateSample struct {
	HashesPerSecond float64 `json:"hashes_per_sec"`
	TotalHashes     uint64  `json:"total_hashes"`
	Timestamp       int64   `json:"timestamp"`
}

// MiningSession tracks one run of the miner process against a given
// address, from start until the process stops.
type MiningSession struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	Threads     int       `json:"threads"`
	StartedAt   time.Time `json:"started_at"`
	ProofsFound uint64    `json:"proofs_found"`
	TotalHashes uint64    `json:"total_hashes"`
}

// NetworkStatus is a cached view of the upstream's current seed/difficulty.
type NetworkStatus struct {
	Difficulty uint32 `json:"difficulty"`
	SeedHex    string `json:"seed_hex"`
	LastBeat   int64  `json:"last_beat"`
}
