// Package rpc provides Bostrom blockchain communication with multi-upstream
// failover.
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cyberia-to/uhash/internal/miner"
	"github.com/cyberia-to/uhash/internal/util"
)

// queryMsg mirrors the Seed{} and Difficulty{} variants of the UniversalHash
// verifier contract's CosmWasm query enum; the Config{} variant is not
// modelled.
type queryMsg struct {
	Seed       *struct{} `json:"seed,omitempty"`
	Difficulty *struct{} `json:"difficulty,omitempty"`
}

// submitProofExecuteMsg mirrors the contract's CosmWasm execute enum variant
// for reporting a proof. The real variant takes (nonce, timestamp, hash);
// the address is implied by the signer, which this client never becomes.
type submitProofExecuteMsg struct {
	SubmitProof struct {
		Nonce     uint64 `json:"nonce"`
		Timestamp uint64 `json:"timestamp"`
		Hash      string `json:"hash"`
	} `json:"submit_proof"`
}

type seedResponse struct {
	Seed         string `json:"seed"`
	SeedInterval uint64 `json:"seed_interval"`
}

type difficultyResponse struct {
	Current       uint32 `json:"current"`
	MinProfitable uint32 `json:"min_profitable"`
}

type smartQueryEnvelope struct {
	Data json.RawMessage `json:"data"`
}

type blockResponse struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// Block is a minimal view of the latest chain block, used only as a
// cheap liveness probe for upstream health checking.
type Block struct {
	Height uint64
}

// BostromClient queries a Bostrom LCD endpoint and the UniversalHash
// verifier CosmWasm contract deployed on it.
type BostromClient struct {
	url             string
	contractAddress string
	timeout         time.Duration
	httpClient      *http.Client
}

// NewBostromClient creates a client bound to a single LCD endpoint.
func NewBostromClient(lcdURL, contractAddress string, timeout time.Duration) *BostromClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BostromClient{
		url:             lcdURL,
		contractAddress: contractAddress,
		timeout:         timeout,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

func (c *BostromClient) smartQuery(ctx context.Context, msg queryMsg) (json.RawMessage, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	queryB64 := base64.StdEncoding.EncodeToString(body)

	url := fmt.Sprintf("%s/cosmwasm/wasm/v1/contract/%s/smart/%s", c.url, c.contractAddress, queryB64)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("smart query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("smart query returned status %d", resp.StatusCode)
	}

	var envelope smartQueryEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	return envelope.Data, nil
}

// Seed implements miner.SeedSource by querying the contract's current
// mining seed.
func (c *BostromClient) Seed(ctx context.Context) ([]byte, error) {
	data, err := c.smartQuery(ctx, queryMsg{Seed: &struct{}{}})
	if err != nil {
		return nil, err
	}

	var sr seedResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("decode seed response: %w", err)
	}

	seed, err := hex.DecodeString(sr.Seed)
	if err != nil {
		return nil, fmt.Errorf("decode seed hex: %w", err)
	}

	return seed, nil
}

// Difficulty implements miner.DifficultySource by querying the
// contract's current required leading-zero-bit count.
func (c *BostromClient) Difficulty(ctx context.Context) (uint32, error) {
	data, err := c.smartQuery(ctx, queryMsg{Difficulty: &struct{}{}})
	if err != nil {
		return 0, err
	}

	var dr difficultyResponse
	if err := json.Unmarshal(data, &dr); err != nil {
		return 0, fmt.Errorf("decode difficulty response: %w", err)
	}

	return dr.Current, nil
}

// SubmitProof implements miner.ProofSink. Reporting a proof on-chain
// requires a signed ExecuteMsg::SubmitProof transaction; signing and
// broadcast are a wallet/RPC-client concern this client does not own, so
// SubmitProof only logs the intent as a best-effort, unsigned notification.
func (c *BostromClient) SubmitProof(ctx context.Context, proof miner.Proof) error {
	var msg submitProofExecuteMsg
	msg.SubmitProof.Nonce = proof.Nonce
	msg.SubmitProof.Timestamp = proof.Timestamp
	msg.SubmitProof.Hash = hex.EncodeToString(proof.Hash[:])

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode submit_proof: %w", err)
	}

	util.Infof("submit_proof intent for %s (unsigned, not broadcast): %s", proof.Address, body)
	return nil
}

// GetLatestBlock retrieves the chain tip, used only as an upstream
// health-check probe (no mining data depends on it).
func (c *BostromClient) GetLatestBlock(ctx context.Context) (*Block, error) {
	url := fmt.Sprintf("%s/cosmos/base/tendermint/v1beta1/blocks/latest", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get latest block: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get latest block returned status %d", resp.StatusCode)
	}

	var br blockResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode block response: %w", err)
	}

	var height uint64
	if _, err := fmt.Sscanf(br.Block.Header.Height, "%d", &height); err != nil {
		return nil, fmt.Errorf("parse block height: %w", err)
	}

	return &Block{Height: height}, nil
}
