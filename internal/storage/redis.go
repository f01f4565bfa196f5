package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/cyberia-to/uhash/internal/util"
)

const (
	keyPrefix = "uhash:"

	keySessions       = keyPrefix + "sessions"
	keySession        = keyPrefix + "sessions:%s"
	keyProofsAll      = keyPrefix + "proofs:all"
	keyProofsAddr     = keyPrefix + "proofs:%s"
	keyHashrateSample = keyPrefix + "hashrate:%s"
	keyNetwork        = keyPrefix + "network"
)

// RedisClient wraps Redis operations for mining-session persistence.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient creates a new Redis client.
func NewRedisClient(url, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	util.Info("Connected to Redis at ", url)
	return &RedisClient{client: client, ctx: ctx}, nil
}

// Close closes the Redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// StartSession records the start of a mining session.
func (r *RedisClient) StartSession(session *MiningSession) error {
	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, fmt.Sprintf(keySession, session.ID), "data", string(sessionJSON))
	pipe.ZAdd(r.ctx, keySessions, &redis.Z{
		Score:  float64(session.StartedAt.Unix()),
		Member: session.ID,
	})
	_, err = pipe.Exec(r.ctx)
	return err
}

// UpdateSessionCounters refreshes the proof/hash counters for a session.
func (r *RedisClient) UpdateSessionCounters(sessionID string, proofsFound, totalHashes uint64) error {
	key := fmt.Sprintf(keySession, sessionID)
	data, err := r.client.HGet(r.ctx, key, "data").Result()
	if err != nil {
		return err
	}

	var session MiningSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return err
	}

	session.ProofsFound = proofsFound
	session.TotalHashes = totalHashes

	sessionJSON, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return r.client.HSet(r.ctx, key, "data", string(sessionJSON)).Err()
}

// WriteProof stores a found proof and indexes it for the miner's address.
func (r *RedisClient) WriteProof(proof *FoundProof) error {
	proofJSON, err := json.Marshal(proof)
	if err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	pipe.ZAdd(r.ctx, keyProofsAll, &redis.Z{
		Score:  float64(proof.FoundAt),
		Member: string(proofJSON),
	})

	addrKey := fmt.Sprintf(keyProofsAddr, proof.Address)
	pipe.LPush(r.ctx, addrKey, string(proofJSON))
	pipe.LTrim(r.ctx, addrKey, 0, 999)

	_, err = pipe.Exec(r.ctx)
	return err
}

// MarkProofSubmitted updates a proof's submission status after the RPC
// client confirms or rejects it on-chain.
func (r *RedisClient) MarkProofSubmitted(address string, nonce uint64, txHash string) error {
	addrKey := fmt.Sprintf(keyProofsAddr, address)
	results, err := r.client.LRange(r.ctx, addrKey, 0, -1).Result()
	if err != nil {
		return err
	}

	for i, result := range results {
		var proof FoundProof
		if err := json.Unmarshal([]byte(result), &proof); err != nil {
			continue
		}
		if proof.Nonce == nonce {
			proof.Submitted = true
			proof.TxHash = txHash
			updated, err := json.Marshal(proof)
			if err != nil {
				return err
			}
			return r.client.LSet(r.ctx, addrKey, int64(i), string(updated)).Err()
		}
	}

	return nil
}

// GetRecentProofs returns the most recently found proofs across all addresses.
func (r *RedisClient) GetRecentProofs(limit int64) ([]*FoundProof, error) {
	results, err := r.client.ZRevRange(r.ctx, keyProofsAll, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	proofs := make([]*FoundProof, 0, len(results))
	for _, result := range results {
		var proof FoundProof
		if err := json.Unmarshal([]byte(result), &proof); err == nil {
			proofs = append(proofs, &proof)
		}
	}
	return proofs, nil
}

// GetAddressProofs returns proof history for a single mining address.
func (r *RedisClient) GetAddressProofs(address string, limit int64) ([]*FoundProof, error) {
	addrKey := fmt.Sprintf(keyProofsAddr, address)
	results, err := r.client.LRange(r.ctx, addrKey, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	proofs := make([]*FoundProof, 0, len(results))
	for _, result := range results {
		var proof FoundProof
		if err := json.Unmarshal([]byte(result), &proof); err == nil {
			proofs = append(proofs, &proof)
		}
	}
	return proofs, nil
}

// RecordHashrateSample appends one hashrate sample to a per-session
// time series, capped to the last 24 hours.
func (r *RedisClient) RecordHashrateSample(sessionID string, sample HashrateSample) error {
	sampleJSON, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	key := fmt.Sprintf(keyHashrateSample, sessionID)
	pipe := r.client.Pipeline()
	pipe.ZAdd(r.ctx, key, &redis.Z{Score: float64(sample.Timestamp), Member: string(sampleJSON)})
	pipe.ZRemRangeByScore(r.ctx, key, "-inf", strconv.FormatInt(time.Now().Add(-24*time.Hour).Unix(), 10))
	_, err = pipe.Exec(r.ctx)
	return err
}

// GetHashrateHistory returns hashrate samples for a session within the
// last `hours`.
func (r *RedisClient) GetHashrateHistory(sessionID string, hours int) ([]HashrateSample, error) {
	minTime := time.Now().Add(-time.Duration(hours) * time.Hour).Unix()
	key := fmt.Sprintf(keyHashrateSample, sessionID)

	results, err := r.client.ZRangeByScore(r.ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(minTime, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	samples := make([]HashrateSample, 0, len(results))
	for _, result := range results {
		var sample HashrateSample
		if err := json.Unmarshal([]byte(result), &sample); err == nil {
			samples = append(samples, sample)
		}
	}
	return samples, nil
}

// SetNetworkStatus caches the upstream's last-observed difficulty and seed.
func (r *RedisClient) SetNetworkStatus(status *NetworkStatus) error {
	pipe := r.client.Pipeline()
	pipe.HSet(r.ctx, keyNetwork, "difficulty", status.Difficulty)
	pipe.HSet(r.ctx, keyNetwork, "seedHex", status.SeedHex)
	pipe.HSet(r.ctx, keyNetwork, "lastBeat", status.LastBeat)
	_, err := pipe.Exec(r.ctx)
	return err
}

// GetNetworkStatus returns the cached upstream status.
func (r *RedisClient) GetNetworkStatus() (*NetworkStatus, error) {
	data, err := r.client.HGetAll(r.ctx, keyNetwork).Result()
	if err != nil {
		return nil, err
	}

	status := &NetworkStatus{}
	if v, ok := data["difficulty"]; ok {
		d, _ := strconv.ParseUint(v, 10, 32)
		status.Difficulty = uint32(d)
	}
	if v, ok := data["seedHex"]; ok {
		status.SeedHex = v
	}
	if v, ok := data["lastBeat"]; ok {
		status.LastBeat, _ = strconv.ParseInt(v, 10, 64)
	}

	return status, nil
}

// GetRecentSessionIDs returns the most recently started session IDs.
func (r *RedisClient) GetRecentSessionIDs(limit int64) ([]string, error) {
	return r.client.ZRevRange(r.ctx, keySessions, 0, limit-1).Result()
}
