package miner

import (
	"context"
	"testing"
	"time"

	"github.com/cyberia-to/uhash/internal/uhash"
)

func TestPoolFindsProofAtTrivialDifficulty(t *testing.T) {
	pool := NewPool(Config{Threads: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proof := pool.RunRound(ctx, []byte("seed"), "addr1", 0, 1234567890)
	if proof == nil {
		t.Fatalf("expected a proof at difficulty 0")
	}

	input := append([]byte{}, []byte("seed")...)
	input = append(input, []byte("addr1")...)
	var ts, nonce [8]byte
	putLE(ts[:], proof.Timestamp)
	putLE(nonce[:], proof.Nonce)
	input = append(input, ts[:]...)
	input = append(input, nonce[:]...)

	want := uhash.Hash(input)
	if proof.Hash != want {
		t.Fatalf("returned proof does not reconstruct to the same hash")
	}
	if !uhash.MeetsDifficulty(proof.Hash, 0) {
		t.Fatalf("returned proof does not meet difficulty 0 (it always should)")
	}
}

func TestPoolCancellationReturnsNilWithoutProof(t *testing.T) {
	pool := NewPool(Config{Threads: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Difficulty 256 is defined but unreachable: the round
	// must return nil when the context expires instead of blocking forever.
	proof := pool.RunRound(ctx, []byte("seed"), "addr1", 256, 1)
	if proof != nil {
		t.Fatalf("expected no proof to satisfy difficulty 256")
	}
}

func TestPoolHashrateSampling(t *testing.T) {
	pool := NewPool(Config{Threads: 2, HashrateSampleInterval: 10 * time.Millisecond})

	samples := 0
	pool.OnSample(func(rate float64, total uint64) {
		samples++
	})

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	pool.RunRound(ctx, []byte("seed"), "addr1", 256, 1)

	if samples == 0 {
		t.Fatalf("expected at least one hashrate sample")
	}
}

func putLE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
