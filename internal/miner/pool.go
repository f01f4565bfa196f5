package miner

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberia-to/uhash/internal/uhash"
)

// Config controls the worker pool's shape.
type Config struct {
	// Threads is the number of worker goroutines. Zero means runtime.NumCPU().
	Threads int

	// HashrateSampleInterval controls how often the hashrate monitor samples
	// the shared hash counter. Zero disables sampling.
	HashrateSampleInterval time.Duration
}

// Pool is a worker pool searching for a nonce whose hash meets a difficulty
// target. Each worker owns its own *uhash.Hasher and its own ~2 MiB of
// scratchpads; hashers are never shared across goroutines.
type Pool struct {
	cfg Config

	totalHashes atomic.Uint64

	mu       sync.Mutex
	onSample func(hashrate float64, totalHashes uint64)
}

// NewPool constructs a worker pool with the given configuration.
func NewPool(cfg Config) *Pool {
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	return &Pool{cfg: cfg}
}

// OnSample registers a callback invoked on every hashrate sample. It is not
// safe to call concurrently with RunRound.
func (p *Pool) OnSample(fn func(hashrate float64, totalHashes uint64)) {
	p.onSample = fn
}

// TotalHashes returns the cumulative hash count across every round run by
// this pool so far.
func (p *Pool) TotalHashes() uint64 {
	return p.totalHashes.Load()
}

// foundSlot is the mutex-protected "first winner wins" proof slot.
type foundSlot struct {
	mu    sync.Mutex
	proof *Proof
}

func (f *foundSlot) trySet(p Proof) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.proof != nil {
		return false
	}
	f.proof = &p
	return true
}

func (f *foundSlot) get() *Proof {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proof
}

// RunRound searches for a single proof under the given seed, address, and
// difficulty, using timestamp as the mining input's timestamp field. It
// returns when a proof is found, or when ctx is cancelled — whichever comes
// first. A nil return means ctx was cancelled before any worker found a
// proof.
func (p *Pool) RunRound(ctx context.Context, seed []byte, address string, difficulty uint32, timestamp uint64) *Proof {
	var stop atomic.Bool
	var roundHashes atomic.Uint64
	found := &foundSlot{}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()

	monitorDone := make(chan struct{})
	if p.onSample != nil && p.cfg.HashrateSampleInterval > 0 {
		go p.monitorHashrate(monitorCtx, &roundHashes, monitorDone)
	} else {
		close(monitorDone)
	}

	var wg sync.WaitGroup
	wg.Add(p.cfg.Threads)
	for t := 0; t < p.cfg.Threads; t++ {
		t := t
		go func() {
			defer wg.Done()
			p.work(ctx, t, seed, address, timestamp, difficulty, &stop, &roundHashes, found)
		}()
	}

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-ctx.Done():
		stop.Store(true)
		<-workersDone
	}
	stopMonitor()
	<-monitorDone

	p.totalHashes.Add(roundHashes.Load())
	return found.get()
}

// work is a single worker's search loop. Worker t starts at nonce=t and
// steps by Threads, keeping nonces small and collision-free across workers.
func (p *Pool) work(ctx context.Context, workerIdx int, seed []byte, address string, timestamp uint64, difficulty uint32, stop *atomic.Bool, roundHashes *atomic.Uint64, found *foundSlot) {
	threads := uint64(p.cfg.Threads)
	nonce := uint64(workerIdx)

	hasher := uhash.New()

	var tsBytes, nonceBytes [8]byte
	binary.LittleEndian.PutUint64(tsBytes[:], timestamp)

	input := make([]byte, 0, len(seed)+len(address)+16)

	for {
		if stop.Load() || ctx.Err() != nil {
			return
		}

		binary.LittleEndian.PutUint64(nonceBytes[:], nonce)

		input = input[:0]
		input = append(input, seed...)
		input = append(input, address...)
		input = append(input, tsBytes[:]...)
		input = append(input, nonceBytes[:]...)

		hash := hasher.Hash(input)
		roundHashes.Add(1)

		if uhash.MeetsDifficulty(hash, difficulty) {
			if found.trySet(Proof{Hash: hash, Nonce: nonce, Timestamp: timestamp, Address: address}) {
				stop.Store(true)
			}
			return
		}

		nonce += threads
	}
}

// monitorHashrate samples the round's hash counter on a wall-clock interval
// and reports the rate via p.onSample.
func (p *Pool) monitorHashrate(ctx context.Context, roundHashes *atomic.Uint64, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.HashrateSampleInterval)
	defer ticker.Stop()

	var last uint64
	lastAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			cur := roundHashes.Load()
			elapsed := now.Sub(lastAt).Seconds()
			if elapsed > 0 {
				rate := float64(cur-last) / elapsed
				p.onSample(rate, p.totalHashes.Load()+cur)
			}
			last = cur
			lastAt = now
		}
	}
}
