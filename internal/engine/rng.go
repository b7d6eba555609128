package engine

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
)

// Source produces uniformly distributed draws in [0, 1).
// Every game outcome is derived from a Source; nothing else in the
// engine is allowed to introduce randomness.
type Source interface {
	Draw() float64
}

// Advancer is implemented by sources that partition their stream into
// rounds. Settlement calls Advance once per round and records the nonce.
type Advancer interface {
	Advance() uint64
}

// ByteGenerator streams HMAC-SHA256 bytes keyed by the server seed over
// "clientSeed:nonce:round", 32 bytes per round.
type ByteGenerator struct {
	serverSeed   string
	clientSeed   string
	nonce        uint64
	currentRound uint64
	currentPos   int
	buffer       [32]byte
}

// NewByteGenerator positions a generator at cursor bytes into the stream
// for the given nonce.
func NewByteGenerator(serverSeed, clientSeed string, nonce uint64, cursor uint64) *ByteGenerator {
	bg := &ByteGenerator{
		serverSeed:   serverSeed,
		clientSeed:   clientSeed,
		nonce:        nonce,
		currentRound: cursor / 32,
		currentPos:   int(cursor % 32),
	}
	bg.generateRound()
	return bg
}

// Next returns the next byte from the generator
func (bg *ByteGenerator) Next() byte {
	if bg.currentPos >= 32 {
		bg.currentRound++
		bg.currentPos = 0
		bg.generateRound()
	}

	b := bg.buffer[bg.currentPos]
	bg.currentPos++
	return b
}

// NextFloat consumes exactly 4 bytes.
func (bg *ByteGenerator) NextFloat() float64 {
	return bytesToFloat([4]byte{bg.Next(), bg.Next(), bg.Next(), bg.Next()})
}

func (bg *ByteGenerator) generateRound() {
	h := hmac.New(sha256.New, []byte(bg.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", bg.clientSeed, bg.nonce, bg.currentRound)
	copy(bg.buffer[:], h.Sum(nil))
}

// bytesToFloat computes Σ b[i] / 256^(i+1), which is always < 1.
func bytesToFloat(bytes [4]byte) float64 {
	result := 0.0
	for i, b := range bytes {
		result += float64(b) / math.Pow(256, float64(i+1))
	}
	return result
}

// Floats returns count floats for a nonce starting at the byte cursor.
func Floats(serverSeed, clientSeed string, nonce uint64, cursor uint64, count int) []float64 {
	bg := NewByteGenerator(serverSeed, clientSeed, nonce, cursor)
	floats := make([]float64, count)
	for i := range floats {
		floats[i] = bg.NextFloat()
	}
	return floats
}

// HashServerSeed returns the hex SHA-256 commitment published for a server seed.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

// SeededSource is a provably fair Source. Draws for a round come from the
// byte stream of a single nonce, so any settled round can be replayed from
// the seeds and the recorded nonce.
type SeededSource struct {
	mu    sync.Mutex
	seeds Seeds
	nonce uint64
	gen   *ByteGenerator
}

// NewSeededSource starts a stream at the given nonce. The first call to
// Advance moves to nonce+1.
func NewSeededSource(seeds Seeds, nonce uint64) *SeededSource {
	return &SeededSource{
		seeds: seeds,
		nonce: nonce,
		gen:   NewByteGenerator(seeds.Server, seeds.Client, nonce, 0),
	}
}

// Draw returns the next float of the current nonce.
func (s *SeededSource) Draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.NextFloat()
}

// Advance moves to the next nonce and resets the cursor.
func (s *SeededSource) Advance() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce++
	s.gen = NewByteGenerator(s.seeds.Server, s.seeds.Client, s.nonce, 0)
	return s.nonce
}

// Nonce returns the nonce currently being drawn from.
func (s *SeededSource) Nonce() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// Reseed swaps in a new seed pair and restarts at nonce 0. It returns the
// previous seeds so the old server seed can be revealed.
func (s *SeededSource) Reseed(seeds Seeds) Seeds {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.seeds
	s.seeds = seeds
	s.nonce = 0
	s.gen = NewByteGenerator(seeds.Server, seeds.Client, 0, 0)
	return prev
}

// ServerSeedHash returns the commitment for the active server seed.
func (s *SeededSource) ServerSeedHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HashServerSeed(s.seeds.Server)
}

// ClientSeed returns the active client seed.
func (s *SeededSource) ClientSeed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeds.Client
}

// CryptoSource draws from crypto/rand using the top 53 bits of a uint64.
type CryptoSource struct{}

func (CryptoSource) Draw() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("engine: crypto/rand failed: %v", err))
	}
	return float64(binary.BigEndian.Uint64(buf[:])>>11) / (1 << 53)
}

// Sequence replays a fixed list of draws, cycling when exhausted.
// It is used to force outcomes when replaying or testing a round.
type Sequence struct {
	mu    sync.Mutex
	draws []float64
	pos   int
}

// NewSequence panics if any draw falls outside [0, 1).
func NewSequence(draws ...float64) *Sequence {
	for _, d := range draws {
		if d < 0 || d >= 1 {
			panic(fmt.Sprintf("engine: sequence draw %v out of range [0,1)", d))
		}
	}
	if len(draws) == 0 {
		draws = []float64{0}
	}
	return &Sequence{draws: draws}
}

func (s *Sequence) Draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.draws[s.pos%len(s.draws)]
	s.pos++
	return d
}

// Consumed reports how many draws have been taken.
func (s *Sequence) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}
