package engine

import (
	"math"
	"testing"
)

func TestFloats(t *testing.T) {
	tests := []struct {
		name    string
		nonce   uint64
		cursor  uint64
		count   int
		wantLen int
	}{
		{name: "single float", nonce: 1, cursor: 0, count: 1, wantLen: 1},
		{name: "multiple floats", nonce: 1, cursor: 0, count: 8, wantLen: 8},
		{name: "cursor crosses a round boundary", nonce: 1, cursor: 31, count: 2, wantLen: 2},
		{name: "more than one hmac block", nonce: 7, cursor: 0, count: 24, wantLen: 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			floats := Floats("test_server_seed", "test_client_seed", tt.nonce, tt.cursor, tt.count)
			if len(floats) != tt.wantLen {
				t.Fatalf("Floats() returned %d floats, want %d", len(floats), tt.wantLen)
			}
			for i, f := range floats {
				if f < 0 || f >= 1 {
					t.Errorf("float %d out of range [0, 1): %f", i, f)
				}
			}
		})
	}
}

func TestFloatsDeterministic(t *testing.T) {
	a := Floats("server", "client", 42, 0, 5)
	b := Floats("server", "client", 42, 0, 5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("float %d differs between runs: %v vs %v", i, a[i], b[i])
		}
	}

	c := Floats("server", "client", 43, 0, 5)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Error("different nonces produced identical floats")
	}
}

func TestBytesToFloat(t *testing.T) {
	tests := []struct {
		name  string
		bytes [4]byte
		want  float64
	}{
		{name: "zero", bytes: [4]byte{0, 0, 0, 0}, want: 0},
		{name: "half", bytes: [4]byte{128, 0, 0, 0}, want: 0.5},
		{name: "quarter", bytes: [4]byte{64, 0, 0, 0}, want: 0.25},
		{name: "max", bytes: [4]byte{255, 255, 255, 255}, want: 1 - math.Pow(2, -32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToFloat(tt.bytes)
			if math.Abs(got-tt.want) > 1e-15 {
				t.Errorf("bytesToFloat(%v) = %v, want %v", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestByteGeneratorRoundBoundary(t *testing.T) {
	bg := NewByteGenerator("server", "client", 1, 0)
	first := make([]byte, 40)
	for i := range first {
		first[i] = bg.Next()
	}

	// Starting at cursor 32 must land on the second HMAC block.
	bg2 := NewByteGenerator("server", "client", 1, 32)
	for i := 32; i < 40; i++ {
		if b := bg2.Next(); b != first[i] {
			t.Fatalf("byte %d = %d, want %d", i, b, first[i])
		}
	}
}

func TestSeededSourceAdvance(t *testing.T) {
	seeds := Seeds{Server: "server", Client: "client"}
	src := NewSeededSource(seeds, 0)

	if got := src.Advance(); got != 1 {
		t.Fatalf("Advance() = %d, want 1", got)
	}
	want := Floats(seeds.Server, seeds.Client, 1, 0, 3)
	for i, w := range want {
		if got := src.Draw(); got != w {
			t.Errorf("draw %d = %v, want %v", i, got, w)
		}
	}

	src.Advance()
	if src.Nonce() != 2 {
		t.Errorf("Nonce() = %d, want 2", src.Nonce())
	}
	if got, w := src.Draw(), Floats(seeds.Server, seeds.Client, 2, 0, 1)[0]; got != w {
		t.Errorf("first draw of nonce 2 = %v, want %v", got, w)
	}
}

func TestSeededSourceReseed(t *testing.T) {
	src := NewSeededSource(Seeds{Server: "old", Client: "c"}, 10)
	src.Advance()

	prev := src.Reseed(Seeds{Server: "new", Client: "c"})
	if prev.Server != "old" {
		t.Errorf("Reseed returned %q, want old", prev.Server)
	}
	if src.Nonce() != 0 {
		t.Errorf("nonce after reseed = %d, want 0", src.Nonce())
	}
	if src.ServerSeedHash() != HashServerSeed("new") {
		t.Error("server seed hash not updated")
	}
}

func TestHashServerSeed(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := HashServerSeed("abc"); got != want {
		t.Errorf("HashServerSeed(abc) = %s, want %s", got, want)
	}
}

func TestCryptoSourceRange(t *testing.T) {
	var src CryptoSource
	for i := 0; i < 10000; i++ {
		if d := src.Draw(); d < 0 || d >= 1 {
			t.Fatalf("draw %d out of range: %v", i, d)
		}
	}
}

func TestSequenceCycles(t *testing.T) {
	seq := NewSequence(0.1, 0.2)
	got := []float64{seq.Draw(), seq.Draw(), seq.Draw()}
	want := []float64{0.1, 0.2, 0.1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("draw %d = %v, want %v", i, got[i], want[i])
		}
	}
	if seq.Consumed() != 3 {
		t.Errorf("Consumed() = %d, want 3", seq.Consumed())
	}
}

func TestSequenceRejectsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewSequence(1.0) did not panic")
		}
	}()
	NewSequence(1.0)
}

func BenchmarkFloats(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Floats("server", "client", uint64(i), 0, 8)
	}
}

func BenchmarkSeededSourceDraw(b *testing.B) {
	src := NewSeededSource(Seeds{Server: "server", Client: "client"}, 0)
	for i := 0; i < b.N; i++ {
		if i%8 == 0 {
			src.Advance()
		}
		src.Draw()
	}
}
