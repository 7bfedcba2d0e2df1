package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed          int64  `json:"seed"`
	TickRate      int    `json:"tick_rate_hz"`
	Size          [3]int `json:"size"`
	GrammarDigest string `json:"grammar_digest"`

	// Operational parameters captured so a resumed world behaves the same.
	SnapshotEveryTicks int `json:"snapshot_every_ticks,omitempty"`
	StatsEveryTicks    int `json:"stats_every_ticks,omitempty"`

	Tokens []TokenV1 `json:"tokens"`
	Chains []ChainV1 `json:"chains"`

	Counters CountersV1 `json:"counters"`
}

type TokenV1 struct {
	ID     uint64 `json:"id"`
	Value  string `json:"value"`
	Type   string `json:"type"`
	Pos    [3]int `json:"pos"`
	Mass   int    `json:"mass"`
	Energy int    `json:"energy"`

	Electronegativity float64 `json:"electronegativity"`
	Capacity          int     `json:"capacity"`
	Syntax            string  `json:"syntax,omitempty"`
	Semantic          string  `json:"semantic,omitempty"`

	Active  bool `json:"active"`
	Damaged bool `json:"damaged,omitempty"`

	// Bonds lists each bond once, on the endpoint with the lower id.
	Bonds []BondV1 `json:"bonds,omitempty"`
}

type BondV1 struct {
	Other    uint64  `json:"other"`
	Strength float64 `json:"strength"`
	Type     string  `json:"type"`
	FormedAt uint64  `json:"formed_at"`
}

type ChainV1 struct {
	ID           uint64   `json:"id"`
	Members      []uint64 `json:"members"`
	CreatedAt    uint64   `json:"created_at"`
	LastModified uint64   `json:"last_modified"`
}

type CountersV1 struct {
	NextToken   uint64 `json:"next_token"`
	NextChain   uint64 `json:"next_chain"`
	BondsFormed uint64 `json:"bonds_formed"`
	BondsBroken uint64 `json:"bonds_broken"`
	Spawned     uint64 `json:"spawned"`
	Deactivated uint64 `json:"deactivated"`
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, all inside one zstd stream. The file is written under a temporary
// name and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if snap.Header.Version == 0 {
		snap.Header.Version = Version
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header: %w", err)
	}
	return h, nil
}
