package indexdb

import (
	"database/sql"
	"errors"
	"os"
)

// Reader runs queries against an index file, typically one written by a
// server that has since stopped.
type Reader struct {
	db *sql.DB
}

type ChainRow struct {
	Tick      uint64
	ChainID   uint64
	Length    int
	Stability float64
	Valid     bool
	Code      string
}

type TickRow struct {
	Tick        uint64
	Tokens      int
	Chains      int
	ValidChains int
	BondsFormed uint64
	BondsBroken uint64
}

type SnapshotRow struct {
	Tick   uint64
	Path   string
	Seed   int64
	Tokens int
	Chains int
}

func OpenReader(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// LatestTick returns the highest indexed tick; ok is false for an empty index.
func (r *Reader) LatestTick() (tick uint64, ok bool, err error) {
	var v sql.NullInt64
	if err := r.db.QueryRow(`SELECT MAX(tick) FROM ticks`).Scan(&v); err != nil {
		return 0, false, err
	}
	if !v.Valid {
		return 0, false, nil
	}
	return uint64(v.Int64), true, nil
}

// TopChains lists the chains recorded at tick, most stable first.
func (r *Reader) TopChains(tick uint64, limit int) ([]ChainRow, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`SELECT tick,chain_id,length,stability,valid,code FROM chains
		WHERE tick = ? ORDER BY stability DESC, chain_id ASC LIMIT ?`, int64(tick), limit)
	if err != nil {
		return nil, err
	}
	return scanChains(rows)
}

// ChainHistory lists every recorded sighting of one chain, oldest first.
func (r *Reader) ChainHistory(chainID uint64) ([]ChainRow, error) {
	rows, err := r.db.Query(`SELECT tick,chain_id,length,stability,valid,code FROM chains
		WHERE chain_id = ? ORDER BY tick ASC`, int64(chainID))
	if err != nil {
		return nil, err
	}
	return scanChains(rows)
}

func scanChains(rows *sql.Rows) ([]ChainRow, error) {
	defer rows.Close()
	var out []ChainRow
	for rows.Next() {
		var (
			c         ChainRow
			tick, id  int64
			validFlag int
		)
		if err := rows.Scan(&tick, &id, &c.Length, &c.Stability, &validFlag, &c.Code); err != nil {
			return nil, err
		}
		c.Tick, c.ChainID, c.Valid = uint64(tick), uint64(id), validFlag != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ticks lists indexed ticks in [from, to], oldest first.
func (r *Reader) Ticks(from, to uint64) ([]TickRow, error) {
	rows, err := r.db.Query(`SELECT tick,tokens,chains,valid_chains,bonds_formed,bonds_broken FROM ticks
		WHERE tick >= ? AND tick <= ? ORDER BY tick ASC`, int64(from), int64(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var (
			t                   TickRow
			tick, formed, broke int64
		)
		if err := rows.Scan(&tick, &t.Tokens, &t.Chains, &t.ValidChains, &formed, &broke); err != nil {
			return nil, err
		}
		t.Tick, t.BondsFormed, t.BondsBroken = uint64(tick), uint64(formed), uint64(broke)
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest recorded snapshot.
func (r *Reader) LatestSnapshot() (SnapshotRow, bool, error) {
	var (
		s    SnapshotRow
		tick int64
	)
	err := r.db.QueryRow(`SELECT tick,path,seed,tokens,chains FROM snapshots ORDER BY tick DESC LIMIT 1`).
		Scan(&tick, &s.Path, &s.Seed, &s.Tokens, &s.Chains)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, false, nil
	}
	if err != nil {
		return SnapshotRow{}, false, err
	}
	s.Tick = uint64(tick)
	return s, true, nil
}

// ConfigDigest returns the stored digest of a config entry ("grammar" or "tuning").
func (r *Reader) ConfigDigest(name string) (string, error) {
	var d string
	err := r.db.QueryRow(`SELECT digest FROM configs WHERE name = ?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}
