// Package journal stores committed ledger receipts in LevelDB.
//
// Keys:
//   - "tx_<height>"   receipt JSON, height zero-padded so keys sort in commit order
//   - "hash_<txHash>" height of the receipt with that hash
//   - "height_latest" height of the newest receipt
package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"marpelink-escrow-server/internal/ledger"
)

// ErrNotFound is returned when no receipt matches a lookup.
var ErrNotFound = errors.New("receipt not found")

const latestKey = "height_latest"

// Journal is an append-only receipt log.
type Journal struct {
	db *leveldb.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func txKey(height uint64) []byte {
	return []byte(fmt.Sprintf("tx_%020d", height))
}

func hashKey(hash string) []byte {
	return []byte("hash_" + hash)
}

// Append stores r. Heights must be appended in order without gaps.
func (j *Journal) Append(r ledger.Receipt) error {
	latest, err := j.latestHeight()
	if err != nil {
		return err
	}
	if r.Height != latest+1 {
		return fmt.Errorf("append receipt: height %d does not follow %d", r.Height, latest)
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	height := strconv.FormatUint(r.Height, 10)

	batch := new(leveldb.Batch)
	batch.Put(txKey(r.Height), data)
	batch.Put(hashKey(r.TxHash), []byte(height))
	batch.Put([]byte(latestKey), []byte(height))
	return j.db.Write(batch, nil)
}

func (j *Journal) latestHeight() (uint64, error) {
	v, err := j.db.Get([]byte(latestKey), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(v), 10, 64)
}

// Head returns the newest receipt, or nil for an empty journal.
func (j *Journal) Head() (*ledger.Receipt, error) {
	h, err := j.latestHeight()
	if err != nil || h == 0 {
		return nil, err
	}
	return j.ByHeight(h)
}

// ByHeight returns the receipt committed at height.
func (j *Journal) ByHeight(height uint64) (*ledger.Receipt, error) {
	data, err := j.db.Get(txKey(height), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

// ByHash returns the receipt with the given transaction hash.
func (j *Journal) ByHash(hash string) (*ledger.Receipt, error) {
	v, err := j.db.Get(hashKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	height, err := strconv.ParseUint(string(v), 10, 64)
	if err != nil {
		return nil, err
	}
	return j.ByHeight(height)
}

// Since returns up to limit receipts with height greater than after, oldest first.
func (j *Journal) Since(after uint64, limit int) ([]ledger.Receipt, error) {
	if after == math.MaxUint64 {
		return []ledger.Receipt{}, nil
	}
	iter := j.db.NewIterator(&util.Range{Start: txKey(after + 1), Limit: []byte("tx_~")}, nil)
	defer iter.Release()

	receipts := []ledger.Receipt{}
	for iter.Next() {
		if limit > 0 && len(receipts) >= limit {
			break
		}
		r, err := decode(iter.Value())
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, *r)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return receipts, nil
}

func decode(data []byte) (*ledger.Receipt, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var r ledger.Receipt
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &r, nil
}
