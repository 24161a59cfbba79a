package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
)

// Event is a named log entry emitted by a committed transaction.
type Event struct {
	Name string         `json:"event"`
	Args map[string]any `json:"args"`
}

// Receipt records one committed transaction. Receipts form a hash chain through PrevHash.
type Receipt struct {
	Height    uint64  `json:"height"`
	TxHash    string  `json:"txHash"`
	PrevHash  string  `json:"prevHash"`
	Operation string  `json:"operation"`
	Sender    string  `json:"sender"`
	Events    []Event `json:"events"`
	Timestamp int64   `json:"timestamp"`
}

// ComputeHash hashes every receipt field except TxHash itself.
func (r Receipt) ComputeHash() (string, error) {
	events, err := json.Marshal(r.Events)
	if err != nil {
		return "", err
	}
	record := strconv.FormatUint(r.Height, 10) +
		r.PrevHash +
		r.Operation +
		r.Sender +
		string(events) +
		strconv.FormatInt(r.Timestamp, 10)

	h := sha256.New()
	h.Write([]byte(record))
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// Event returns the first event with the given name.
func (r Receipt) Event(name string) (Event, bool) {
	for _, e := range r.Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}
