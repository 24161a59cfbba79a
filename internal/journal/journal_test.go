package journal

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marpelink-escrow-server/internal/ledger"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func receipt(t *testing.T, height uint64, prev string) ledger.Receipt {
	t.Helper()
	r := ledger.Receipt{
		Height:    height,
		PrevHash:  prev,
		Operation: "transfer",
		Sender:    "0x1111111111111111111111111111111111111111",
		Events: []ledger.Event{{Name: "Transfer", Args: map[string]any{
			"value": int64(9007199254740993),
		}}},
		Timestamp: 1700000000 + int64(height),
	}
	hash, err := r.ComputeHash()
	require.NoError(t, err)
	r.TxHash = hash
	return r
}

func TestEmptyJournal(t *testing.T) {
	j := openTemp(t)

	head, err := j.Head()
	require.NoError(t, err)
	assert.Nil(t, head)

	_, err = j.ByHeight(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = j.ByHash("0xdead")
	assert.ErrorIs(t, err, ErrNotFound)

	rs, err := j.Since(0, 10)
	require.NoError(t, err)
	assert.Empty(t, rs)
}

func TestAppendAndLookup(t *testing.T) {
	j := openTemp(t)

	r1 := receipt(t, 1, "")
	r2 := receipt(t, 2, r1.TxHash)
	r3 := receipt(t, 3, r2.TxHash)
	for _, r := range []ledger.Receipt{r1, r2, r3} {
		require.NoError(t, j.Append(r))
	}

	head, err := j.Head()
	require.NoError(t, err)
	assert.Equal(t, r3.TxHash, head.TxHash)

	got, err := j.ByHash(r2.TxHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Height)
	assert.Equal(t, r1.TxHash, got.PrevHash)
	assert.Equal(t, json.Number("9007199254740993"), got.Events[0].Args["value"])

	rs, err := j.Since(1, 0)
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, uint64(2), rs[0].Height)
	assert.Equal(t, uint64(3), rs[1].Height)

	rs, err = j.Since(0, 1)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, uint64(1), rs[0].Height)
}

func TestAppendRejectsGaps(t *testing.T) {
	j := openTemp(t)

	require.NoError(t, j.Append(receipt(t, 1, "")))
	err := j.Append(receipt(t, 3, ""))
	assert.ErrorContains(t, err, "does not follow")
	err = j.Append(receipt(t, 1, ""))
	assert.Error(t, err)
}

func TestReopenKeepsHead(t *testing.T) {
	dir := t.TempDir()
	j, err := Open(dir)
	require.NoError(t, err)
	r1 := receipt(t, 1, "")
	require.NoError(t, j.Append(r1))
	require.NoError(t, j.Close())

	j, err = Open(dir)
	require.NoError(t, err)
	defer j.Close()
	head, err := j.Head()
	require.NoError(t, err)
	assert.Equal(t, r1.TxHash, head.TxHash)
}

func TestSinceMaxHeightIsEmpty(t *testing.T) {
	j := openTemp(t)
	r1 := receipt(t, 1, "")
	require.NoError(t, j.Append(r1))
	require.NoError(t, j.Append(receipt(t, 2, r1.TxHash)))

	rs, err := j.Since(math.MaxUint64, 0)
	require.NoError(t, err)
	assert.Empty(t, rs)

	rs, err = j.Since(math.MaxUint64-1, 0)
	require.NoError(t, err)
	assert.Empty(t, rs)
}
