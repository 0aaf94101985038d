package wallet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndRecvOutputs(t *testing.T) {
	w := New(time.Minute)
	subject := []byte("subject-a")
	script := []byte("script-a")

	w.AddOutputs(subject, []Output{{Script: script, Amount: 1000, MatchAmount: true}})
	err := w.RecvOutputs(subject, []Output{{Script: script, Amount: 1000}})
	require.NoError(t, err)

	// entry consumed: a second recv fails.
	err = w.RecvOutputs(subject, []Output{{Script: script, Amount: 1000}})
	assert.ErrorIs(t, err, ErrUnexpectedOutputs)
}

func TestRecvOutputsRejectsAmountMismatch(t *testing.T) {
	w := New(time.Minute)
	subject := []byte("subject-b")
	script := []byte("script-b")

	w.AddOutputs(subject, []Output{{Script: script, Amount: 1000, MatchAmount: true}})
	err := w.RecvOutputs(subject, []Output{{Script: script, Amount: 999}})
	assert.ErrorIs(t, err, ErrUnexpectedOutputs)
}

func TestRecvOutputsWithoutEntry(t *testing.T) {
	w := New(time.Minute)
	err := w.RecvOutputs([]byte("unknown"), nil)
	assert.ErrorIs(t, err, ErrUnexpectedOutputs)
}

func TestAddOutputsReplacesEntry(t *testing.T) {
	w := New(time.Minute)
	subject := []byte("subject-c")
	scriptOld := []byte("old")
	scriptNew := []byte("new")

	w.AddOutputs(subject, []Output{{Script: scriptOld}})
	w.AddOutputs(subject, []Output{{Script: scriptNew}})

	err := w.RecvOutputs(subject, []Output{{Script: scriptOld}})
	assert.ErrorIs(t, err, ErrUnexpectedOutputs)

	err = w.RecvOutputs(subject, []Output{{Script: scriptNew}})
	assert.NoError(t, err)
}

func TestEntryExpires(t *testing.T) {
	w := New(20 * time.Millisecond)
	subject := []byte("subject-d")
	w.AddOutputs(subject, []Output{{Script: []byte("x")}})

	time.Sleep(60 * time.Millisecond)

	err := w.RecvOutputs(subject, []Output{{Script: []byte("x")}})
	assert.ErrorIs(t, err, ErrUnexpectedOutputs)
}
