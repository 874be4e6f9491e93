package model

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_InsertAtCurrentVersion(t *testing.T) {
	doc := NewDocument("paper", "alice")

	pos := doc.Insert(0, "hello", 0)

	// An edit issued against the current version applies untransformed.
	assert.Equal(t, 0, pos)
	assert.Equal(t, "hello", doc.Text())
	assert.Equal(t, 1, doc.Version())
	assert.Equal(t, doc.Version(), doc.HistoryLen())
}

func TestDocument_ConcurrentInsertsSameVersion(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "a", 0)
	doc.Insert(1, "b", 1)
	doc.Insert(2, "c", 2)
	require.Equal(t, "abc", doc.Text())
	require.Equal(t, 3, doc.Version())

	// Alice and Bob both insert at position 1 against version 3. The
	// first one in wins the position; the second is pushed right past it.
	posA := doc.Insert(1, "X", 3)
	assert.Equal(t, 1, posA)
	assert.Equal(t, "aXbc", doc.Text())
	assert.Equal(t, 4, doc.Version())

	posB := doc.Insert(1, "Y", 3)
	assert.Equal(t, 2, posB)
	assert.Equal(t, "aXYbc", doc.Text())
	assert.Equal(t, 5, doc.Version())
}

func TestDocument_InsertThenStaleDelete(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "hello", 0)

	// A appends "!" against version 1, then B deletes the first two
	// characters against the same version.
	doc.Insert(5, "!", 1)
	require.Equal(t, "hello!", doc.Text())

	pos, length := doc.Delete(0, 2, 1)
	assert.Equal(t, 0, pos)
	assert.Equal(t, 2, length)
	assert.Equal(t, "llo!", doc.Text())
	assert.Equal(t, 3, doc.Version())
}

func TestDocument_StaleInsertAfterDelete(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "abcdef", 0)

	// Delete "bcd" at version 1, then apply an insert that was aimed at
	// position 4 of the old text; the deletion was wholly before it.
	doc.Delete(1, 3, 1)
	require.Equal(t, "aef", doc.Text())

	pos := doc.Insert(4, "X", 1)
	assert.Equal(t, 1, pos)
	assert.Equal(t, "aXef", doc.Text())
}

func TestDocument_StraddlingDeleteClampsInsert(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "abcdef", 0)

	// The deletion removes the region the stale insert pointed into; the
	// insert snaps to the start of the removed range.
	doc.Delete(1, 4, 1)
	require.Equal(t, "af", doc.Text())

	pos := doc.Insert(3, "X", 1)
	assert.Equal(t, 1, pos)
	assert.Equal(t, "aXf", doc.Text())
}

func TestDocument_InsertClampedToText(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "ab", 0)

	pos := doc.Insert(99, "X", doc.Version())
	assert.Equal(t, 2, pos)
	assert.Equal(t, "abX", doc.Text())
}

func TestDocument_CollapsedDeleteStillBumpsVersion(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "ab", 0)
	require.Equal(t, 1, doc.Version())

	pos, length := doc.Delete(5, 3, doc.Version())
	assert.Equal(t, 2, pos)
	assert.Equal(t, 0, length)
	assert.Equal(t, "ab", doc.Text())
	// Clients still observe a version tick for the no-op.
	assert.Equal(t, 2, doc.Version())
	assert.Equal(t, 2, doc.HistoryLen())
}

func TestDocument_DeleteShrinksToText(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Insert(0, "abcd", 0)

	pos, length := doc.Delete(2, 10, doc.Version())
	assert.Equal(t, 2, pos)
	assert.Equal(t, 2, length)
	assert.Equal(t, "ab", doc.Text())
}

func TestDocument_AddCollaboratorIdempotent(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.AddCollaborator("bob")
	doc.AddCollaborator("bob")
	doc.AddCollaborator("alice")

	assert.Equal(t, []string{"alice", "bob"}, doc.Collaborators())
	assert.Equal(t, "alice, bob", doc.CollabString())
}

func TestDocument_ChatAppend(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.AppendChat("alice : hi\n")
	doc.AppendChat("bob : hey\n")

	assert.Equal(t, "alice : hi\nbob : hey\n", doc.Chat())
}

func TestDocument_DateFormat(t *testing.T) {
	doc := NewDocument("paper", "alice")
	doc.Touch()

	assert.Regexp(t, regexp.MustCompile(`^\d{1,2}:\d{2} (AM|PM) , \d{1,2}/\d{1,2}$`), doc.Date())
}

func TestNewDocument_CreatorIsFirstCollaborator(t *testing.T) {
	doc := NewDocument("paper", "alice")

	assert.Equal(t, "alice", doc.Creator())
	assert.Equal(t, []string{"alice"}, doc.Collaborators())
	assert.Equal(t, 0, doc.Version())
	assert.Equal(t, "", doc.Text())
}
