package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestSubtreeFolderIDs(t *testing.T) {
	folders := []Folder{
		{ID: "root"},
		{ID: "a", ParentFolderID: ptr("root")},
		{ID: "b", ParentFolderID: ptr("root")},
		{ID: "a1", ParentFolderID: ptr("a")},
		{ID: "a2", ParentFolderID: ptr("a")},
		{ID: "other"},
		{ID: "other-child", ParentFolderID: ptr("other")},
	}
	got := SubtreeFolderIDs(folders, "root")
	require.ElementsMatch(t, []string{"root", "a", "b", "a1", "a2"}, got)

	// Every id appears exactly once.
	seen := make(map[string]int)
	for _, id := range got {
		seen[id]++
	}
	for id, count := range seen {
		require.Equal(t, 1, count, "id %s appeared %d times", id, count)
	}
}

func TestSubtreeFolderIDsLeaf(t *testing.T) {
	folders := []Folder{
		{ID: "root"},
		{ID: "leaf", ParentFolderID: ptr("root")},
	}
	require.Equal(t, []string{"leaf"}, SubtreeFolderIDs(folders, "leaf"))
}

func TestSubtreeFolderIDsUnknownRoot(t *testing.T) {
	require.Equal(t, []string{"ghost"}, SubtreeFolderIDs(nil, "ghost"))
}
