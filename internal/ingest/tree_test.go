package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeLooseFilesAndFolder(t *testing.T) {
	entries := []Entry{
		{RelPath: "a.pdf", Data: []byte("a")},
		{RelPath: "b.txt", Data: []byte("b")},
		{RelPath: "c.md", Data: []byte("c")},
		{RelPath: "reports/q1.pdf", Data: []byte("q1")},
		{RelPath: "reports/sub/q2.pdf", Data: []byte("q2")},
		{RelPath: "reports/.DS_Store", Data: []byte("junk")},
	}
	items := Normalize(entries, "Work")
	require.Len(t, items, 4)

	require.Equal(t, "a.pdf", items[0].ItemName())
	require.Equal(t, "b.txt", items[1].ItemName())
	require.Equal(t, "c.md", items[2].ItemName())

	folder, ok := items[3].(*FolderUpload)
	require.True(t, ok)
	require.Equal(t, "reports", folder.Name)
	require.Equal(t, "Work", folder.Category)
	require.Len(t, folder.Children, 2)
	require.Equal(t, "q1.pdf", folder.Children[0].RelPath)
	require.Equal(t, "sub/q2.pdf", folder.Children[1].RelPath)
}

func TestNormalizeDropsHiddenAtEveryDepth(t *testing.T) {
	entries := []Entry{
		{RelPath: ".env", Data: []byte("secret")},
		{RelPath: "__MACOSX/._a.pdf", Data: []byte("fork")},
		{RelPath: "docs/.git/config", Data: []byte("conf")},
		{RelPath: "docs/readme.md", Data: []byte("hi")},
	}
	items := Normalize(entries, "")
	require.Len(t, items, 1)
	folder := items[0].(*FolderUpload)
	require.Equal(t, "docs", folder.Name)
	require.Len(t, folder.Children, 1)
	require.Equal(t, "readme.md", folder.Children[0].RelPath)
}

func TestNormalizeRootNameCollisionLastWins(t *testing.T) {
	entries := []Entry{
		{RelPath: "report", Data: []byte("the loose file")},
		{RelPath: "other.txt", Data: []byte("x")},
		{RelPath: "report/inner.txt", Data: []byte("folder content")},
	}
	items := Normalize(entries, "")
	require.Len(t, items, 2)

	// The later folder replaced the loose file but kept its position.
	folder, ok := items[0].(*FolderUpload)
	require.True(t, ok)
	require.Equal(t, "report", folder.Name)
	require.Len(t, folder.Children, 1)

	_, ok = items[1].(*FileUpload)
	require.True(t, ok)
	require.Equal(t, "other.txt", items[1].ItemName())
}

func TestNormalizeFileMetadata(t *testing.T) {
	entries := []Entry{
		{RelPath: "paper.pdf", Data: []byte("12345")},
	}
	items := Normalize(entries, "Research")
	require.Len(t, items, 1)
	file := items[0].(*FileUpload)
	require.Equal(t, int64(5), file.Size)
	require.Equal(t, "application/pdf", file.MimeType)
	require.Equal(t, "Research", file.Category)
	require.Equal(t, StatusPending, file.Snapshot().Status)
}
