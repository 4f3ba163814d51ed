package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsHiddenName(t *testing.T) {
	require.True(t, IsHiddenName(".DS_Store"))
	require.True(t, IsHiddenName(".gitignore"))
	require.True(t, IsHiddenName("__MACOSX"))
	require.True(t, IsHiddenName("Thumbs.db"))
	require.True(t, IsHiddenName("thumbs.db"))
	require.True(t, IsHiddenName("desktop.ini"))
	require.False(t, IsHiddenName("report.pdf"))
	require.False(t, IsHiddenName("notes"))
	require.False(t, IsHiddenName(""))
}

func TestIsHiddenPathAppliesAtEveryDepth(t *testing.T) {
	require.True(t, IsHiddenPath(".hidden/visible.txt"))
	require.True(t, IsHiddenPath("visible/.hidden/deep.txt"))
	require.True(t, IsHiddenPath("visible/__MACOSX/resource"))
	require.True(t, IsHiddenPath("visible/sub/.DS_Store"))
	require.False(t, IsHiddenPath("visible/sub/file.txt"))
}

func TestFilterHiddenIdempotent(t *testing.T) {
	input := []string{
		"a.txt",
		".DS_Store",
		"docs/readme.md",
		"docs/.swp/file",
		"__MACOSX/junk",
		"Thumbs.db",
		"docs/guide.pdf",
	}
	once := FilterHidden(input)
	require.Equal(t, []string{"a.txt", "docs/readme.md", "docs/guide.pdf"}, once)

	twice := FilterHidden(once)
	require.Equal(t, once, twice)
}
