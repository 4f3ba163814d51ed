package ingest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestItemProgressNeverDecreases(t *testing.T) {
	file := &FileUpload{ID: "f1", Name: "a.txt"}
	file.setProgress(40)
	file.setProgress(20)
	require.Equal(t, 40, file.Snapshot().Progress)

	file.setProgress(90)
	file.setProgress(150)
	require.Equal(t, 100, file.Snapshot().Progress)

	file.setProgress(-5)
	require.Equal(t, 100, file.Snapshot().Progress)
}

func TestItemBeginClaimsOnce(t *testing.T) {
	file := &FileUpload{ID: "f1", Name: "a.txt"}
	file.status = StatusPending
	require.True(t, file.begin())
	require.False(t, file.begin())
	require.Equal(t, StatusUploading, file.Snapshot().Status)
}

func TestItemResetClearsOnlyItsOwnState(t *testing.T) {
	file := &FileUpload{ID: "f1", Name: "a.txt"}
	file.status = StatusPending
	require.True(t, file.begin())
	file.setProgress(30)
	file.fail(errors.New("boom"))

	snap := file.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.Error(t, snap.Err)

	file.reset()
	snap = file.Snapshot()
	require.Equal(t, StatusPending, snap.Status)
	require.Equal(t, 0, snap.Progress)
	require.NoError(t, snap.Err)
}

func TestTerminalItemIgnoresLateUpdates(t *testing.T) {
	file := &FileUpload{ID: "f1", Name: "a.txt"}
	file.status = StatusPending
	require.True(t, file.begin())
	file.fail(errors.New("boom"))

	file.setStatus(StatusCompleted)
	file.fail(errors.New("other"))
	snap := file.Snapshot()
	require.Equal(t, StatusFailed, snap.Status)
	require.EqualError(t, snap.Err, "boom")
}
