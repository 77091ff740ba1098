package hal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
)

func writeImage(t *testing.T, s *SlotStore, version string, data []byte) core.SlotWriter {
	t.Helper()
	w, err := s.BeginWrite(context.Background(), core.SlotMeta{Version: core.Version(version), ExpectedSize: int64(len(data))})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	return w
}

func TestOpenSlotStoreInitializes(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSlotStore(dir, "v1.0.7")
	require.NoError(t, err)

	assert.Equal(t, core.Version("v1.0.7"), s.FirmwareVersion())
	env := s.Env()
	assert.Equal(t, SlotA, env.Active)
	assert.Equal(t, SlotA, env.NextBoot)
	assert.FileExists(t, filepath.Join(dir, bootEnvFile))

	reopened, err := OpenSlotStore(dir, "ignored")
	require.NoError(t, err)
	assert.Equal(t, core.Version("v1.0.7"), reopened.FirmwareVersion())
}

func TestCommitAndBoot(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenSlotStore(dir, "v1.0.7")
	require.NoError(t, err)

	w := writeImage(t, s, "v1.0.8", []byte("new firmware"))
	require.NoError(t, w.Commit())

	env := s.Env()
	assert.Equal(t, SlotA, env.Active)
	assert.Equal(t, SlotB, env.NextBoot)
	assert.True(t, env.Slots[SlotB].Bootable)
	assert.Equal(t, int64(12), env.Slots[SlotB].Size)

	data, err := os.ReadFile(s.ImagePath(SlotB))
	require.NoError(t, err)
	assert.Equal(t, "new firmware", string(data))
	assert.NoFileExists(t, s.ImagePath(SlotA))

	// Still running the old image until the next boot.
	assert.Equal(t, core.Version("v1.0.7"), s.FirmwareVersion())

	reopened, err := OpenSlotStore(dir, "")
	require.NoError(t, err)
	switched, err := reopened.Boot()
	require.NoError(t, err)
	assert.True(t, switched)
	assert.Equal(t, core.Version("v1.0.8"), reopened.FirmwareVersion())

	switched, err = reopened.Boot()
	require.NoError(t, err)
	assert.False(t, switched)
}

func TestAbortLeavesNextBootUnchanged(t *testing.T) {
	s, err := OpenSlotStore(t.TempDir(), "v1.0.7")
	require.NoError(t, err)

	w := writeImage(t, s, "v1.0.8", []byte("partial"))
	require.NoError(t, w.Abort())

	env := s.Env()
	assert.Equal(t, SlotA, env.NextBoot)
	assert.False(t, env.Slots[SlotB].Bootable)
	assert.NoFileExists(t, s.ImagePath(SlotB)+".part")
	assert.NoFileExists(t, s.ImagePath(SlotB))

	switched, err := s.Boot()
	require.NoError(t, err)
	assert.False(t, switched)
	assert.Equal(t, core.Version("v1.0.7"), s.FirmwareVersion())
}

func TestRewriteRevokesPendingBoot(t *testing.T) {
	s, err := OpenSlotStore(t.TempDir(), "v1.0.7")
	require.NoError(t, err)

	require.NoError(t, writeImage(t, s, "v1.0.8", []byte("one")).Commit())
	require.Equal(t, SlotB, s.Env().NextBoot)

	// A second install targets the same inactive slot; failing it must not
	// leave a half-written image as the boot target.
	w := writeImage(t, s, "v1.0.9", []byte("tw"))
	assert.Equal(t, SlotA, s.Env().NextBoot)
	require.NoError(t, w.Abort())

	assert.Equal(t, SlotA, s.Env().NextBoot)
}

func TestSingleWriter(t *testing.T) {
	s, err := OpenSlotStore(t.TempDir(), "v1.0.7")
	require.NoError(t, err)

	w := writeImage(t, s, "v1.0.8", []byte("x"))
	_, err = s.BeginWrite(context.Background(), core.SlotMeta{Version: "v1.0.9"})
	assert.True(t, errors.Is(err, ErrSlotBusy))

	require.NoError(t, w.Abort())
	require.NoError(t, w.Abort())
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)

	w2, err := s.BeginWrite(context.Background(), core.SlotMeta{Version: "v1.0.9"})
	require.NoError(t, err)
	require.NoError(t, w2.Abort())
}

func TestActiveSlotNeverWritten(t *testing.T) {
	s, err := OpenSlotStore(t.TempDir(), "v1")
	require.NoError(t, err)

	require.NoError(t, writeImage(t, s, "v2", []byte("two")).Commit())
	_, err = s.Boot()
	require.NoError(t, err)

	// Active is now b; the next image goes to a.
	require.NoError(t, writeImage(t, s, "v3", []byte("three")).Commit())

	env := s.Env()
	assert.Equal(t, SlotB, env.Active)
	assert.Equal(t, SlotA, env.NextBoot)

	data, err := os.ReadFile(s.ImagePath(SlotB))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
}

func TestOpenSlotStoreRejectsCorruptEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, bootEnvFile), []byte("active: c\nnext_boot: a\n"), 0o644))

	_, err := OpenSlotStore(dir, "v1")
	assert.ErrorContains(t, err, "unknown slot")
}

func TestReadBootEnv(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadBootEnv(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, bootEnvFile))

	s, err := OpenSlotStore(dir, "v1.0.7")
	require.NoError(t, err)
	require.NoError(t, writeImage(t, s, "v1.0.8", []byte("image")).Commit())

	env, err := ReadBootEnv(dir)
	require.NoError(t, err)
	assert.Equal(t, SlotA, env.Active)
	assert.Equal(t, SlotB, env.NextBoot)
	assert.Equal(t, "v1.0.8", env.Slots[SlotB].Version)
	assert.True(t, env.Slots[SlotB].Bootable)
}
