package hal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Slot names a boot slot.
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

const bootEnvFile = "bootenv.yaml"

// ErrSlotBusy is returned when a write is already open.
var ErrSlotBusy = errors.New("inactive slot is already being written")

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

// SlotRecord describes the image held by a slot.
type SlotRecord struct {
	Version   string    `yaml:"version"`
	Size      int64     `yaml:"size"`
	Bootable  bool      `yaml:"bootable"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// BootEnv is the persisted boot environment, the file-backed stand-in for
// bootloader variables.
type BootEnv struct {
	Active   Slot                `yaml:"active"`
	NextBoot Slot                `yaml:"next_boot"`
	Slots    map[Slot]SlotRecord `yaml:"slots"`
}

// SlotStore keeps two image files and a boot environment in a directory.
// The active slot is never opened for writing.
type SlotStore struct {
	dir string

	mu      sync.Mutex
	env     BootEnv
	writing bool
}

var _ core.Flasher = (*SlotStore)(nil)

// OpenSlotStore loads the store in dir, initializing it with the factory
// version in slot a on first use.
func OpenSlotStore(dir, factoryVersion string) (*SlotStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}

	s := &SlotStore{dir: dir}

	data, err := os.ReadFile(s.path(bootEnvFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.env = BootEnv{
			Active:   SlotA,
			NextBoot: SlotA,
			Slots: map[Slot]SlotRecord{
				SlotA: {Version: factoryVersion, Bootable: true},
				SlotB: {},
			},
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		log.Info("Initialized slot store", "dir", dir, "version", factoryVersion)
	case err != nil:
		return nil, fmt.Errorf("read boot environment: %w", err)
	default:
		if s.env, err = parseBootEnv(data); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// ReadBootEnv loads the boot environment in dir without creating it.
func ReadBootEnv(dir string) (BootEnv, error) {
	data, err := os.ReadFile(filepath.Join(dir, bootEnvFile))
	if err != nil {
		return BootEnv{}, fmt.Errorf("read boot environment: %w", err)
	}
	return parseBootEnv(data)
}

func parseBootEnv(data []byte) (BootEnv, error) {
	var env BootEnv
	if err := yaml.Unmarshal(data, &env); err != nil {
		return BootEnv{}, fmt.Errorf("parse boot environment: %w", err)
	}
	if err := env.validate(); err != nil {
		return BootEnv{}, fmt.Errorf("invalid boot environment: %w", err)
	}
	return env, nil
}

func (e *BootEnv) validate() error {
	for _, s := range []Slot{e.Active, e.NextBoot} {
		if s != SlotA && s != SlotB {
			return fmt.Errorf("unknown slot %q", s)
		}
	}
	if e.Slots == nil {
		e.Slots = map[Slot]SlotRecord{}
	}
	return nil
}

// Boot plays the bootloader: it activates the next-boot slot when it holds
// a bootable image. It reports whether the active slot changed.
func (s *SlotStore) Boot() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.env.NextBoot
	if next == s.env.Active {
		return false, nil
	}
	if !s.env.Slots[next].Bootable {
		log.Warn("Next boot slot is not bootable, staying on active slot", "slot", next)
		s.env.NextBoot = s.env.Active
		return false, s.save()
	}

	prev := s.env.Active
	s.env.Active = next
	if err := s.save(); err != nil {
		s.env.Active = prev
		return false, err
	}

	log.Info("Switched boot slot", "from", prev, "to", next, "version", s.env.Slots[next].Version)
	return true, nil
}

// FirmwareVersion returns the version recorded for the active slot.
func (s *SlotStore) FirmwareVersion() core.Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Version(s.env.Slots[s.env.Active].Version)
}

// Env returns a copy of the boot environment.
func (s *SlotStore) Env() BootEnv {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.env
	env.Slots = make(map[Slot]SlotRecord, len(s.env.Slots))
	for k, v := range s.env.Slots {
		env.Slots[k] = v
	}
	return env
}

// ImagePath is the file holding the image of slot.
func (s *SlotStore) ImagePath(slot Slot) string {
	return s.path(fmt.Sprintf("slot-%s.img", slot))
}

func (s *SlotStore) BeginWrite(ctx context.Context, meta core.SlotMeta) (core.SlotWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writing {
		return nil, ErrSlotBusy
	}

	target := s.env.Active.Other()

	// The target is about to be overwritten: it must not be booted into
	// until this write is committed.
	s.env.Slots[target] = SlotRecord{}
	if s.env.NextBoot == target {
		s.env.NextBoot = s.env.Active
	}
	if err := s.save(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(s.ImagePath(target)+".part", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open slot %s: %w", target, err)
	}

	s.writing = true
	log.Debug("Opened inactive slot", "slot", target, "version", meta.Version, "expected", meta.ExpectedSize)

	return &slotWriter{store: s, slot: target, meta: meta, f: f}, nil
}

func (s *SlotStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// save writes the boot environment atomically. Callers hold mu.
func (s *SlotStore) save() error {
	data, err := yaml.Marshal(&s.env)
	if err != nil {
		return fmt.Errorf("encode boot environment: %w", err)
	}

	tmp := s.path(bootEnvFile + ".tmp")
	if err := writeSync(tmp, data); err != nil {
		return fmt.Errorf("write boot environment: %w", err)
	}
	if err := os.Rename(tmp, s.path(bootEnvFile)); err != nil {
		return fmt.Errorf("replace boot environment: %w", err)
	}
	return nil
}

func writeSync(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

type slotWriter struct {
	store   *SlotStore
	slot    Slot
	meta    core.SlotMeta
	f       *os.File
	written int64
	done    bool
}

func (w *slotWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, os.ErrClosed
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *slotWriter) Commit() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true

	part := w.f.Name()
	if err := w.f.Sync(); err != nil {
		w.discard()
		return fmt.Errorf("sync slot %s: %w", w.slot, err)
	}
	if err := w.f.Close(); err != nil {
		w.discard()
		return fmt.Errorf("close slot %s: %w", w.slot, err)
	}

	s := w.store
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.writing = false }()

	if err := os.Rename(part, s.ImagePath(w.slot)); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("install slot %s image: %w", w.slot, err)
	}

	s.env.Slots[w.slot] = SlotRecord{
		Version:   string(w.meta.Version),
		Size:      w.written,
		Bootable:  true,
		UpdatedAt: time.Now().UTC(),
	}
	s.env.NextBoot = w.slot
	if err := s.save(); err != nil {
		s.env.Slots[w.slot] = SlotRecord{}
		s.env.NextBoot = s.env.Active
		return err
	}

	log.Info("Committed slot", "slot", w.slot, "version", w.meta.Version, "bytes", w.written)
	return nil
}

func (w *slotWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	return w.discard()
}

func (w *slotWriter) discard() error {
	_ = w.f.Close()
	err := os.Remove(w.f.Name())
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}

	w.store.mu.Lock()
	w.store.writing = false
	w.store.mu.Unlock()

	return err
}
