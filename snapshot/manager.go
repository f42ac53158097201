// Package snapshot manages point-in-time serialized core state: named
// slots persisted to disk, an in-memory quick slot, and a bounded rewind
// ring. Snapshot blobs are opaque; they are not portable across core
// versions, which is a documented compatibility boundary rather than a bug.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Snapshot-operation errors. These are always local to the calling
// Save/Load/Rewind invocation and never fatal to the runtime.
var (
	ErrUnsupported         = errors.New("snapshot: not supported by session")
	ErrSlotNotFound        = errors.New("snapshot: slot not found")
	ErrDeserializeRejected = errors.New("snapshot: state rejected by core")
	ErrInsufficientHistory = errors.New("snapshot: insufficient rewind history")
)

// Stater is the serialize/deserialize capability the manager operates on.
// A SerializeSize of 0 signals the capability is absent.
type Stater interface {
	SerializeSize() int
	Serialize() ([]byte, error)
	Deserialize(data []byte) error
}

// Slot identifies a snapshot slot. Non-negative values are named slots
// persisted to disk; SlotQuick is held in memory only.
type Slot int

// SlotQuick is the in-memory quick slot.
const SlotQuick Slot = -1

// String returns the slot name used in filenames and logs.
func (s Slot) String() string {
	if s == SlotQuick {
		return "quick"
	}
	return strconv.Itoa(int(s))
}

// Metadata is the optional sidecar record accompanying a named slot.
// Load never requires it.
type Metadata struct {
	SavedAt     time.Time `json:"saved_at"`
	Description string    `json:"description,omitempty"`
}

// Manager captures and restores snapshots for one piece of content.
// It is not safe for concurrent use; callers invoking operations while a
// frame pump is active must pause the pump first.
type Manager struct {
	dir       string
	contentID string
	st        Stater

	quick     []byte
	quickMeta Metadata
}

// NewManager creates a snapshot manager writing named slots under
// dir/<contentID>/.
func NewManager(dir, contentID string, st Stater) *Manager {
	return &Manager{dir: dir, contentID: contentID, st: st}
}

func (m *Manager) slotDir() string {
	return filepath.Join(m.dir, m.contentID)
}

func (m *Manager) statePath(slot Slot) string {
	return filepath.Join(m.slotDir(), fmt.Sprintf("state-%s.state", slot))
}

func (m *Manager) metaPath(slot Slot) string {
	return filepath.Join(m.slotDir(), fmt.Sprintf("state-%s.json", slot))
}

// Save serializes the current state into slot. It fails with
// ErrUnsupported when the session reports no snapshot capability.
func (m *Manager) Save(slot Slot) error {
	if m.st.SerializeSize() <= 0 {
		return ErrUnsupported
	}

	state, err := m.st.Serialize()
	if err != nil {
		return fmt.Errorf("snapshot: serialize failed: %w", err)
	}
	meta := Metadata{SavedAt: time.Now()}

	if slot == SlotQuick {
		m.quick = state
		m.quickMeta = meta
		return nil
	}

	if err := os.MkdirAll(m.slotDir(), 0755); err != nil {
		return fmt.Errorf("snapshot: failed to create slot directory: %w", err)
	}
	if err := os.WriteFile(m.statePath(slot), state, 0644); err != nil {
		return fmt.Errorf("snapshot: failed to write slot %s: %w", slot, err)
	}
	// Sidecar metadata is best-effort; a slot without one still loads.
	m.writeMeta(slot, meta)
	return nil
}

// Load restores the state stored in slot. It fails with ErrSlotNotFound
// when the slot is empty and ErrDeserializeRejected when the core refuses
// the blob (version or content mismatch).
func (m *Manager) Load(slot Slot) error {
	var state []byte
	if slot == SlotQuick {
		if m.quick == nil {
			return ErrSlotNotFound
		}
		state = m.quick
	} else {
		data, err := os.ReadFile(m.statePath(slot))
		if errors.Is(err, os.ErrNotExist) {
			return ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("snapshot: failed to read slot %s: %w", slot, err)
		}
		state = data
	}

	if err := m.st.Deserialize(state); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializeRejected, err)
	}
	return nil
}

// Delete removes the snapshot in slot.
func (m *Manager) Delete(slot Slot) error {
	if slot == SlotQuick {
		if m.quick == nil {
			return ErrSlotNotFound
		}
		m.quick = nil
		m.quickMeta = Metadata{}
		return nil
	}

	err := os.Remove(m.statePath(slot))
	if errors.Is(err, os.ErrNotExist) {
		return ErrSlotNotFound
	}
	if err != nil {
		return fmt.Errorf("snapshot: failed to delete slot %s: %w", slot, err)
	}
	os.Remove(m.metaPath(slot))
	return nil
}

// List returns the currently populated slots in ascending order, with the
// quick slot last when present.
func (m *Manager) List() []Slot {
	var slots []Slot

	entries, err := os.ReadDir(m.slotDir())
	if err == nil {
		for _, e := range entries {
			name := e.Name()
			if !strings.HasPrefix(name, "state-") || !strings.HasSuffix(name, ".state") {
				continue
			}
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "state-"), ".state"))
			if err != nil || n < 0 {
				continue
			}
			slots = append(slots, Slot(n))
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	if m.quick != nil {
		slots = append(slots, SlotQuick)
	}
	return slots
}

// Describe attaches a free-text description to a populated slot's sidecar
// metadata.
func (m *Manager) Describe(slot Slot, text string) error {
	if slot == SlotQuick {
		if m.quick == nil {
			return ErrSlotNotFound
		}
		m.quickMeta.Description = text
		return nil
	}

	if _, err := os.Stat(m.statePath(slot)); errors.Is(err, os.ErrNotExist) {
		return ErrSlotNotFound
	}
	meta, _ := m.readMeta(slot)
	meta.Description = text
	return m.writeMeta(slot, meta)
}

// Meta returns the sidecar metadata for a populated slot. Missing sidecars
// yield a zero Metadata, not an error.
func (m *Manager) Meta(slot Slot) (Metadata, error) {
	if slot == SlotQuick {
		if m.quick == nil {
			return Metadata{}, ErrSlotNotFound
		}
		return m.quickMeta, nil
	}
	if _, err := os.Stat(m.statePath(slot)); errors.Is(err, os.ErrNotExist) {
		return Metadata{}, ErrSlotNotFound
	}
	meta, _ := m.readMeta(slot)
	return meta, nil
}

func (m *Manager) readMeta(slot Slot) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(m.metaPath(slot))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func (m *Manager) writeMeta(slot Slot, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.metaPath(slot), data, 0644)
}
