// Package storage archives device images so a store can be rolled back to a
// known state, or an image moved between devices.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/wearlevel/pkg/device"
)

const (
	metaPrefix  = "meta/"
	imagePrefix = "image/"
)

// Errors
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSizeMismatch     = errors.New("image size does not match device")
)

// SnapshotInfo describes an archived image.
type SnapshotInfo struct {
	ID          ksuid.KSUID `json:"id"`
	Label       string      `json:"label,omitempty"`
	Size        int         `json:"size"`
	BaseAddress uint16      `json:"base_address"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Snapshot is an archived image and its metadata.
type Snapshot struct {
	SnapshotInfo
	Image []byte `json:"-"`
}

// SnapshotStore keeps device images in a pebble database keyed by KSUID.
// KSUIDs only carry whole seconds, so ordering uses CreatedAt, which is
// strictly increasing across saves from one store.
type SnapshotStore struct {
	db    *pebble.DB
	mutex sync.Mutex
	last  time.Time
}

// NewSnapshotStore opens or creates the archive in dir.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save archives image with its metadata and returns the new snapshot ID.
func (s *SnapshotStore) Save(image []byte, label string, baseAddress uint16) (ksuid.KSUID, error) {
	now := s.stamp()
	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("failed to generate snapshot id: %w", err)
	}

	info := SnapshotInfo{
		ID:          id,
		Label:       label,
		Size:        len(image),
		BaseAddress: baseAddress,
		CreatedAt:   now,
	}

	meta, err := json.Marshal(info)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("failed to encode snapshot metadata: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(metaKey(id), meta, nil); err != nil {
		return ksuid.Nil, err
	}
	if err := batch.Set(imageKey(id), image, nil); err != nil {
		return ksuid.Nil, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return ksuid.Nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	return id, nil
}

// stamp returns the current time, nudged past the previous save when the
// clock has not moved.
func (s *SnapshotStore) stamp() time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// Load returns the snapshot with the given ID.
func (s *SnapshotStore) Load(id ksuid.KSUID) (*Snapshot, error) {
	info, err := s.info(id)
	if err != nil {
		return nil, err
	}

	data, closer, err := s.db.Get(imageKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	image := make([]byte, len(data))
	copy(image, data)

	return &Snapshot{SnapshotInfo: *info, Image: image}, nil
}

func (s *SnapshotStore) info(id ksuid.KSUID) (*SnapshotInfo, error) {
	data, closer, err := s.db.Get(metaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot metadata: %w", err)
	}
	return &info, nil
}

// List returns metadata for every snapshot, newest first. Snapshots with
// the same creation time fall back to ID order.
func (s *SnapshotStore) List() ([]SnapshotInfo, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(metaPrefix),
		UpperBound: []byte(metaPrefix + "~"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var infos []SnapshotInfo
	for iter.First(); iter.Valid(); iter.Next() {
		var info SnapshotInfo
		if err := json.Unmarshal(iter.Value(), &info); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot metadata: %w", err)
		}
		infos = append(infos, info)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return ksuid.Compare(infos[i].ID, infos[j].ID) > 0
	})

	return infos, nil
}

// Delete removes a snapshot.
func (s *SnapshotStore) Delete(id ksuid.KSUID) error {
	if _, err := s.info(id); err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(metaKey(id), nil); err != nil {
		return err
	}
	if err := batch.Delete(imageKey(id), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// Close closes the archive.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// ParseID parses a snapshot ID as printed by List.
func ParseID(s string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(s)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("invalid snapshot id %q: %w", s, err)
	}
	return id, nil
}

// Capture reads the whole device into memory.
func Capture(dev device.Device) ([]byte, error) {
	image := make([]byte, dev.Size())
	for addr := range image {
		b, err := dev.Uint8(addr)
		if err != nil {
			return nil, fmt.Errorf("capture failed: %w", err)
		}
		image[addr] = b
	}
	return image, nil
}

// Restore writes image back onto dev. The sizes must match.
func Restore(dev device.Device, image []byte) error {
	if len(image) != dev.Size() {
		return fmt.Errorf("%w: image %d bytes, device %d bytes", ErrSizeMismatch, len(image), dev.Size())
	}
	for addr, b := range image {
		if err := dev.PutUint8(addr, b); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
	}
	return nil
}

func metaKey(id ksuid.KSUID) []byte {
	return []byte(metaPrefix + id.String())
}

func imageKey(id ksuid.KSUID) []byte {
	return []byte(imagePrefix + id.String())
}
