package store

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/tendermint/tendermint/libs/log"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
)

// FileHeightStore keeps the height record in a single file. Every write goes
// to a temporary file that is synced and renamed over the old one, so a crash
// leaves either the previous or the new record on disk.
type FileHeightStore struct {
	mtx    sync.Mutex
	path   string
	logger log.Logger
}

var _ HeightStore = (*FileHeightStore)(nil)

func NewFileHeightStore(path string, logger log.Logger) *FileHeightStore {
	return &FileHeightStore{
		path:   path,
		logger: logger.With("module", "height_store"),
	}
}

func (fs *FileHeightStore) Path() string {
	return fs.path
}

// ReadOrInitialize implements HeightStore
func (fs *FileHeightStore) ReadOrInitialize() (uint64, error) {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()

	if !tmos.FileExists(fs.path) {
		if err := tmos.EnsureDir(filepath.Dir(fs.path), 0700); err != nil {
			return 0, err
		}
		if err := fs.write(0); err != nil {
			return 0, err
		}
		fs.logger.Info("initialized height record", "path", fs.path)
		return 0, nil
	}

	return fs.read()
}

// Read implements HeightStore
func (fs *FileHeightStore) Read() (uint64, error) {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()

	return fs.read()
}

// IncrementAndPersist implements HeightStore
func (fs *FileHeightStore) IncrementAndPersist() (uint64, error) {
	fs.mtx.Lock()
	defer fs.mtx.Unlock()

	height, err := fs.read()
	if err != nil {
		return 0, err
	}
	height++
	if err := fs.write(height); err != nil {
		return 0, err
	}
	fs.logger.Debug("persisted height", "height", height)
	return height, nil
}

func (fs *FileHeightStore) read() (uint64, error) {
	bz, err := ioutil.ReadFile(fs.path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %s", ErrHeightRecordMissing, fs.path)
	}
	if err != nil {
		return 0, fmt.Errorf("reading height record: %w", err)
	}
	return decodeHeight(bz)
}

func (fs *FileHeightStore) write(height uint64) error {
	if err := tempfile.WriteFileAtomic(fs.path, encodeHeight(height), 0600); err != nil {
		return fmt.Errorf("writing height record: %w", err)
	}
	return nil
}
