package store

import (
	"fmt"
	"sync"

	"github.com/tendermint/tendermint/libs/log"
	tmdb "github.com/tendermint/tm-db"
	leveldb "github.com/tendermint/tm-db/goleveldb"
)

var heightKey = []byte("height")

// NewDBHeightStore opens (or creates) a goleveldb database named name in dir.
func NewDBHeightStore(name, dir string, logger log.Logger) (*DBHeightStore, error) {
	levelDB, err := leveldb.NewDB(name, dir)
	if err != nil {
		return nil, fmt.Errorf("opening height db: %w", err)
	}
	return NewDBHeightStoreWithDB(levelDB, logger), nil
}

// NewDBHeightStoreWithDB wraps an already opened database, e.g. memdb.NewDB().
func NewDBHeightStoreWithDB(db tmdb.DB, logger log.Logger) *DBHeightStore {
	return &DBHeightStore{
		db:     db,
		logger: logger.With("module", "height_store"),
	}
}

// DBHeightStore keeps the height record under a single key of a tm-db database.
type DBHeightStore struct {
	mtx    sync.Mutex
	db     tmdb.DB
	logger log.Logger
}

var _ HeightStore = (*DBHeightStore)(nil)

// ReadOrInitialize implements HeightStore
func (ds *DBHeightStore) ReadOrInitialize() (uint64, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	bz, err := ds.db.Get(heightKey)
	if err != nil {
		return 0, err
	}
	if bz == nil {
		if err := ds.db.SetSync(heightKey, encodeHeight(0)); err != nil {
			return 0, err
		}
		ds.logger.Info("initialized height record")
		return 0, nil
	}
	return decodeHeight(bz)
}

// Read implements HeightStore
func (ds *DBHeightStore) Read() (uint64, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	return ds.read()
}

// IncrementAndPersist implements HeightStore
func (ds *DBHeightStore) IncrementAndPersist() (uint64, error) {
	ds.mtx.Lock()
	defer ds.mtx.Unlock()

	height, err := ds.read()
	if err != nil {
		return 0, err
	}
	height++
	if err := ds.db.SetSync(heightKey, encodeHeight(height)); err != nil {
		return 0, err
	}
	ds.logger.Debug("persisted height", "height", height)
	return height, nil
}

func (ds *DBHeightStore) read() (uint64, error) {
	bz, err := ds.db.Get(heightKey)
	if err != nil {
		return 0, err
	}
	if bz == nil {
		return 0, ErrHeightRecordMissing
	}
	return decodeHeight(bz)
}

func (ds *DBHeightStore) Close() error {
	return ds.db.Close()
}
