package badger

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// Manager aggregates the Badger-backed storage implementations behind the
// StorageManager interface
type Manager struct {
	db              *BadgerDB
	jobStorage      interfaces.JobStorage
	supplierStorage interfaces.SupplierStorage
	logger          arbor.ILogger
}

// NewManager opens the database and wires up all storage implementations
func NewManager(config *common.BadgerConfig, logger arbor.ILogger) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Manager{
		db:              db,
		jobStorage:      NewJobStorage(db, logger),
		supplierStorage: NewSupplierStorage(db, logger),
		logger:          logger,
	}, nil
}

// JobStorage returns the job storage implementation
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.jobStorage
}

// SupplierStorage returns the supplier storage implementation
func (m *Manager) SupplierStorage() interfaces.SupplierStorage {
	return m.supplierStorage
}

// RunGC runs Badger value-log garbage collection on the underlying database
func (m *Manager) RunGC() error {
	return m.db.RunGC()
}

// Close closes the underlying database
func (m *Manager) Close() error {
	m.logger.Debug().Msg("Closing storage manager")
	return m.db.Close()
}
