package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hupe1980/taskpilot/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// taskRow is the gorm model backing SQLiteStore. Logs and Result are stored
// as JSON text columns, matching the single-table layout keyed by task_id.
type taskRow struct {
	TaskID    string    `gorm:"primaryKey;column:task_id"`
	Status    string    `gorm:"not null;default:pending"`
	Progress  int       `gorm:"default:0"`
	Title     string    ``
	Logs      string    `gorm:"default:'[]'"`
	Result    string    ``
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time ``
}

// TableName pins the table name independent of gorm pluralization.
func (taskRow) TableName() string { return "tasks" }

// SQLiteStore is a durable ledger backed by SQLite through gorm (pure-Go
// driver, no cgo). Every mutation runs in its own transaction; AppendLog and
// Update perform their read-modify-write under the store mutex so concurrent
// writers of the same record never lose updates.
type SQLiteStore struct {
	*Broadcaster
	mu     sync.Mutex
	db     *gorm.DB
	logger logging.Logger
}

var _ Store = (*SQLiteStore)(nil)

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// NewSQLiteStore opens (or creates) the ledger database at path and migrates
// the schema. Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	if err := db.AutoMigrate(&taskRow{}); err != nil {
		return nil, fmt.Errorf("migrate ledger schema: %w", err)
	}

	opts.Logger.Info("ledger.opened", "path", path)
	return &SQLiteStore{
		Broadcaster: NewBroadcaster(opts.Logger),
		db:          db,
		logger:      opts.Logger,
	}, nil
}

// Create implements Store.
func (s *SQLiteStore) Create(taskID, title string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	row := taskRow{
		TaskID:    taskID,
		Status:    string(StatusPending),
		Title:     title,
		Logs:      "[]",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &DuplicateError{TaskID: taskID}
		}
		return nil, fmt.Errorf("create ledger task: %w", err)
	}

	rec := rowToRecord(&row)
	s.Publish(rec.Clone())
	return rec, nil
}

// Update implements Store.
func (s *SQLiteStore) Update(taskID string, fields map[string]any) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *Record
	err := s.db.Transaction(func(tx *gorm.DB) error {
		row, err := loadRow(tx, taskID)
		if err != nil {
			return err
		}
		rec = rowToRecord(row)
		if applyUpdates(rec, fields) {
			rec.UpdatedAt = time.Now()
		}
		return saveRecord(tx, rec)
	})
	if err != nil {
		return nil, err
	}

	s.Publish(rec.Clone())
	return rec, nil
}

// AppendLog implements Store.
func (s *SQLiteStore) AppendLog(taskID, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec *Record
	err := s.db.Transaction(func(tx *gorm.DB) error {
		row, err := loadRow(tx, taskID)
		if err != nil {
			return err
		}
		rec = rowToRecord(row)
		rec.Logs = append(rec.Logs, line)
		rec.UpdatedAt = time.Now()
		return saveRecord(tx, rec)
	})
	if err != nil {
		return err
	}

	s.Publish(rec.Clone())
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(taskID string) (*Record, error) {
	row, err := loadRow(s.db, taskID)
	if err != nil {
		return nil, err
	}
	return rowToRecord(row), nil
}

// List implements Store.
func (s *SQLiteStore) List(limit int) ([]*Record, error) {
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []taskRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list ledger tasks: %w", err)
	}
	out := make([]*Record, len(rows))
	for i := range rows {
		out[i] = rowToRecord(&rows[i])
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(taskID string) error {
	res := s.db.Where("task_id = ?", taskID).Delete(&taskRow{})
	if res.Error != nil {
		return fmt.Errorf("delete ledger task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Cleanup implements Store.
func (s *SQLiteStore) Cleanup(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.Where("created_at < ?", cutoff).Delete(&taskRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup ledger tasks: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.logger.Info("ledger.cleanup", "deleted", res.RowsAffected)
	}
	return int(res.RowsAffected), nil
}

func loadRow(tx *gorm.DB, taskID string) (*taskRow, error) {
	var row taskRow
	if err := tx.Where("task_id = ?", taskID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load ledger task: %w", err)
	}
	return &row, nil
}

func saveRecord(tx *gorm.DB, rec *Record) error {
	row, err := recordToRow(rec)
	if err != nil {
		return err
	}
	if err := tx.Save(row).Error; err != nil {
		return fmt.Errorf("save ledger task: %w", err)
	}
	return nil
}

func rowToRecord(row *taskRow) *Record {
	rec := &Record{
		TaskID:    row.TaskID,
		Status:    Status(row.Status),
		Progress:  row.Progress,
		Title:     row.Title,
		Logs:      []string{},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Logs != "" {
		// A malformed logs column degrades to empty rather than failing reads.
		_ = json.Unmarshal([]byte(row.Logs), &rec.Logs)
	}
	if row.Result != "" {
		var result any
		if err := json.Unmarshal([]byte(row.Result), &result); err == nil {
			rec.Result = result
		}
	}
	return rec
}

func recordToRow(rec *Record) (*taskRow, error) {
	logs, err := json.Marshal(rec.Logs)
	if err != nil {
		return nil, fmt.Errorf("marshal logs: %w", err)
	}
	result := ""
	if rec.Result != nil {
		data, err := json.Marshal(rec.Result)
		if err != nil {
			return nil, fmt.Errorf("marshal result: %w", err)
		}
		result = string(data)
	}
	return &taskRow{
		TaskID:    rec.TaskID,
		Status:    string(rec.Status),
		Progress:  rec.Progress,
		Title:     rec.Title,
		Logs:      string(logs),
		Result:    result,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
