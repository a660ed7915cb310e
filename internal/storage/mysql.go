package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// item is one row of the session_storage table.
type item struct {
	SessionID string `db:"session_id"`
	Name      string `db:"name"`
	Value     string `db:"value"`
}

// MySQL keeps session items in the session_storage table of a MySQL database, see
// scripts/database.sql.
type MySQL struct {
	db *sqlx.DB

	// selectItem is a prepared statement for reading one item of a session.
	selectItem *sqlx.Stmt

	// upsertItem is a prepared statement for creating or replacing one item of a session.
	upsertItem *sqlx.NamedStmt

	// deleteItem is a prepared statement for deleting one item of a session.
	deleteItem *sqlx.Stmt

	// deleteSession is a prepared statement for deleting all items of a session.
	deleteSession *sqlx.Stmt
}

// OpenMySQL opens a database handle for the given go-sql-driver DSN.
func OpenMySQL(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return sqlDB, nil
}

// NewMySQL wraps the specified sql database with sqlx and prepares all statements. The
// database argument can be a real database for production use or a mock database within
// unit tests.
func NewMySQL(sqlDB *sql.DB) (*MySQL, error) {
	var err error
	m := &MySQL{db: sqlx.NewDb(sqlDB, "mysql")}

	m.selectItem, err = m.db.Preparex(`
		SELECT value FROM session_storage WHERE session_id = ? AND name = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("error preparing select statement: %w", err)
	}
	m.upsertItem, err = m.db.PrepareNamed(`
		INSERT INTO session_storage (session_id, name, value)
		VALUES (:session_id, :name, :value)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`)
	if err != nil {
		return nil, fmt.Errorf("error preparing upsert statement: %w", err)
	}
	m.deleteItem, err = m.db.Preparex(`
		DELETE FROM session_storage WHERE session_id = ? AND name = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("error preparing delete statement: %w", err)
	}
	m.deleteSession, err = m.db.Preparex(`
		DELETE FROM session_storage WHERE session_id = ?
	`)
	if err != nil {
		return nil, fmt.Errorf("error preparing session delete statement: %w", err)
	}
	return m, nil
}

// Close releases the database handle.
func (m *MySQL) Close() error {
	return m.db.Close()
}

// Session returns the storage of the session with the given id.
func (m *MySQL) Session(id string) Storage {
	return &mysqlSession{mysql: m, id: id}
}

// EndSession deletes all rows of the session.
func (m *MySQL) EndSession(ctx context.Context, id string) error {
	if _, err := m.deleteSession.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("error ending session %s: %w", id, err)
	}
	return nil
}

type mysqlSession struct {
	mysql *MySQL
	id    string
}

func (s *mysqlSession) GetItem(ctx context.Context, name string) (string, bool, error) {
	var value string
	err := s.mysql.selectItem.GetContext(ctx, &value, s.id, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error reading item %s: %w", name, err)
	}
	return value, true, nil
}

func (s *mysqlSession) SetItem(ctx context.Context, name string, value string) error {
	_, err := s.mysql.upsertItem.ExecContext(ctx, item{SessionID: s.id, Name: name, Value: value})
	if err != nil {
		return fmt.Errorf("error writing item %s: %w", name, err)
	}
	return nil
}

func (s *mysqlSession) RemoveItem(ctx context.Context, name string) error {
	if _, err := s.mysql.deleteItem.ExecContext(ctx, s.id, name); err != nil {
		return fmt.Errorf("error removing item %s: %w", name, err)
	}
	return nil
}
