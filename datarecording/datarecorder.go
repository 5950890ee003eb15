// Package datarecording stores simulation records in SQLite. Every table is
// created from a sample struct; each exported field becomes a column.
package datarecording

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

var (
	// ErrUnsupportedField is returned for structs with fields that do not
	// map to a SQLite column.
	ErrUnsupportedField = errors.New("datarecording: unsupported field type")

	// ErrUnknownTable is returned when inserting into a table that was
	// never created.
	ErrUnknownTable = errors.New("datarecording: unknown table")

	// ErrFileExists is returned when the database file is already there.
	ErrFileExists = errors.New("datarecording: database file already exists")
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry of the table's struct type.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of all tables, sorted.
	ListTables() []string

	// Flush writes all buffered entries into the database.
	Flush() error

	// Close flushes and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a recorder writing to path + ".sqlite3". An empty path picks a
// unique name.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "netsim_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrFileExists, filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, fmt.Errorf("datarecording: opening %s: %w", filename, err)
	}

	w := newWriter(db)
	w.filename = filename

	return w, nil
}

// NewWithDB creates a recorder on an open database.
func NewWithDB(db *sql.DB) DataRecorder {
	return newWriter(db)
}

func newWriter(db *sql.DB) *sqliteWriter {
	w := &sqliteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { _ = w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter buffers entries per table and writes them in one
// transaction.
type sqliteWriter struct {
	*sql.DB

	filename   string
	tables     map[string]*table
	batchSize  int
	entryCount int
	closed     bool
}

// Filename returns the database file, empty for recorders on a given DB.
func (t *sqliteWriter) Filename() string {
	return t.filename
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	typ := reflect.TypeOf(entry)
	if typ == nil || typ.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T is not a struct", ErrUnsupportedField, entry)
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			return fmt.Errorf("%w: %s.%s is %s",
				ErrUnsupportedField, typ.Name(), field.Name, field.Type)
		}
	}

	return nil
}

func (t *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	if err := checkStructFields(sampleEntry); err != nil {
		return err
	}

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	createTableSQL := `CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`

	if _, err := t.Exec(createTableSQL); err != nil {
		return fmt.Errorf("datarecording: creating %s: %w", tableName, err)
	}

	t.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (t *sqliteWriter) InsertData(tableName string, entry any) error {
	tbl, exists := t.tables[tableName]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownTable, tableName)
	}

	if reflect.TypeOf(entry) != tbl.structType {
		return fmt.Errorf("datarecording: %T does not match table %s",
			entry, tableName)
	}

	tbl.entries = append(tbl.entries, entry)

	t.entryCount++
	if t.entryCount >= t.batchSize {
		return t.Flush()
	}

	return nil
}

func (t *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(t.tables))
	for name := range t.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (t *sqliteWriter) Flush() error {
	if t.entryCount == 0 || t.closed {
		return nil
	}

	tx, err := t.Begin()
	if err != nil {
		return fmt.Errorf("datarecording: begin: %w", err)
	}

	for _, name := range t.ListTables() {
		if err := t.flushTable(tx, name, t.tables[name]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("datarecording: commit: %w", err)
	}

	// Entries stay buffered until the transaction holding them commits.
	for _, tbl := range t.tables {
		tbl.entries = nil
	}

	t.entryCount = 0

	return nil
}

func (t *sqliteWriter) flushTable(tx *sql.Tx, name string, tbl *table) error {
	if len(tbl.entries) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(insertStatement(name, tbl.entries[0]))
	if err != nil {
		return fmt.Errorf("datarecording: preparing %s: %w", name, err)
	}
	defer stmt.Close()

	for _, entry := range tbl.entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("datarecording: inserting into %s: %w", name, err)
		}
	}

	return nil
}

func (t *sqliteWriter) Close() error {
	if t.closed {
		return nil
	}

	if err := t.Flush(); err != nil {
		return err
	}

	t.closed = true

	return t.DB.Close()
}

func insertStatement(table string, entry any) string {
	n := structs.Names(entry)
	for i := range n {
		n[i] = "?"
	}

	return "INSERT INTO " + table + " VALUES (" + strings.Join(n, ", ") + ")"
}
