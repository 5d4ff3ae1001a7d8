// Package recording stores what command buffers emit in a SQLite database.
package recording

import (
	"database/sql"
	"fmt"
	"log"
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

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close() error
}

// Entries are buffered in memory and written in one transaction once this
// many are waiting.
const defaultBatchSize = 4096

// New creates a DataRecorder that writes into path.sqlite3. An empty path
// picks a unique name. Creating a recorder over an existing file panics.
func New(path string) DataRecorder {
	if path == "" {
		path = "pipesync_recording_" + xid.New().String()
	}

	filename := path + ".sqlite3"
	if _, err := os.Stat(filename); err == nil {
		log.Panicf("recording %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		log.Panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording command buffers into %s\n", filename)

	return NewWithDB(db)
}

// NewWithDB creates a DataRecorder that writes into an open database.
// Buffered entries are written when the program exits through atexit.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqliteRecorder{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*recordTable),
	}

	atexit.Register(r.Flush)

	return r
}

// recordTable is one table and the rows waiting to be written into it.
type recordTable struct {
	name      string
	entryType reflect.Type
	columns   []string
	rows      [][]any
}

func (t *recordTable) insertSQL() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.columns)), ", ")

	return fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)",
		t.name, strings.Join(t.quotedColumns(), ", "), marks)
}

func (t *recordTable) createSQL() string {
	return fmt.Sprintf("CREATE TABLE %q (%s)",
		t.name, strings.Join(t.quotedColumns(), ", "))
}

func (t *recordTable) quotedColumns() []string {
	quoted := make([]string, len(t.columns))
	for i, c := range t.columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}

	return quoted
}

type sqliteRecorder struct {
	*sql.DB

	tables    map[string]*recordTable
	batchSize int
	buffered  int
}

// columnsOf returns the column names of an entry type. Only flat structs of
// exported scalar fields can be recorded.
func columnsOf(entry any) ([]string, error) {
	if !structs.IsStruct(entry) {
		return nil, fmt.Errorf("entry %T is not a struct", entry)
	}

	s := structs.New(entry)
	if len(s.Names()) != reflect.TypeOf(entry).NumField() {
		return nil, fmt.Errorf("entry %T has unexported fields", entry)
	}

	for _, f := range s.Fields() {
		if !recordable(f.Kind()) {
			return nil, fmt.Errorf("field %s of %T is a %s",
				f.Name(), entry, f.Kind())
		}
	}

	return s.Names(), nil
}

func recordable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32,
		reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}

	return false
}

func (r *sqliteRecorder) CreateTable(tableName string, sampleEntry any) {
	columns, err := columnsOf(sampleEntry)
	if err != nil {
		log.Panicf("table %s: %v", tableName, err)
	}

	t := &recordTable{
		name:      tableName,
		entryType: reflect.TypeOf(sampleEntry),
		columns:   columns,
	}

	if _, err := r.Exec(t.createSQL()); err != nil {
		log.Panicf("creating table %s: %v", tableName, err)
	}

	r.tables[tableName] = t
}

func (r *sqliteRecorder) InsertData(tableName string, entry any) {
	t, ok := r.tables[tableName]
	if !ok {
		log.Panicf("table %s does not exist", tableName)
	}

	if reflect.TypeOf(entry) != t.entryType {
		log.Panicf("entry of type %T does not fit table %s", entry, tableName)
	}

	t.rows = append(t.rows, structs.Values(entry))

	r.buffered++
	if r.buffered >= r.batchSize {
		r.Flush()
	}
}

func (r *sqliteRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *sqliteRecorder) Flush() {
	if r.buffered == 0 {
		return
	}

	if err := r.writeBuffered(); err != nil {
		log.Panicf("flushing recording: %v", err)
	}

	r.buffered = 0
}

func (r *sqliteRecorder) writeBuffered() error {
	tx, err := r.Begin()
	if err != nil {
		return err
	}

	for _, name := range r.ListTables() {
		t := r.tables[name]
		if len(t.rows) == 0 {
			continue
		}

		if err := insertRows(tx, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("table %s: %w", name, err)
		}

		t.rows = nil
	}

	return tx.Commit()
}

func insertRows(tx *sql.Tx, t *recordTable) error {
	stmt, err := tx.Prepare(t.insertSQL())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range t.rows {
		if _, err := stmt.Exec(row...); err != nil {
			return err
		}
	}

	return nil
}

func (r *sqliteRecorder) Close() error {
	r.Flush()

	return r.DB.Close()
}
