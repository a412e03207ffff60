package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// ClickHouseOptions tells where a ClickHouse recorder connects.
type ClickHouseOptions struct {
	Addr      string
	Database  string
	Username  string
	Password  string
	BatchSize int
}

// clickHouseRecorder writes results into a ClickHouse server, batching the
// entries of each table.
type clickHouseRecorder struct {
	conn      clickhouse.Conn
	mu        sync.Mutex
	batchSize int

	tables     map[string]*table
	entryCount int
	closed     bool
}

// NewClickHouse creates a DataRecorder that writes into a ClickHouse server.
func NewClickHouse(opts ClickHouseOptions) (DataRecorder, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = 100000
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:      30 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("pinging ClickHouse at %s: %w", opts.Addr, err)
	}

	r := &clickHouseRecorder{
		conn:      conn,
		batchSize: opts.BatchSize,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { r.Flush() })

	return r, nil
}

func (r *clickHouseRecorder) CreateTable(tableName string, sampleEntry any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tables[tableName]; exists {
		panic(fmt.Sprintf("table %s already exists", tableName))
	}

	query, err := clickHouseCreateTable(tableName, sampleEntry)
	if err != nil {
		panic(err)
	}

	err = r.conn.Exec(context.Background(), query)
	if err != nil {
		panic(fmt.Errorf("creating table %s: %w", tableName, err))
	}

	r.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}
}

func (r *clickHouseRecorder) InsertData(tableName string, entry any) {
	r.mu.Lock()

	t, exists := r.tables[tableName]
	if !exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		r.mu.Unlock()
		panic(fmt.Sprintf("entry of type %T does not fit table %s",
			entry, tableName))
	}

	t.entries = append(t.entries, entry)
	r.entryCount++
	full := r.entryCount >= r.batchSize

	r.mu.Unlock()

	if full {
		r.Flush()
	}
}

func (r *clickHouseRecorder) ListTables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tables := make([]string, 0, len(r.tables))
	for name := range r.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (r *clickHouseRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entryCount == 0 || r.closed {
		return
	}

	ctx := context.Background()

	for name, t := range r.tables {
		if len(t.entries) == 0 {
			continue
		}

		if err := r.send(ctx, name, t.entries); err != nil {
			panic(err)
		}

		t.entries = nil
	}

	r.entryCount = 0
}

func (r *clickHouseRecorder) send(
	ctx context.Context,
	tableName string,
	entries []any,
) error {
	batch, err := r.conn.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		return fmt.Errorf("preparing batch for %s: %w", tableName, err)
	}

	for _, entry := range entries {
		if err := batch.Append(fieldValues(entry)...); err != nil {
			return fmt.Errorf("appending to %s: %w", tableName, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch for %s: %w", tableName, err)
	}

	return nil
}

func (r *clickHouseRecorder) Close() error {
	r.Flush()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	return r.conn.Close()
}

func clickHouseType(kind reflect.Kind) (string, bool) {
	switch kind {
	case reflect.Bool:
		return "Bool", true
	case reflect.Int8:
		return "Int8", true
	case reflect.Int16:
		return "Int16", true
	case reflect.Int32:
		return "Int32", true
	case reflect.Int, reflect.Int64:
		return "Int64", true
	case reflect.Uint8:
		return "UInt8", true
	case reflect.Uint16:
		return "UInt16", true
	case reflect.Uint32:
		return "UInt32", true
	case reflect.Uint, reflect.Uint64:
		return "UInt64", true
	case reflect.Float32:
		return "Float32", true
	case reflect.Float64:
		return "Float64", true
	case reflect.String:
		return "String", true
	default:
		return "", false
	}
}

// clickHouseCreateTable builds a MergeTree table whose columns are the fields
// of the sample entry, ordered by the first field.
func clickHouseCreateTable(tableName string, sampleEntry any) (string, error) {
	st := reflect.TypeOf(sampleEntry)
	if st == nil || st.Kind() != reflect.Struct || st.NumField() == 0 {
		return "", fmt.Errorf("entry of table %s must be a non-empty struct",
			tableName)
	}

	columns := make([]string, 0, st.NumField())

	for i := 0; i < st.NumField(); i++ {
		field := st.Field(i)

		colType, ok := clickHouseType(field.Type.Kind())
		if !ok {
			return "", fmt.Errorf("field %s has unsupported kind %s",
				field.Name, field.Type.Kind())
		}

		columns = append(columns, "`"+field.Name+"` "+colType)
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree()\nORDER BY `%s`",
		tableName, strings.Join(columns, ",\n\t"), st.Field(0).Name), nil
}

// fieldValues lists the values of the fields of an entry. Plain ints are
// widened to the 64-bit column types.
func fieldValues(entry any) []any {
	values := structs.Values(entry)

	for i, v := range values {
		switch x := v.(type) {
		case int:
			values[i] = int64(x)
		case uint:
			values[i] = uint64(x)
		}
	}

	return values
}
