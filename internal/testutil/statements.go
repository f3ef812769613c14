package testutil

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatementLog records, per table, the queries issued with a row-locking
// clause and the SQL of every UPDATE. SQLite drops FOR UPDATE when building
// SQL, so tests read the clause off the statement instead.
type StatementLog struct {
	mu      sync.Mutex
	locked  map[string]int
	updates map[string][]string
}

// RecordStatements hooks a StatementLog into db's query and update callbacks.
func RecordStatements(t testing.TB, db *gorm.DB) *StatementLog {
	t.Helper()
	log := &StatementLog{
		locked:  make(map[string]int),
		updates: make(map[string][]string),
	}
	name := "testutil:statements:" + uuid.NewString()

	err := db.Callback().Query().Before("gorm:query").Register(name, func(tx *gorm.DB) {
		if _, ok := tx.Statement.Clauses["FOR"]; !ok {
			return
		}
		log.mu.Lock()
		log.locked[tx.Statement.Table]++
		log.mu.Unlock()
	})
	if err != nil {
		t.Fatalf("register query callback: %v", err)
	}

	err = db.Callback().Update().After("gorm:update").Register(name, func(tx *gorm.DB) {
		log.mu.Lock()
		log.updates[tx.Statement.Table] = append(log.updates[tx.Statement.Table], tx.Statement.SQL.String())
		log.mu.Unlock()
	})
	if err != nil {
		t.Fatalf("register update callback: %v", err)
	}
	return log
}

// Locked returns how many locking reads hit table.
func (l *StatementLog) Locked(table string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked[table]
}

// UpdatesContaining returns the UPDATE statements on table whose SQL contains
// fragment.
func (l *StatementLog) UpdatesContaining(table, fragment string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, sql := range l.updates[table] {
		if strings.Contains(sql, fragment) {
			out = append(out, sql)
		}
	}
	return out
}

// Updates returns every UPDATE statement recorded for table.
func (l *StatementLog) Updates(table string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.updates[table]...)
}
