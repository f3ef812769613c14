package codegen

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"ordercore/internal/testutil"
	"ordercore/models"
)

func newGenerator(db *gorm.DB) *Generator {
	return New(db, Options{Separator: "-", Width: 4})
}

func next(t *testing.T, db *gorm.DB, g *Generator, prefix string) string {
	t.Helper()
	var code string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		code, err = g.Next(context.Background(), tx, prefix)
		return err
	})
	require.NoError(t, err)
	return code
}

func TestFormat(t *testing.T) {
	g := New(nil, Options{Separator: "-", Width: 4})
	assert.Equal(t, "ORD-0001", g.Format("ORD", 1))
	assert.Equal(t, "ORD-12345", g.Format("ORD", 12345))

	g = New(nil, Options{Separator: "/", Width: 6})
	assert.Equal(t, "INV/000042", g.Format("INV", 42))
}

func TestNextStartsAtOne(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)

	assert.Equal(t, "ORD-0001", next(t, db, g, "ORD"))
	assert.Equal(t, "ORD-0002", next(t, db, g, "ORD"))
	assert.Equal(t, "JW-0001", next(t, db, g, "JW"))
}

func TestNextSeedsFromExistingRows(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)

	for _, n := range []string{"ORD-0007", "ORD-0041", "ORD-garbage", "OTHER-9999"} {
		require.NoError(t, db.Create(&models.Order{OrderNumber: n, CustomerID: 1}).Error)
	}
	deleted := models.Order{OrderNumber: "ORD-0050", CustomerID: 1}
	require.NoError(t, db.Create(&deleted).Error)
	require.NoError(t, db.Delete(&deleted).Error)

	assert.Equal(t, "ORD-0051", next(t, db, g, "ORD"))
}

func TestNextRolledBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)

	assert.Equal(t, "ORD-0001", next(t, db, g, "ORD"))

	err := db.Transaction(func(tx *gorm.DB) error {
		code, err := g.Next(context.Background(), tx, "ORD")
		require.NoError(t, err)
		assert.Equal(t, "ORD-0002", code)
		return gorm.ErrInvalidTransaction
	})
	require.Error(t, err)

	assert.Equal(t, "ORD-0002", next(t, db, g, "ORD"))
}

func TestNextRequiresPrefix(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, "")
		return err
	})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestNextFailsWhenTargetMissing(t *testing.T) {
	db := testutil.NewDB(t)
	g := New(db, Options{Table: "no_such_table", Column: "code", Separator: "-", Width: 4})

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := g.Next(context.Background(), tx, "X")
		return err
	})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestPeekDoesNotReserve(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)
	ctx := context.Background()

	code, err := g.Peek(ctx, "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-0001", code)

	code, err = g.Peek(ctx, "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-0001", code)

	assert.Equal(t, "ORD-0001", next(t, db, g, "ORD"))

	code, err = g.Peek(ctx, "ORD")
	require.NoError(t, err)
	assert.Equal(t, "ORD-0002", code)
}

func TestNextConcurrentCallersGetDistinctIncreasingCodes(t *testing.T) {
	db := testutil.NewDB(t)
	g := newGenerator(db)

	const workers = 1000
	var (
		mu    sync.Mutex
		codes []string
		wg    sync.WaitGroup
	)

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				code, err := g.Next(context.Background(), tx, "ORD")
				if err != nil {
					return err
				}
				mu.Lock()
				codes = append(codes, code)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, codes, workers)
	seen := make(map[string]bool, workers)
	var prev int64
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true

		n, err := strconv.ParseInt(strings.TrimPrefix(c, "ORD-"), 10, 64)
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		prev = n
	}
}

func TestNextLocksSequenceRow(t *testing.T) {
	db := testutil.NewDB(t)
	stmts := testutil.RecordStatements(t, db)
	g := newGenerator(db)

	next(t, db, g, "ORD")
	seeded := stmts.Locked("code_sequences")
	assert.GreaterOrEqual(t, seeded, 1)

	next(t, db, g, "ORD")
	assert.Equal(t, seeded+1, stmts.Locked("code_sequences"), "every reservation locks the row")

	_, err := g.Peek(context.Background(), "ORD")
	require.NoError(t, err)
	assert.Equal(t, seeded+1, stmts.Locked("code_sequences"), "peek reads without locking")
}

func TestNextWithoutSeparator(t *testing.T) {
	db := testutil.NewDB(t)
	g := New(db, Options{Width: 4})
	require.NoError(t, db.Create(&models.Order{OrderNumber: "ORD0041", CustomerID: 1}).Error)

	assert.Equal(t, "ORD0042", next(t, db, g, "ORD"))
	assert.Equal(t, "ORD0043", next(t, db, g, "ORD"))
}
