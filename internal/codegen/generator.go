// Package codegen issues human-readable sequential codes such as ORD-0042.
package codegen

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ordercore/models"
)

var ErrGeneration = errors.New("code generation failed")

// Options selects the column the codes are written to and how they look.
type Options struct {
	Table     string
	Column    string
	Separator string
	Width     int
}

type Generator struct {
	db   *gorm.DB
	opts Options
}

func New(db *gorm.DB, opts Options) *Generator {
	if opts.Table == "" {
		opts.Table = "orders"
	}
	if opts.Column == "" {
		opts.Column = "order_number"
	}
	if opts.Width <= 0 {
		opts.Width = 4
	}
	return &Generator{db: db, opts: opts}
}

// Format renders prefix, separator and the zero-padded sequence. Numbers
// wider than the configured width are kept intact.
func (g *Generator) Format(prefix string, n int64) string {
	return fmt.Sprintf("%s%s%0*d", prefix, g.opts.Separator, g.opts.Width, n)
}

// Next reserves the next code for prefix. The sequence row stays locked until
// tx finishes, so concurrent callers are serialized per prefix.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: prefix is required", ErrGeneration)
	}
	tx = tx.WithContext(ctx)

	seq, err := g.lockSequence(tx, prefix)
	if err != nil {
		return "", err
	}

	next := seq.LastValue + 1
	err = tx.Model(&models.CodeSequence{}).
		Where("name = ?", seq.Name).
		Update("last_value", next).Error
	if err != nil {
		return "", fmt.Errorf("%w: advance sequence %s: %w", ErrGeneration, seq.Name, err)
	}

	return g.Format(prefix, next), nil
}

// Peek returns the code Next would issue right now without reserving it.
func (g *Generator) Peek(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: prefix is required", ErrGeneration)
	}
	db := g.db.WithContext(ctx)

	var seq models.CodeSequence
	err := db.Where("name = ?", g.sequenceName(prefix)).Take(&seq).Error
	switch {
	case err == nil:
		return g.Format(prefix, seq.LastValue+1), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return "", fmt.Errorf("%w: read sequence: %w", ErrGeneration, err)
	}

	last, err := g.maxSuffix(db, prefix)
	if err != nil {
		return "", err
	}
	return g.Format(prefix, last+1), nil
}

func (g *Generator) sequenceName(prefix string) string {
	return fmt.Sprintf("%s.%s:%s", g.opts.Table, g.opts.Column, prefix)
}

func (g *Generator) lockSequence(tx *gorm.DB, prefix string) (*models.CodeSequence, error) {
	name := g.sequenceName(prefix)

	seq, err := g.selectForUpdate(tx, name)
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: lock sequence %s: %w", ErrGeneration, name, err)
	}

	// First use of this prefix: continue from whatever is already stored.
	last, err := g.maxSuffix(tx, prefix)
	if err != nil {
		return nil, err
	}
	seed := models.CodeSequence{Name: name, LastValue: last}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("%w: seed sequence %s: %w", ErrGeneration, name, err)
	}

	seq, err = g.selectForUpdate(tx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: lock sequence %s: %w", ErrGeneration, name, err)
	}
	return seq, nil
}

func (g *Generator) selectForUpdate(tx *gorm.DB, name string) (*models.CodeSequence, error) {
	var seq models.CodeSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("name = ?", name).
		Take(&seq).Error
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// maxSuffix scans the target column, soft-deleted rows included, for the
// largest numeric suffix after prefix+separator.
func (g *Generator) maxSuffix(db *gorm.DB, prefix string) (int64, error) {
	head := prefix + g.opts.Separator

	var values []string
	err := db.Table(g.opts.Table).
		Where(clause.Like{Column: clause.Column{Name: g.opts.Column}, Value: head + "%"}).
		Pluck(g.opts.Column, &values).Error
	if err != nil {
		return 0, fmt.Errorf("%w: scan %s.%s: %w", ErrGeneration, g.opts.Table, g.opts.Column, err)
	}

	var highest int64
	for _, v := range values {
		n, err := strconv.ParseInt(strings.TrimPrefix(v, head), 10, 64)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest, nil
}
