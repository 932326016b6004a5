package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/tally/models"
	"github.com/amirphl/tally/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCounterVanished is returned when the counter row disappears between
// creation and the following read or update.
var ErrCounterVanished = errors.New("counter row not found after create")

// CounterRepositoryImpl implements CounterRepository
type CounterRepositoryImpl struct {
	*BaseRepository[models.Counter]
	name string
}

func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &CounterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Counter](db),
		name:           models.DefaultCounterName,
	}
}

// Current returns the row named r.name, or else the oldest existing row, so a
// counter stored under another name is adopted rather than duplicated.
func (r *CounterRepositoryImpl) Current(ctx context.Context) (*models.Counter, error) {
	db := r.getDB(ctx)
	var row models.Counter
	err := db.Where("name = ?", r.name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = r.getDB(ctx).Order("id ASC").First(&row).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load counter %q: %w", r.name, err)
	}
	return &row, nil
}

func (r *CounterRepositoryImpl) GetOrCreate(ctx context.Context) (*models.Counter, error) {
	row, err := r.Current(ctx)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	// A concurrent creator may win the insert; DO NOTHING lets both converge on its row.
	seed := &models.Counter{Name: r.name, Count: 0}
	err = r.getDB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(seed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %q: %w", r.name, err)
	}

	row, err = r.Current(ctx)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrCounterVanished
	}
	return row, nil
}

func (r *CounterRepositoryImpl) Increment(ctx context.Context) (counter *models.Counter, err error) {
	current, err := r.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return nil, err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
				return
			}
			if cerr := db.Commit().Error; cerr != nil {
				counter = nil
				err = fmt.Errorf("failed to commit counter increment: %w", cerr)
			}
		}()
	}

	res := db.Model(&models.Counter{}).
		Where("id = ?", current.ID).
		UpdateColumns(map[string]any{
			"count":      gorm.Expr("count + ?", 1),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to increment counter %q: %w", r.name, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrCounterVanished
	}

	txCtx := context.WithValue(ctx, TxContextKey, db)
	counter, err = r.ByID(txCtx, current.ID)
	if err != nil {
		return nil, err
	}
	if counter == nil {
		return nil, ErrCounterVanished
	}
	return counter, nil
}
