package testing

import (
	"fmt"

	"github.com/amirphl/tally/models"
)

// TestFixtures provides helper methods for creating and inspecting test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// SeedCounter inserts a counter row holding count. The name is left to the
// column default, the same way a row created outside the application would be.
func (tf *TestFixtures) SeedCounter(count int64) (*models.Counter, error) {
	counter := &models.Counter{Count: count}
	if err := tf.DB.DB.Create(counter).Error; err != nil {
		return nil, fmt.Errorf("failed to seed counter: %w", err)
	}
	return counter, nil
}

// SeedNamedCounter inserts a counter row under an explicit name
func (tf *TestFixtures) SeedNamedCounter(name string, count int64) (*models.Counter, error) {
	counter := &models.Counter{Name: name, Count: count}
	if err := tf.DB.DB.Create(counter).Error; err != nil {
		return nil, fmt.Errorf("failed to seed counter %q: %w", name, err)
	}
	return counter, nil
}

// CounterRows returns every row of the counters table ordered by id
func (tf *TestFixtures) CounterRows() ([]models.Counter, error) {
	var rows []models.Counter
	if err := tf.DB.DB.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}
	return rows, nil
}

// HasCounterWithCount reports whether a row with the given count is stored
func (tf *TestFixtures) HasCounterWithCount(count int64) (bool, error) {
	var n int64
	if err := tf.DB.DB.Model(&models.Counter{}).Where("count = ?", count).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to query counters: %w", err)
	}
	return n > 0, nil
}
