package domain

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB creates a PostgreSQL testcontainer for testing
func setupTestDB(t *testing.T) *gorm.DB {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate postgres container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(pgdriver.Open(connStr), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := db.AutoMigrate(&CleaningRun{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func TestCleaningRun_TableName(t *testing.T) {
	assert.Equal(t, "cleaning_runs", CleaningRun{}.TableName())
}

func TestNewCleaningRun(t *testing.T) {
	session := &Session{ID: "s1", Filename: "contacts.csv", FileHash: "abc", Format: FormatCSV}
	result := &CleaningResult{
		Options:        CleaningOptions{SelectedColumns: []string{"Phone"}, RemoveDuplicates: true},
		CleanedColumns: []string{"Phone"},
		Metrics: Metrics{
			TotalRecords:      4,
			ValidNumbers:      1,
			InvalidRemoved:    2,
			DuplicatesRemoved: 1,
			RowsAfterCleaning: 4,
		},
	}

	run := NewCleaningRun(session, result, 1500*time.Millisecond)

	assert.Equal(t, "s1", run.SessionID)
	assert.Equal(t, "csv", run.Format)
	assert.Equal(t, int64(1500), run.DurationMs)
	assert.Equal(t, 4, run.TotalRecords)
	assert.Equal(t, 1, run.DuplicatesRemoved)
	assert.Equal(t, true, run.Options["remove_duplicates"])
}

func TestCleaningRun_BeforeCreate(t *testing.T) {
	db := setupTestDB(t)

	run := &CleaningRun{SessionID: "s1", Filename: "contacts.csv", Format: "csv"}
	assert.Equal(t, uuid.Nil, run.ID)

	require.NoError(t, db.Create(run).Error)
	assert.NotEqual(t, uuid.Nil, run.ID)

	var loaded CleaningRun
	require.NoError(t, db.First(&loaded, "id = ?", run.ID).Error)
	assert.Equal(t, "contacts.csv", loaded.Filename)
}
