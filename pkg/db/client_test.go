package db

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront/pkg/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestMigrateClientEntries(t *testing.T) {
	client := NewFromConn(newTestDB(t))
	ctx := context.Background()
	if err := client.Migrate(ctx, &models.ClientEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := client.DB().Create(&models.ClientEntry{Key: "k", Value: "v"}).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := client.DB().Create(&models.ClientEntry{Key: "k", Value: "v2"}).Error; err == nil {
		t.Fatalf("expected duplicate entry key to be rejected")
	}
}
