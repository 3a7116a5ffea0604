package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type note struct {
	ID   uint
	Body string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&note{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return conn
}

func TestNewBaseStoresConnection(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base db to match provided connection")
	}
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)

	if withCtx == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if withCtx.Statement == nil {
		t.Fatalf("expected statement created after WithContext")
	}
	if withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through, got %v", withCtx.Statement.Context)
	}

	withoutCtx := base.DB(nil)
	if withoutCtx != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseBind(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	tx := db.Begin()
	defer tx.Rollback()

	bound := base.Bind(tx)
	if bound.db != tx {
		t.Fatalf("expected bound base to use the transaction")
	}
	if base.db != db {
		t.Fatalf("binding must not mutate the original base")
	}
	if same := base.Bind(nil); same.db != db {
		t.Fatalf("nil tx should keep the current connection")
	}
}

func TestBaseInTxRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	ctx := context.Background()

	err := base.InTx(ctx, func(tx Base) error {
		if err := tx.DB(ctx).Create(&note{Body: "draft"}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if err := base.InTx(ctx, func(tx Base) error {
		var rows []note
		if err := tx.Locked(ctx).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) != 0 {
			t.Fatalf("expected rollback, found %d rows", len(rows))
		}
		return tx.DB(ctx).Create(&note{Body: "kept"}).Error
	}); err != nil {
		t.Fatalf("InTx: %v", err)
	}

	var count int64
	if err := db.Model(&note{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one committed row, got %d", count)
	}
}
