package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type baseRepository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

type Repository struct {
	DB          *gorm.DB
	Tx          *TxManager
	Document    *DocumentRepository
	Signature   *SignatureRepository
	Field       *FieldRepository
	CCRecipient *CCRecipientRepository
	AuditLog    *AuditLogRepository
	Outbox      *OutboxRepository
	File        *FileRepository
}

func newBaseRepository(db *gorm.DB, logger *zap.SugaredLogger) *baseRepository {
	return &baseRepository{db: db, logger: logger}
}

func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	br := newBaseRepository(db, logger)

	return &Repository{
		DB:          db,
		Tx:          &TxManager{baseRepository: br},
		Document:    &DocumentRepository{baseRepository: br},
		Signature:   &SignatureRepository{baseRepository: br},
		Field:       &FieldRepository{baseRepository: br},
		CCRecipient: &CCRecipientRepository{baseRepository: br},
		AuditLog:    &AuditLogRepository{baseRepository: br},
		Outbox:      &OutboxRepository{baseRepository: br},
		File:        &FileRepository{baseRepository: br},
	}
}

type txKey struct{}

// TxManager runs a callback inside one transaction carried by the context.
// Every repository call made with that context joins the transaction.
// Nested RunInTx calls reuse the outer transaction.
type TxManager struct {
	*baseRepository
}

// RunInTx commits when fn returns nil and rolls back on error or panic (the panic is re-raised).
// Isolation level is read committed, the PostgreSQL default.
func (m TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("RunInTx transaction panic, perform rollback")
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		m.logger.Debugf("RunInTx error during transaction, perform rollback. Error: %v", err)
		if rbErr := tx.Rollback().Error; rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (b baseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}

	return b.db
}
