package appcontext

import (
	"github.com/SeakMengs/AutoSign/internal/auth"
	"github.com/SeakMengs/AutoSign/internal/config"
	filestorage "github.com/SeakMengs/AutoSign/internal/file_storage"
	"github.com/SeakMengs/AutoSign/internal/repository"
	"github.com/SeakMengs/AutoSign/internal/workflow"
	"go.uber.org/zap"
)

// Application contains core dependencies for the app.
type Application struct {
	// Config holds application settings provided from .env file.
	Config *config.Config

	Logger *zap.SugaredLogger

	// Repository provides access to data storage operations.
	Repository *repository.Repository

	// JWTService verifies owner access tokens.
	JWTService auth.JWTInterface

	Storage *filestorage.Storage

	// Workflow drives documents and signatures through their state machines.
	Workflow *workflow.Engine
}

// NewWorkflow wires the engine to the gorm repositories, minio storage and the
// signing token codec.
func NewWorkflow(cfg *config.Config, logger *zap.SugaredLogger, repo *repository.Repository, storage *filestorage.Storage) *workflow.Engine {
	return workflow.NewEngine(cfg.Signing, logger, workflow.Dependencies{
		Tx:           repo.Tx,
		Documents:    repo.Document,
		Signatures:   repo.Signature,
		Fields:       repo.Field,
		CCRecipients: repo.CCRecipient,
		Audit:        repo.AuditLog,
		Outbox:       repo.Outbox,
		Files:        repo.File,
		Storage:      storage,
		PDF:          filestorage.NewPdfInspector(),
		Tokens:       auth.NewSigningTokenCodec(cfg.Signing),
	})
}
