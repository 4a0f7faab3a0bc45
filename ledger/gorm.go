package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/djvang/pdftron-sign-app/interfaces"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// contractRecord is the contracts table.
type contractRecord struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key"`
	Name           string
	EncryptionMode uint8
	ContractHash   string         `gorm:"type:varchar(128)"`
	Initiator      string         `gorm:"type:varchar(42);index"`
	Signers        []signerRecord `gorm:"foreignKey:ContractID;references:ID"`
	Steps          []stepRecord   `gorm:"foreignKey:ContractID;references:ID"`
	CreatedAt      time.Time      `gorm:"index"`
}

// signerRecord holds one declared signer. Position keeps declaration order.
type signerRecord struct {
	gorm.Model
	ContractID uuid.UUID `gorm:"type:uuid;index"`
	Position   int
	Address    string `gorm:"type:varchar(42);index"`
}

// stepRecord holds one published step. (ContractID, Seq) is unique.
type stepRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ContractID uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_step_seq"`
	Seq        int       `gorm:"uniqueIndex:idx_step_seq"`
	Signer     string    `gorm:"type:varchar(42)"`
	PayloadCID string    `gorm:"type:varchar(128)"`
	CreatedAt  time.Time
}

// GormLedger is an interfaces.Ledger persisted in a SQL database through gorm.
type GormLedger struct {
	db  *gorm.DB
	log *slog.Logger
}

// NewPostgresLedger connects to Postgres with the given DSN and migrates the schema.
func NewPostgresLedger(dsn string, log *slog.Logger) (*GormLedger, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to database: %v", interfaces.ErrLedgerUnavailable, err)
	}
	return NewGormLedger(db, log)
}

// NewGormLedger wraps an open gorm connection and migrates the schema.
func NewGormLedger(db *gorm.DB, log *slog.Logger) (*GormLedger, error) {
	if err := db.AutoMigrate(&contractRecord{}, &signerRecord{}, &stepRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate ledger schema: %w", err)
	}
	log.Info("ledger schema migrated")

	return &GormLedger{db: db, log: log}, nil
}

// CreateContract validates the draft and inserts the contract with its signers.
func (l *GormLedger) CreateContract(ctx context.Context, draft interfaces.ContractDraft) (string, error) {
	if err := draft.Validate(); err != nil {
		return "", fmt.Errorf("invalid contract draft: %w", err)
	}

	record := contractRecord{
		ID:             uuid.New(),
		Name:           draft.Name,
		EncryptionMode: uint8(draft.EncryptionMode),
		ContractHash:   draft.ContractHash.String(),
		Initiator:      interfaces.IdentityTag(draft.Initiator),
		CreatedAt:      time.Now().UTC(),
	}
	for i, s := range draft.Signers {
		record.Signers = append(record.Signers, signerRecord{
			Position: i,
			Address:  interfaces.IdentityTag(s.Address),
		})
	}

	if err := l.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("%w: failed to insert contract: %v", interfaces.ErrLedgerUnavailable, err)
	}

	l.log.Debug("contract recorded", slog.String("contractID", record.ID.String()), slog.Int("signers", len(record.Signers)))
	return record.ID.String(), nil
}

// CreateStep appends a step. The contract row is locked for the duration of
// the transaction so step indices are assigned without gaps.
func (l *GormLedger) CreateStep(ctx context.Context, contractID string, signer interfaces.Identity, payload interfaces.ContentID) (string, error) {
	if !payload.Defined() {
		return "", errPayloadRequired
	}

	id, err := uuid.Parse(contractID)
	if err != nil {
		return "", fmt.Errorf("%w: %s", interfaces.ErrContractNotFound, contractID)
	}

	step := stepRecord{
		ID:         uuid.New(),
		ContractID: id,
		Signer:     interfaces.IdentityTag(signer),
		PayloadCID: payload.String(),
		CreatedAt:  time.Now().UTC(),
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract contractRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Signers").
			First(&contract, "id = ?", id).Error
		if err != nil {
			return err
		}

		declared := false
		for _, s := range contract.Signers {
			if s.Address == step.Signer {
				declared = true
				break
			}
		}
		if !declared {
			return fmt.Errorf("%w: %s", interfaces.ErrUnknownSigner, signer.Hex())
		}

		var count int64
		if err := tx.Model(&stepRecord{}).Where("contract_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		step.Seq = int(count)

		return tx.Create(&step).Error
	})
	if err != nil {
		return "", l.wrapError(contractID, err)
	}

	l.log.Debug("step recorded", slog.String("contractID", contractID), slog.Int("index", step.Seq), slog.String("signer", step.Signer))
	return step.ID.String(), nil
}

// GetContract loads a contract with signers and steps in ledger order.
func (l *GormLedger) GetContract(ctx context.Context, contractID string) (*interfaces.Contract, error) {
	id, err := uuid.Parse(contractID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContractNotFound, contractID)
	}

	var record contractRecord
	err = l.withChildren(l.db.WithContext(ctx)).First(&record, "id = ?", id).Error
	if err != nil {
		return nil, l.wrapError(contractID, err)
	}

	return record.toContract()
}

// ListContracts returns matching contracts, newest first.
func (l *GormLedger) ListContracts(ctx context.Context, filter interfaces.ContractFilter) ([]*interfaces.Contract, error) {
	query := l.withChildren(l.db.WithContext(ctx)).Order("created_at DESC")
	if filter.Participant != nil {
		tag := interfaces.IdentityTag(*filter.Participant)
		signed := l.db.Model(&signerRecord{}).Select("contract_id").Where("address = ?", tag)
		query = query.Where("initiator = ? OR id IN (?)", tag, signed)
	}

	var records []contractRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: failed to list contracts: %v", interfaces.ErrLedgerUnavailable, err)
	}

	contracts := make([]*interfaces.Contract, 0, len(records))
	for i := range records {
		contract, err := records[i].toContract()
		if err != nil {
			l.log.Warn("skipping unreadable contract record", slog.String("contractID", records[i].ID.String()), "err", err)
			continue
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

func (l *GormLedger) withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Signers", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("seq") })
}

func (l *GormLedger) wrapError(contractID string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", interfaces.ErrContractNotFound, contractID)
	case errors.Is(err, interfaces.ErrUnknownSigner):
		return err
	default:
		return fmt.Errorf("%w: %v", interfaces.ErrLedgerUnavailable, err)
	}
}

func (r *contractRecord) toContract() (*interfaces.Contract, error) {
	hash, err := interfaces.ParseContentID(r.ContractHash)
	if err != nil {
		return nil, fmt.Errorf("invalid contract hash: %w", err)
	}

	contract := &interfaces.Contract{
		ID:             r.ID.String(),
		Name:           r.Name,
		EncryptionMode: interfaces.EncryptionMode(r.EncryptionMode),
		ContractHash:   hash,
		Initiator:      common.HexToAddress(r.Initiator),
		CreatedAt:      r.CreatedAt.UTC(),
	}

	for _, s := range r.Signers {
		contract.Signers = append(contract.Signers, interfaces.Signer{Address: common.HexToAddress(s.Address)})
	}

	for _, s := range r.Steps {
		payload, err := interfaces.ParseContentID(s.PayloadCID)
		if err != nil {
			return nil, fmt.Errorf("invalid payload of step %d: %w", s.Seq, err)
		}
		contract.Steps = append(contract.Steps, interfaces.Step{
			ID:           s.ID.String(),
			ContractID:   contract.ID,
			Index:        s.Seq,
			Signer:       common.HexToAddress(s.Signer),
			ContractHash: payload,
			CreatedAt:    s.CreatedAt.UTC(),
		})
	}

	return contract, nil
}
