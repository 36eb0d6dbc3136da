package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/redmaple030/shopee-oms/internal/domain"
	"github.com/redmaple030/shopee-oms/internal/store"
)

// ledgerLockID is the advisory lock guarding every multi-collection
// write. A second writer gets ErrStoreLocked instead of queueing.
const ledgerLockID int64 = 730_221_004

// Store persists each ledger collection as an ordered set of JSONB rows.
// Row order within a collection is significant (the header-bearing line
// of an order is a physical row), so every row carries its position.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the ledger tables and seeds the default fee
// profiles on an empty database.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS ledger_rows (
			collection TEXT NOT NULL,
			position   INT  NOT NULL,
			payload    JSONB NOT NULL,
			PRIMARY KEY (collection, position)
		);
		CREATE TABLE IF NOT EXISTS operators (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			active     BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM ledger_rows WHERE collection = $1
	`, store.CollectionFeeProfiles).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var mut store.Mutation
	mut.SetFeeProfiles(store.DefaultFeeProfiles())
	return s.Apply(ctx, mut)
}

func (s *Store) Products(ctx context.Context) ([]domain.Product, error) {
	payloads, err := s.readCollection(ctx, store.CollectionProducts)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(payloads))
	for _, raw := range payloads {
		p, err := decodeProduct(raw)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) OrderLines(ctx context.Context, collection string) ([]domain.OrderLine, error) {
	switch collection {
	case store.CollectionOpen, store.CollectionFinalized, store.CollectionReturned:
	default:
		return nil, fmt.Errorf("order collection %q: %w", collection, store.ErrNotFound)
	}

	payloads, err := s.readCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(payloads))
	for _, raw := range payloads {
		line, err := decodeOrderLine(raw)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Store) PurchaseLines(ctx context.Context, collection string) ([]domain.PurchaseLine, error) {
	switch collection {
	case store.CollectionTransit, store.CollectionPurchaseLog:
	default:
		return nil, fmt.Errorf("purchase collection %q: %w", collection, store.ErrNotFound)
	}

	payloads, err := s.readCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.PurchaseLine, 0, len(payloads))
	for _, raw := range payloads {
		line, err := decodePurchaseLine(raw)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Store) FeeProfiles(ctx context.Context) ([]domain.FeeProfile, error) {
	payloads, err := s.readCollection(ctx, store.CollectionFeeProfiles)
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.FeeProfile, 0, len(payloads))
	for _, raw := range payloads {
		var p domain.FeeProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("fee profile payload: %w", store.ErrSchemaMismatch)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("fee profile without name: %w", store.ErrSchemaMismatch)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Apply replaces the named collections inside one transaction guarded by
// the ledger advisory lock. Unnamed collections are never touched.
func (s *Store) Apply(ctx context.Context, mut store.Mutation) error {
	if mut.Empty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var locked bool
	if err := tx.QueryRowContext(ctx, `SELECT pg_try_advisory_xact_lock($1)`, ledgerLockID).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("ledger held by another writer: %w", store.ErrStoreLocked)
	}

	if mut.Products != nil {
		if err := replaceCollection(ctx, tx, store.CollectionProducts, encodeProducts(*mut.Products)); err != nil {
			return err
		}
	}
	if mut.Open != nil {
		if err := replaceCollection(ctx, tx, store.CollectionOpen, encodeOrderLines(*mut.Open)); err != nil {
			return err
		}
	}
	if mut.Finalized != nil {
		if err := replaceCollection(ctx, tx, store.CollectionFinalized, encodeOrderLines(*mut.Finalized)); err != nil {
			return err
		}
	}
	if mut.Returned != nil {
		if err := replaceCollection(ctx, tx, store.CollectionReturned, encodeOrderLines(*mut.Returned)); err != nil {
			return err
		}
	}
	if mut.Transit != nil {
		if err := replaceCollection(ctx, tx, store.CollectionTransit, encodePurchaseLines(*mut.Transit)); err != nil {
			return err
		}
	}
	if mut.PurchaseLog != nil {
		if err := replaceCollection(ctx, tx, store.CollectionPurchaseLog, encodePurchaseLines(*mut.PurchaseLog)); err != nil {
			return err
		}
	}
	if mut.FeeProfiles != nil {
		if err := replaceCollection(ctx, tx, store.CollectionFeeProfiles, encodeFeeProfiles(*mut.FeeProfiles)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ExportState(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{ExportedAt: time.Now().UTC()}

	var err error
	if snap.Products, err = s.Products(ctx); err != nil {
		return nil, err
	}
	if snap.OpenLines, err = s.OrderLines(ctx, store.CollectionOpen); err != nil {
		return nil, err
	}
	if snap.FinalizedLines, err = s.OrderLines(ctx, store.CollectionFinalized); err != nil {
		return nil, err
	}
	if snap.ReturnedLines, err = s.OrderLines(ctx, store.CollectionReturned); err != nil {
		return nil, err
	}
	if snap.TransitLines, err = s.PurchaseLines(ctx, store.CollectionTransit); err != nil {
		return nil, err
	}
	if snap.HistoryLines, err = s.PurchaseLines(ctx, store.CollectionPurchaseLog); err != nil {
		return nil, err
	}
	if snap.FeeProfiles, err = s.FeeProfiles(ctx); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) ImportState(ctx context.Context, snap domain.Snapshot) error {
	profiles := snap.FeeProfiles
	if len(profiles) == 0 {
		profiles = store.DefaultFeeProfiles()
	}

	var mut store.Mutation
	mut.SetProducts(snap.Products).
		SetOpen(snap.OpenLines).
		SetFinalized(snap.FinalizedLines).
		SetReturned(snap.ReturnedLines).
		SetTransit(snap.TransitLines).
		SetPurchaseLog(snap.HistoryLines).
		SetFeeProfiles(profiles)
	return s.Apply(ctx, mut)
}

func (s *Store) Operators(ctx context.Context) ([]domain.OperatorAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM operators
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	operators := make([]domain.OperatorAccount, 0, 8)
	for rows.Next() {
		var op domain.OperatorAccount
		if err := rows.Scan(&op.Username, &op.Password, &op.Role, &op.Active, &op.CreatedAt); err != nil {
			return nil, err
		}
		operators = append(operators, op)
	}
	return operators, rows.Err()
}

func (s *Store) CreateOperator(ctx context.Context, account domain.OperatorAccount) error {
	if account.Username == "" || account.Password == "" {
		return store.ErrInvalidAmount
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, account.Username, account.Password, account.Role, account.Active, account.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrInvalidState
	}
	return err
}

func (s *Store) UpdateOperatorPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE operators SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) readCollection(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload
		FROM ledger_rows
		WHERE collection = $1
		ORDER BY position
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payloads := make([][]byte, 0, 64)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		payloads = append(payloads, raw)
	}
	return payloads, rows.Err()
}

func replaceCollection(ctx context.Context, tx *sql.Tx, collection string, payloads [][]byte) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_rows WHERE collection = $1`, collection); err != nil {
		return err
	}
	for i, raw := range payloads {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_rows (collection, position, payload) VALUES ($1,$2,$3)
		`, collection, i, raw); err != nil {
			return err
		}
	}
	return nil
}

func encodeProducts(products []domain.Product) [][]byte {
	out := make([][]byte, len(products))
	for i, p := range products {
		out[i], _ = json.Marshal(p)
	}
	return out
}

func encodeOrderLines(lines []domain.OrderLine) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i], _ = json.Marshal(l)
	}
	return out
}

func encodePurchaseLines(lines []domain.PurchaseLine) [][]byte {
	out := make([][]byte, len(lines))
	for i, l := range lines {
		out[i], _ = json.Marshal(l)
	}
	return out
}

func encodeFeeProfiles(profiles []domain.FeeProfile) [][]byte {
	out := make([][]byte, len(profiles))
	for i, p := range profiles {
		out[i], _ = json.Marshal(p)
	}
	return out
}

// decodeProduct tolerates schema drift from older records: a missing
// first-listed timestamp defaults to the last-modified one. A record
// without its identity field is beyond repair.
func decodeProduct(raw []byte) (domain.Product, error) {
	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Product{}, fmt.Errorf("product payload: %w", store.ErrSchemaMismatch)
	}
	if p.Name == "" {
		return domain.Product{}, fmt.Errorf("product without name: %w", store.ErrSchemaMismatch)
	}
	if p.FirstListedAt.IsZero() {
		p.FirstListedAt = p.UpdatedAt
	}
	return p, nil
}

func decodeOrderLine(raw []byte) (domain.OrderLine, error) {
	var l domain.OrderLine
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.OrderLine{}, fmt.Errorf("order line payload: %w", store.ErrSchemaMismatch)
	}
	if l.OrderID == "" || l.Product == "" {
		return domain.OrderLine{}, fmt.Errorf("order line without identity: %w", store.ErrSchemaMismatch)
	}
	return l, nil
}

func decodePurchaseLine(raw []byte) (domain.PurchaseLine, error) {
	var l domain.PurchaseLine
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.PurchaseLine{}, fmt.Errorf("purchase line payload: %w", store.ErrSchemaMismatch)
	}
	if l.PurchaseID == "" || l.Product == "" {
		return domain.PurchaseLine{}, fmt.Errorf("purchase line without identity: %w", store.ErrSchemaMismatch)
	}
	return l, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
