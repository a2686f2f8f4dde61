package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"idgate/internal/verify/models"
	"idgate/pkg/platform/sentinel"
)

// PostgresContextStore resolves contexts from the registry tables.
type PostgresContextStore struct {
	db *sql.DB
}

func NewPostgresContextStore(db *sql.DB) *PostgresContextStore {
	return &PostgresContextStore{db: db}
}

func (s *PostgresContextStore) Resolve(ctx context.Context, agencyToken, applicationToken string) (models.Context, error) {
	query := `
		SELECT institution_id, institution_name, institution_active,
		       institution_start, institution_end,
		       application_id, application_name, application_active,
		       application_start, application_end,
		       allowed_ips, allowed_urls,
		       public_key, private_key, key_start, key_end
		FROM verification_contexts
		WHERE agency_token = $1 AND application_token = $2
	`
	var c models.Context
	var keys models.KeyPair
	err := s.db.QueryRowContext(ctx, query, agencyToken, applicationToken).Scan(
		&c.InstitutionID, &c.InstitutionName, &c.InstitutionActive,
		&c.InstitutionStart, &c.InstitutionEnd,
		&c.ApplicationID, &c.ApplicationName, &c.ApplicationActive,
		&c.ApplicationStart, &c.ApplicationEnd,
		&c.AllowedIPs, &c.AllowedURLs,
		&keys.PublicKey, &keys.PrivateKey, &keys.StartYmd, &keys.EndYmd,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Context{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Context{}, fmt.Errorf("resolve context: %w", err)
	}
	c.Keys = &keys
	return c, nil
}

// PostgresIdentityStore owns the identity_records table.
type PostgresIdentityStore struct {
	db *sql.DB
}

func NewPostgresIdentityStore(db *sql.DB) *PostgresIdentityStore {
	return &PostgresIdentityStore{db: db}
}

const identityColumns = `
	subject_id, ci, birth_day, sub_code, user_name, issued_ymd,
	mobile_no, device_info, telecom, app_key,
	address1, address2, photo, institution_name,
	employment, credential, registered
`

func (s *PostgresIdentityStore) FindByCI(ctx context.Context, ci string) (*models.IdentityRecord, error) {
	query := `SELECT ` + identityColumns + ` FROM identity_records WHERE ci = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, ci))
}

func (s *PostgresIdentityStore) FindBySubject(ctx context.Context, subjectID string) (*models.IdentityRecord, error) {
	query := `SELECT ` + identityColumns + ` FROM identity_records WHERE subject_id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, subjectID))
}

func (s *PostgresIdentityStore) scanOne(row *sql.Row) (*models.IdentityRecord, error) {
	var rec models.IdentityRecord
	err := row.Scan(
		&rec.SubjectID, &rec.CI, &rec.BirthDay, &rec.SubCode, &rec.UserName, &rec.IssuedYmd,
		&rec.MobileNo, &rec.DeviceInfo, &rec.Telecom, &rec.AppKey,
		&rec.Address1, &rec.Address2, &rec.Photo, &rec.InstitutionName,
		&rec.Employment, &rec.Credential, &rec.Registered,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan identity record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresIdentityStore) Create(ctx context.Context, rec models.IdentityRecord) error {
	query := `
		INSERT INTO identity_records (` + identityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (ci) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.SubjectID, rec.CI, rec.BirthDay, rec.SubCode, rec.UserName, rec.IssuedYmd,
		rec.MobileNo, rec.DeviceInfo, rec.Telecom, rec.AppKey,
		rec.Address1, rec.Address2, rec.Photo, rec.InstitutionName,
		rec.Employment, rec.Credential, rec.Registered,
	)
	if err != nil {
		return fmt.Errorf("insert identity record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresIdentityStore) Update(ctx context.Context, rec models.IdentityRecord) error {
	query := `
		UPDATE identity_records SET
			subject_id = $1, birth_day = $3, sub_code = $4, user_name = $5, issued_ymd = $6,
			mobile_no = $7, device_info = $8, telecom = $9, app_key = $10,
			address1 = $11, address2 = $12, photo = $13, institution_name = $14,
			employment = $15, credential = $16, registered = $17
		WHERE ci = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.SubjectID, rec.CI, rec.BirthDay, rec.SubCode, rec.UserName, rec.IssuedYmd,
		rec.MobileNo, rec.DeviceInfo, rec.Telecom, rec.AppKey,
		rec.Address1, rec.Address2, rec.Photo, rec.InstitutionName,
		rec.Employment, rec.Credential, rec.Registered,
	)
	if err != nil {
		return fmt.Errorf("update identity record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresIdentityStore) Deregister(ctx context.Context, subjectID string) error {
	query := `UPDATE identity_records SET registered = FALSE, photo = NULL WHERE subject_id = $1`
	res, err := s.db.ExecContext(ctx, query, subjectID)
	if err != nil {
		return fmt.Errorf("deregister identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresQRHistoryStore owns the qr_history table.
type PostgresQRHistoryStore struct {
	db *sql.DB
}

func NewPostgresQRHistoryStore(db *sql.DB) *PostgresQRHistoryStore {
	return &PostgresQRHistoryStore{db: db}
}

func (s *PostgresQRHistoryStore) Insert(ctx context.Context, rec models.QRHistoryRecord) (int64, error) {
	query := `
		INSERT INTO qr_history (token, subject_id, institution_id, application_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query,
		rec.Token, rec.SubjectID, rec.InstitutionID, rec.ApplicationID, string(rec.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert qr history: %w", err)
	}
	return id, nil
}

func (s *PostgresQRHistoryStore) MarkOutcome(ctx context.Context, id int64, status models.QRHistoryStatus, subjectID string) error {
	query := `
		UPDATE qr_history
		SET status = $2, subject_id = COALESCE(NULLIF($3, ''), subject_id), updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, string(status), subjectID)
	if err != nil {
		return fmt.Errorf("mark qr history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresQRHistoryStore) Query(ctx context.Context, q models.HistoryQuery) (models.HistoryPage, error) {
	where := `
		WHERE institution_id = $1
		  AND ($2 = 'ALL' OR application_id = $3)
		  AND ($4 = 'A' OR status = $4)
		  AND created_at >= TO_DATE($5, 'YYYYMMDD')
		  AND created_at < TO_DATE($6, 'YYYYMMDD') + INTERVAL '1 day'
	`
	args := []any{q.InstitutionID, q.Range, q.ApplicationID, q.Status, q.StartYmd, q.EndYmd}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM qr_history`+where, args...).Scan(&total); err != nil {
		return models.HistoryPage{}, fmt.Errorf("count qr history: %w", err)
	}

	order := "DESC"
	if q.Order == "ASC" {
		order = "ASC"
	}
	query := `
		SELECT id, token, subject_id, institution_id, application_id, status, created_at, updated_at
		FROM qr_history` + where + `
		ORDER BY created_at ` + order + `
		LIMIT $7 OFFSET $8
	`
	offset := (q.Page - 1) * q.Limit
	rows, err := s.db.QueryContext(ctx, query, append(args, q.Limit, offset)...)
	if err != nil {
		return models.HistoryPage{}, fmt.Errorf("query qr history: %w", err)
	}
	defer rows.Close()

	var items []models.QRHistoryRecord
	for rows.Next() {
		var rec models.QRHistoryRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.Token, &rec.SubjectID, &rec.InstitutionID, &rec.ApplicationID,
			&status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return models.HistoryPage{}, fmt.Errorf("scan qr history: %w", err)
		}
		rec.Status = models.QRHistoryStatus(status)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return models.HistoryPage{}, fmt.Errorf("iterate qr history: %w", err)
	}

	return models.HistoryPage{
		Items:   items,
		HasNext: total-q.Page*q.Limit > 0,
		Total:   total,
	}, nil
}
