//go:build integration

package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"idgate/internal/verify/models"
	"idgate/internal/verify/store"
	"idgate/pkg/platform/sentinel"
	"idgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	contexts  *store.PostgresContextStore
	identity  *store.PostgresIdentityStore
	qrHistory *store.PostgresQRHistoryStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.contexts = store.NewPostgresContextStore(s.postgres.DB)
	s.identity = store.NewPostgresIdentityStore(s.postgres.DB)
	s.qrHistory = store.NewPostgresQRHistoryStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"verification_contexts", "identity_records", "qr_history")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) insertContext(ctx context.Context, agencyToken, applicationToken string) {
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO verification_contexts (
			agency_token, application_token,
			institution_id, institution_name, institution_active, institution_start, institution_end,
			application_id, application_name, application_active, application_start, application_end,
			allowed_ips, allowed_urls, public_key, private_key, key_start, key_end
		) VALUES ($1, $2, 'INST01', 'City Hall', TRUE, '20200101', '20991231',
		          'APP01', 'Badge App', TRUE, '20200101', '20991231',
		          '10.0.0.1', '/verify', 'pub', 'priv', '20200101', '20991231')
	`, agencyToken, applicationToken)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestContextResolve() {
	ctx := context.Background()
	s.insertContext(ctx, "agency-1", "app-1")

	c, err := s.contexts.Resolve(ctx, "agency-1", "app-1")
	s.Require().NoError(err)
	s.Equal("INST01", c.InstitutionID)
	s.Equal("APP01", c.ApplicationID)
	s.Require().NotNil(c.Keys)
	s.Equal("priv", c.Keys.PrivateKey)

	_, err = s.contexts.Resolve(ctx, "agency-1", "wrong")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func newIdentityRecord() models.IdentityRecord {
	return models.IdentityRecord{
		SubjectID:  "EMP" + uuid.NewString(),
		CI:         "ci-" + uuid.NewString(),
		BirthDay:   "19900101",
		SubCode:    "1",
		UserName:   "홍길동",
		IssuedYmd:  "20200101",
		MobileNo:   "01012345678",
		DeviceInfo: "device-a",
		Telecom:    "S",
		AppKey:     "app-key-value-0123456789",
		Photo:      []byte{0xFF, 0xD8},
		Employment: models.EmploymentActive,
		Credential: models.CredentialNormal,
		Registered: true,
	}
}

func (s *PostgresStoreSuite) TestIdentityLifecycle() {
	ctx := context.Background()
	rec := newIdentityRecord()

	s.Require().NoError(s.identity.Create(ctx, rec))
	s.ErrorIs(s.identity.Create(ctx, rec), sentinel.ErrConflict)

	got, err := s.identity.FindByCI(ctx, rec.CI)
	s.Require().NoError(err)
	s.Equal(rec.SubjectID, got.SubjectID)
	s.Equal(rec.Photo, got.Photo)

	rec.MobileNo = "01099998888"
	s.Require().NoError(s.identity.Update(ctx, rec))

	got, err = s.identity.FindBySubject(ctx, rec.SubjectID)
	s.Require().NoError(err)
	s.Equal("01099998888", got.MobileNo)

	s.Require().NoError(s.identity.Deregister(ctx, rec.SubjectID))
	got, err = s.identity.FindBySubject(ctx, rec.SubjectID)
	s.Require().NoError(err)
	s.False(got.Registered)
	s.Empty(got.Photo)

	s.ErrorIs(s.identity.Deregister(ctx, "no-such-subject"), sentinel.ErrNotFound)

	other := newIdentityRecord()
	s.ErrorIs(s.identity.Update(ctx, other), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestQRHistoryLifecycle() {
	ctx := context.Background()

	id, err := s.qrHistory.Insert(ctx, models.QRHistoryRecord{
		Token:         "tok-1",
		InstitutionID: "INST01",
		ApplicationID: "APP01",
		Status:        models.QRHistoryPending,
	})
	s.Require().NoError(err)
	s.Positive(id)

	s.Require().NoError(s.qrHistory.MarkOutcome(ctx, id, models.QRHistorySuccess, "EMP001"))
	s.ErrorIs(s.qrHistory.MarkOutcome(ctx, id+999, models.QRHistoryFailed, ""), sentinel.ErrNotFound)

	today := time.Now().Format(models.DateLayout)
	page, err := s.qrHistory.Query(ctx, models.HistoryQuery{
		InstitutionID: "INST01",
		ApplicationID: "APP01",
		Page:          1, Limit: 10, Order: "DESC",
		Status: "S", Range: "APP",
		StartYmd: today, EndYmd: today,
	})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Equal("EMP001", page.Items[0].SubjectID)
	s.Equal(models.QRHistorySuccess, page.Items[0].Status)
	s.False(page.HasNext)
}

func (s *PostgresStoreSuite) TestQRHistoryPagination() {
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		status := models.QRHistorySuccess
		if i%3 == 0 {
			status = models.QRHistoryFailed
		}
		_, err := s.qrHistory.Insert(ctx, models.QRHistoryRecord{
			Token:         fmt.Sprintf("tok-%d", i),
			InstitutionID: "INST01",
			ApplicationID: "APP01",
			Status:        status,
		})
		s.Require().NoError(err)
	}

	today := time.Now().Format(models.DateLayout)
	base := models.HistoryQuery{
		InstitutionID: "INST01",
		ApplicationID: "APP01",
		Order:         "DESC",
		Status:        "A",
		Range:         "ALL",
		StartYmd:      today,
		EndYmd:        today,
	}

	q := base
	q.Page, q.Limit = 1, 5
	page, err := s.qrHistory.Query(ctx, q)
	s.Require().NoError(err)
	s.Len(page.Items, 5)
	s.Equal(7, page.Total)
	s.True(page.HasNext)

	q.Page = 2
	page, err = s.qrHistory.Query(ctx, q)
	s.Require().NoError(err)
	s.Len(page.Items, 2)
	s.False(page.HasNext)

	q = base
	q.Page, q.Limit, q.Status = 1, 10, "F"
	page, err = s.qrHistory.Query(ctx, q)
	s.Require().NoError(err)
	s.Equal(3, page.Total)
}
