//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
	ppostgres "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/postgres"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("origin"),
		tcpostgres.WithUsername("origin"),
		tcpostgres.WithPassword("origin"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := ppostgres.Open(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 4, MigrateOnStart: true})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestCertificateRepositoryPostgres(t *testing.T) {
	pool := startPostgres(t)
	repo, err := NewCertificateRepository(pool)
	require.NoError(t, err)
	ctx := context.Background()

	created := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	base := domain.Certificate{
		OurRef: "IBN/LGA/ORG/2025/0001", YourRef: "IBN/ORG/2025/0001", NativeOf: "Upenekang",
		Village: "Iwuokpom", DateIssued: "2025-03-10", Status: domain.CertificateStatusValid,
		QRCodeData: "https://origin.example.gov/verify?cert_id=IBN25%200001",
	}
	first := base
	first.ID, first.CertificateNumber, first.BearerName = "a", "IBN25 0001", "Jane Doe"
	first.CreatedAt, first.UpdatedAt = created, created
	second := base
	second.ID, second.CertificateNumber, second.BearerName = "b", "IBN25 0002", "John_Bassey"
	second.CreatedAt, second.UpdatedAt = created.Add(time.Hour), created.Add(time.Hour)

	_, err = repo.Insert(ctx, first)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, second)
	require.NoError(t, err)

	dup := first
	dup.ID = "c"
	_, err = repo.Insert(ctx, dup)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr) && repoErr.IsConflict(), "expected conflict, got %v", err)

	got, err := repo.FindByNumber(ctx, "IBN25 0001")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", got.BearerName)
	require.True(t, got.CreatedAt.Equal(created))

	page, err := repo.List(ctx, repositories.CertificateListFilter{Pagination: domain.Pagination{PageSize: 1}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "b", page.Items[0].ID)
	require.NotEmpty(t, page.NextPageToken)

	page, err = repo.List(ctx, repositories.CertificateListFilter{Query: "john_", Pagination: domain.Pagination{PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	page, err = repo.List(ctx, repositories.CertificateListFilter{Query: "%", Pagination: domain.Pagination{PageSize: 10}})
	require.NoError(t, err)
	require.Empty(t, page.Items, "like wildcards must be escaped")

	updated, err := repo.UpdateStatus(ctx, "a", repositories.StatusUpdate{Status: domain.CertificateStatusSuperseded, Note: "reissued", At: created.Add(2 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, domain.CertificateStatusSuperseded, updated.Status)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.CertificateStats{Total: 2, Valid: 1, Superseded: 1}, stats)

	require.NoError(t, repo.UpdateArtifacts(ctx, "a", domain.CertificateArtifacts{HTMLObject: "certificates/2025/ibn25-0001/certificate.html"}, created))
	err = repo.UpdateArtifacts(ctx, "missing", domain.CertificateArtifacts{}, created)
	require.True(t, errors.As(err, &repoErr) && repoErr.IsNotFound())

	require.NoError(t, repo.Delete(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	require.True(t, errors.As(err, &repoErr) && repoErr.IsNotFound())
}

func TestCounterRepositoryPostgres(t *testing.T) {
	pool := startPostgres(t)
	repo, err := NewCounterRepository(pool)
	require.NoError(t, err)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next(ctx, "certificates:2025", 1)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	max := int64(5)
	start := int64(4)
	require.NoError(t, repo.Configure(ctx, "our_ref:2025", repositories.CounterConfig{MaxValue: &max, InitialValue: &start}))
	got, err := repo.Next(ctx, "our_ref:2025", 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), got)

	_, err = repo.Next(ctx, "our_ref:2025", 0)
	var counterErr *repositories.CounterError
	require.True(t, errors.As(err, &counterErr))
	require.Equal(t, repositories.CounterErrorExhausted, counterErr.Code)
}
