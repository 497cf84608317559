// Package postgres implements the certificate repositories on top of pgx.
package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/domain"
	ppostgres "github.com/Josebert2001/ibeno-origin-scribe/internal/platform/postgres"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/pagination"
	"github.com/Josebert2001/ibeno-origin-scribe/internal/repositories"
)

const certificateColumns = `id, certificate_number, our_ref, your_ref, bearer_name, native_of, village, date_issued,
	status, status_note, qr_code_data, passport_photo, certificate_html_url, certificate_html_object,
	certificate_pdf_url, certificate_pdf_object, created_by, created_at, updated_at`

// CertificateRepository stores certificates in the certificates table.
type CertificateRepository struct {
	pool *pgxpool.Pool
}

var _ repositories.CertificateRepository = (*CertificateRepository)(nil)

// NewCertificateRepository constructs a pgx-backed certificate repository.
func NewCertificateRepository(pool *pgxpool.Pool) (*CertificateRepository, error) {
	if pool == nil {
		return nil, errors.New("certificate repository requires pgx pool")
	}
	return &CertificateRepository{pool: pool}, nil
}

func (r *CertificateRepository) Insert(ctx context.Context, c domain.Certificate) (domain.Certificate, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		c.ID, c.CertificateNumber, c.OurRef, c.YourRef, c.BearerName, c.NativeOf, c.Village, c.DateIssued,
		string(c.Status), c.StatusNote, c.QRCodeData, c.PassportPhoto, c.Artifacts.HTMLURL, c.Artifacts.HTMLObject,
		c.Artifacts.PDFURL, c.Artifacts.PDFObject, c.CreatedBy, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return domain.Certificate{}, ppostgres.WrapError("certificates.insert", err)
	}
	return c, nil
}

func (r *CertificateRepository) Get(ctx context.Context, id string) (domain.Certificate, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	certificate, err := scanCertificate(row)
	if err != nil {
		return domain.Certificate{}, ppostgres.WrapError("certificates.get", err)
	}
	return certificate, nil
}

func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) (domain.Certificate, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE certificate_number = $1`, number)
	certificate, err := scanCertificate(row)
	if err != nil {
		return domain.Certificate{}, ppostgres.WrapError("certificates.by_number", err)
	}
	return certificate, nil
}

// List filters in SQL and fetches one extra row to decide whether another page exists.
func (r *CertificateRepository) List(ctx context.Context, filter repositories.CertificateListFilter) (domain.CursorPage[domain.Certificate], error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, "status = $"+strconv.Itoa(len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(strings.ToLower(q))+"%")
		placeholder := "$" + strconv.Itoa(len(args))
		clauses = append(clauses, "(lower(certificate_number) LIKE "+placeholder+
			" OR lower(bearer_name) LIKE "+placeholder+
			" OR lower(native_of) LIKE "+placeholder+
			" OR lower(village) LIKE "+placeholder+")")
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	size := filter.Pagination.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	args = append(args, size+1, filter.Offset)
	query := `SELECT ` + certificateColumns + ` FROM certificates` + where +
		` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Certificate]{}, ppostgres.WrapError("certificates.list", err)
	}
	defer rows.Close()

	var items []domain.Certificate
	for rows.Next() {
		certificate, err := scanCertificate(rows)
		if err != nil {
			return domain.CursorPage[domain.Certificate]{}, ppostgres.WrapError("certificates.list", err)
		}
		items = append(items, certificate)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Certificate]{}, ppostgres.WrapError("certificates.list", err)
	}

	page := domain.CursorPage[domain.Certificate]{Items: items}
	if len(items) > size {
		page.Items = items[:size]
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{Offset: filter.Offset + size})
	}
	if page.Items == nil {
		page.Items = []domain.Certificate{}
	}
	return page, nil
}

func (r *CertificateRepository) Stats(ctx context.Context) (domain.CertificateStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, count(*) FROM certificates GROUP BY status`)
	if err != nil {
		return domain.CertificateStats{}, ppostgres.WrapError("certificates.stats", err)
	}
	defer rows.Close()

	var stats domain.CertificateStats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return domain.CertificateStats{}, ppostgres.WrapError("certificates.stats", err)
		}
		stats.AddN(domain.CertificateStatus(status), count)
	}
	return stats, ppostgres.WrapError("certificates.stats", rows.Err())
}

func (r *CertificateRepository) UpdateStatus(ctx context.Context, id string, update repositories.StatusUpdate) (domain.Certificate, error) {
	row := r.pool.QueryRow(ctx, `UPDATE certificates SET status = $2, status_note = $3, updated_at = $4
		WHERE id = $1 RETURNING `+certificateColumns,
		id, string(update.Status), update.Note, update.At)
	certificate, err := scanCertificate(row)
	if err != nil {
		return domain.Certificate{}, ppostgres.WrapError("certificates.update_status", err)
	}
	return certificate, nil
}

func (r *CertificateRepository) UpdateArtifacts(ctx context.Context, id string, artifacts domain.CertificateArtifacts, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE certificates SET certificate_html_url = $2, certificate_html_object = $3,
		certificate_pdf_url = $4, certificate_pdf_object = $5, updated_at = $6 WHERE id = $1`,
		id, artifacts.HTMLURL, artifacts.HTMLObject, artifacts.PDFURL, artifacts.PDFObject, at)
	if err != nil {
		return ppostgres.WrapError("certificates.update_artifacts", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("certificates.update_artifacts")
	}
	return nil
}

func (r *CertificateRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM certificates WHERE id = $1`, id)
	if err != nil {
		return ppostgres.WrapError("certificates.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ppostgres.NotFound("certificates.delete")
	}
	return nil
}

func (r *CertificateRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanCertificate(row pgx.Row) (domain.Certificate, error) {
	var (
		c      domain.Certificate
		status string
	)
	err := row.Scan(&c.ID, &c.CertificateNumber, &c.OurRef, &c.YourRef, &c.BearerName, &c.NativeOf, &c.Village,
		&c.DateIssued, &status, &c.StatusNote, &c.QRCodeData, &c.PassportPhoto,
		&c.Artifacts.HTMLURL, &c.Artifacts.HTMLObject, &c.Artifacts.PDFURL, &c.Artifacts.PDFObject,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Certificate{}, err
	}
	c.Status = domain.CertificateStatus(status)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
