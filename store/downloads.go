package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cryogon/rizumu-fetch/media"
)

const downloadColumns = `content_key, media_type, source_id, title, url, owner, job_id,
	file_path, file_size, status, error, error_kind, updated_at`

// RecordDownload inserts or replaces the row for (ContentKey, MediaType).
// A zero UpdatedAt is set to now.
func (s *Store) RecordDownload(ctx context.Context, d *Download) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO downloads (` + downloadColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(content_key, media_type) DO UPDATE SET
		source_id = excluded.source_id,
		title = excluded.title,
		url = excluded.url,
		owner = excluded.owner,
		job_id = excluded.job_id,
		file_path = excluded.file_path,
		file_size = excluded.file_size,
		status = excluded.status,
		error = excluded.error,
		error_kind = excluded.error_kind,
		updated_at = excluded.updated_at;
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ContentKey, d.MediaType, d.SourceID, d.Title, d.URL, d.Owner, d.JobID,
		d.FilePath, d.FileSize, d.Status, d.Error, d.ErrorKind, d.UpdatedAt.UTC(),
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDownload(row scanner) (*Download, error) {
	var d Download
	var url, owner, jobID, filePath, errMsg, errKind sql.NullString
	err := row.Scan(&d.ContentKey, &d.MediaType, &d.SourceID, &d.Title, &url, &owner, &jobID,
		&filePath, &d.FileSize, &d.Status, &errMsg, &errKind, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	d.URL = url.String
	d.Owner = owner.String
	d.JobID = jobID.String
	d.FilePath = filePath.String
	d.Error = errMsg.String
	d.ErrorKind = errKind.String
	return &d, nil
}

func (s *Store) GetDownload(ctx context.Context, contentKey string, t media.Type) (*Download, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+downloadColumns+` FROM downloads WHERE content_key = ? AND media_type = ?`,
		contentKey, string(t))

	d, err := scanDownload(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDownloads returns the most recently updated rows first.
func (s *Store) ListDownloads(ctx context.Context, opts ListOptions) ([]*Download, error) {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	query := `SELECT ` + downloadColumns + ` FROM downloads`
	args := []any{}
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, opts.Status)
	}
	query += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	downloads := []*Download{}
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// DeleteDownload reports whether a row was removed.
func (s *Store) DeleteDownload(ctx context.Context, contentKey string, t media.Type) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM downloads WHERE content_key = ? AND media_type = ?`, contentKey, string(t))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteByType drops the history of one media type, or all of it.
func (s *Store) DeleteByType(ctx context.Context, scope media.Scope) (int64, error) {
	var res sql.Result
	var err error
	switch scope {
	case media.ScopeAudio:
		res, err = s.db.ExecContext(ctx, `DELETE FROM downloads WHERE media_type = ?`, string(media.Audio))
	case media.ScopeVideo:
		res, err = s.db.ExecContext(ctx, `DELETE FROM downloads WHERE media_type = ?`, string(media.Video))
	default:
		res, err = s.db.ExecContext(ctx, `DELETE FROM downloads`)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
