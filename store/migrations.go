package store

import "go.uber.org/zap"

func (s *Store) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS downloads (
        content_key TEXT NOT NULL,  -- {hash8}-{sanitized title}
        media_type TEXT NOT NULL,   -- 'audio', 'video'

        source_id TEXT NOT NULL,
        title TEXT NOT NULL,
        url TEXT,
        owner TEXT,
        job_id TEXT,

        file_path TEXT,
        file_size INTEGER DEFAULT 0,

        status TEXT NOT NULL,       -- 'Complete', 'Failed'
        error TEXT,
        error_kind TEXT,

        updated_at DATETIME NOT NULL,
        PRIMARY KEY (content_key, media_type)
    );

    CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status, updated_at);
    `

	if _, err := s.db.Exec(query); err != nil {
		s.log.Error("database migration failed", zap.Error(err))
		return err
	}
	return nil
}
