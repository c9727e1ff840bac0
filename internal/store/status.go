package store

import "context"

// GetStatus returns the singleton crawler status row.
func (s *Store) GetStatus(ctx context.Context) (*CrawlerStatus, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT is_crawling, last_run, current_task, articles_processed, last_error, worker_pid
		 FROM crawler_status WHERE id = 1`)
	var st CrawlerStatus
	var isCrawling int
	if err := row.Scan(&isCrawling, &st.LastRun, &st.CurrentTask, &st.ArticlesProcessed, &st.LastError, &st.WorkerPID); err != nil {
		return nil, err
	}
	st.IsCrawling = isCrawling != 0
	return &st, nil
}

// UpdateStatus atomically applies a partial update: only non-nil fields
// change. Passing u.ClearWorkerPID sets worker_pid to NULL regardless of
// u.WorkerPID.
func (s *Store) UpdateStatus(ctx context.Context, u StatusUpdate) error {
	var isCrawling *int
	if u.IsCrawling != nil {
		v := 0
		if *u.IsCrawling {
			v = 1
		}
		isCrawling = &v
	}
	clear := 0
	if u.ClearWorkerPID {
		clear = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		UPDATE crawler_status SET
			is_crawling        = COALESCE(?, is_crawling),
			last_run           = COALESCE(?, last_run),
			current_task       = COALESCE(?, current_task),
			articles_processed = COALESCE(?, articles_processed),
			last_error         = COALESCE(?, last_error),
			worker_pid         = CASE WHEN ? = 1 THEN NULL ELSE COALESCE(?, worker_pid) END
		WHERE id = 1`,
		isCrawling, u.LastRun, u.CurrentTask, u.ArticlesProcessed, u.LastError,
		clear, u.WorkerPID)
	return err
}
