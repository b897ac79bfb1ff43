package db

import (
	"context"
	"fmt"

	"github.com/jonathan/site-auditor/internal/types"
)

// SaveKeywords upserts discovered keywords for a site. Re-running discovery
// refreshes source and relevance instead of duplicating rows.
func (db *DB) SaveKeywords(ctx context.Context, siteURL string, keywords []types.Keyword) error {
	for _, kw := range keywords {
		_, err := db.pool.Exec(ctx,
			`INSERT INTO keywords (site_url, keyword, source, relevance)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (site_url, keyword) DO UPDATE SET source = $3, relevance = $4`,
			siteURL, kw.Keyword, kw.Source, kw.Relevance,
		)
		if err != nil {
			return fmt.Errorf("failed to save keyword %s: %w", kw.Keyword, err)
		}
	}
	return nil
}

// ListKeywords returns the stored keywords for a site, most relevant first
func (db *DB) ListKeywords(ctx context.Context, siteURL string) ([]types.Keyword, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT keyword, source, relevance FROM keywords
		 WHERE site_url = $1
		 ORDER BY relevance DESC, keyword ASC`,
		siteURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keywords: %w", err)
	}
	defer rows.Close()

	var keywords []types.Keyword
	for rows.Next() {
		var kw types.Keyword
		if err := rows.Scan(&kw.Keyword, &kw.Source, &kw.Relevance); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, nil
}
