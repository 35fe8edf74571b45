// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Cyril-Aubry/llm-query-doc-analyser/pkg/types"
)

// InsertArticleVersionLink relates a preprint record to its published
// version. A second insert of the same ordered pair is a no-op; linking a
// record to itself is rejected before it reaches the database.
func (s *Store) InsertArticleVersionLink(ctx context.Context, link *types.ArticleVersionLink) (created bool, err error) {
	if link.PreprintID == link.PublishedID {
		return false, fmt.Errorf("cannot link record %d to itself", link.PreprintID)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO article_versions (preprint_id, published_id, discovery_source, link_datetime)
			VALUES (?, ?, ?, ?)`,
			link.PreprintID, link.PublishedID, nullStr(link.DiscoverySource), nullTime(link.LinkDatetime),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return nil
			}
			return fmt.Errorf("inserting article version link: %w", err)
		}
		created = true
		link.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return false, err
	}

	if created {
		s.log.Info("article_versions_linked",
			zap.Int64("preprint_id", link.PreprintID),
			zap.Int64("published_id", link.PublishedID),
			zap.String("discovery_source", link.DiscoverySource),
		)
	}
	return created, nil
}

// PublishedVersionID returns the linked published record for a preprint,
// when one exists.
func (s *Store) PublishedVersionID(ctx context.Context, preprintID int64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT published_id FROM article_versions WHERE preprint_id = ? LIMIT 1`, preprintID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("looking up published version for %d: %w", preprintID, err)
	}
	return id, true, nil
}

// VersionLinkStats summarizes the article_versions table.
type VersionLinkStats struct {
	Links             int
	PreprintsLinked   int
	PublishedLinked   int
	DiscoverySources  map[string]int
}

// GetVersionLinkStats aggregates preprint/published link counts.
func (s *Store) GetVersionLinkStats(ctx context.Context) (*VersionLinkStats, error) {
	stats := &VersionLinkStats{DiscoverySources: make(map[string]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(DISTINCT preprint_id),
		       COUNT(DISTINCT published_id)
		FROM article_versions`,
	).Scan(&stats.Links, &stats.PreprintsLinked, &stats.PublishedLinked)
	if err != nil {
		return nil, fmt.Errorf("aggregating version links: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(discovery_source, ''), COUNT(*)
		FROM article_versions GROUP BY discovery_source`)
	if err != nil {
		return nil, fmt.Errorf("aggregating discovery sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scanning discovery source: %w", err)
		}
		stats.DiscoverySources[source] = count
	}
	return stats, rows.Err()
}
