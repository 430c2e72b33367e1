package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/maecare/airouter/src/models"
)

// GetUserFeatureFlags returns nil, nil when the user has no row yet. A flags
// blob that does not decode is reported as an error.
func (d *DB) GetUserFeatureFlags(ctx context.Context, userID string) (*models.UserFeatureFlags, error) {
	query := `SELECT user_id, flags, ab_test_group, updated_at FROM user_feature_flags WHERE user_id = ` + d.placeholder(1)

	var (
		row       models.UserFeatureFlags
		blob      string
		group     string
		updatedAt int64
	)
	err := d.db.QueryRowContext(ctx, query, userID).Scan(&row.UserID, &blob, &group, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature flags: %w", err)
	}

	if err := json.Unmarshal([]byte(blob), &row.Flags); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", models.ErrMalformedFlags, userID, err)
	}
	row.ABTestGroup = models.ABGroup(group)
	if !row.ABTestGroup.Valid() {
		return nil, fmt.Errorf("%w for %s: invalid ab test group %q", models.ErrMalformedFlags, userID, group)
	}
	row.UpdatedAt = time.UnixMilli(updatedAt)

	return &row, nil
}

// UpsertUserFeatureFlags inserts or replaces the user's single row.
func (d *DB) UpsertUserFeatureFlags(ctx context.Context, flags *models.UserFeatureFlags) error {
	blob, err := json.Marshal(flags.Flags)
	if err != nil {
		return fmt.Errorf("failed to marshal feature flags: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO user_feature_flags (user_id, flags, ab_test_group, updated_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (user_id) DO UPDATE SET
			flags = excluded.flags,
			ab_test_group = excluded.ab_test_group,
			updated_at = excluded.updated_at`,
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4))

	_, err = d.db.ExecContext(ctx, query,
		flags.UserID,
		string(blob),
		string(flags.ABTestGroup),
		flags.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert feature flags: %w", err)
	}

	return nil
}

func (d *DB) CountUsersByGroup(ctx context.Context) (map[models.ABGroup]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT ab_test_group, COUNT(*) FROM user_feature_flags GROUP BY ab_test_group`)
	if err != nil {
		return nil, fmt.Errorf("failed to count users by group: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ABGroup]int64)
	for rows.Next() {
		var (
			group string
			n     int64
		)
		if err := rows.Scan(&group, &n); err != nil {
			return nil, fmt.Errorf("failed to scan group count: %w", err)
		}
		counts[models.ABGroup(group)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group counts: %w", err)
	}

	return counts, nil
}
