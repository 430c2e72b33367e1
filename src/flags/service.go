// Package flags manages per-user feature flags and A/B group assignment.
// Every storage fault is logged and converted to a safe default.
package flags

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maecare/airouter/src/models"
)

// groupBundles lists the flags each A/B group switches on.
var groupBundles = map[models.ABGroup][]models.FeatureFlag{
	models.GroupControl: nil,
	models.GroupGrok:    {models.FlagUseGrok},
	models.GroupGemini:  {models.FlagUseGeminiPro},
	models.GroupSmart:   {models.FlagSmartRouting, models.FlagUseGrok, models.FlagUseGeminiPro},
}

// GroupBundle returns the flags activated by assigning a user to group.
func GroupBundle(group models.ABGroup) []models.FeatureFlag {
	return append([]models.FeatureFlag(nil), groupBundles[group]...)
}

type Service struct {
	store  models.FlagStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(store models.FlagStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// load fetches the row, creating the default one on first access. On a
// store fault the defaults are returned together with the error.
func (s *Service) load(ctx context.Context, userID string) (*models.UserFeatureFlags, error) {
	row, err := s.store.GetUserFeatureFlags(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load feature flags", "error", err, "user_id", userID)
		return models.DefaultUserFeatureFlags(userID), err
	}
	if row != nil {
		return row, nil
	}

	row = models.DefaultUserFeatureFlags(userID)
	row.UpdatedAt = s.now()
	if err := s.store.UpsertUserFeatureFlags(ctx, row); err != nil {
		s.logger.Error("failed to create default feature flags", "error", err, "user_id", userID)
	}
	return row, nil
}

// loadForWrite is load for the mutating operations. A row that no longer
// decodes is replaced by the defaults so it can be repaired; any other fault
// aborts the write.
func (s *Service) loadForWrite(ctx context.Context, userID string) (*models.UserFeatureFlags, bool) {
	row, err := s.load(ctx, userID)
	if err == nil {
		return row, true
	}
	if errors.Is(err, models.ErrMalformedFlags) {
		s.logger.Warn("overwriting malformed feature flags", "user_id", userID)
		return row, true
	}
	return nil, false
}

// GetFlags returns the user's flags, lazily creating the all-false control
// row. On fault the defaults are returned.
func (s *Service) GetFlags(ctx context.Context, userID string) *models.UserFeatureFlags {
	row, _ := s.load(ctx, userID)
	return row
}

// IsEnabled fails closed: any fault reads as false.
func (s *Service) IsEnabled(ctx context.Context, userID string, flag models.FeatureFlag) bool {
	row, err := s.load(ctx, userID)
	if err != nil {
		return false
	}
	return row.Flags.Get(flag)
}

// Update shallow-merges patch into the stored flags and optionally changes
// the group. The group here is recorded as-is, without its flag bundle.
func (s *Service) Update(ctx context.Context, userID string, patch models.FlagsPatch, group *models.ABGroup) bool {
	if group != nil && !group.Valid() {
		s.logger.Warn("rejected invalid ab test group", "user_id", userID, "ab_test_group", *group)
		return false
	}

	row, ok := s.loadForWrite(ctx, userID)
	if !ok {
		return false
	}

	patch.Apply(&row.Flags)
	if group != nil {
		row.ABTestGroup = *group
	}
	row.UpdatedAt = s.now()

	if err := s.store.UpsertUserFeatureFlags(ctx, row); err != nil {
		s.logger.Error("failed to update feature flags", "error", err, "user_id", userID)
		return false
	}

	return true
}

// AssignToGroup sets the user's group and switches on the group's flag bundle.
func (s *Service) AssignToGroup(ctx context.Context, userID string, group models.ABGroup) bool {
	if !group.Valid() {
		s.logger.Warn("rejected invalid ab test group", "user_id", userID, "ab_test_group", group)
		return false
	}

	row, ok := s.loadForWrite(ctx, userID)
	if !ok {
		return false
	}

	row.ABTestGroup = group
	for _, flag := range groupBundles[group] {
		row.Flags.Set(flag, true)
	}
	row.UpdatedAt = s.now()

	if err := s.store.UpsertUserFeatureFlags(ctx, row); err != nil {
		s.logger.Error("failed to assign ab test group", "error", err, "user_id", userID, "ab_test_group", group)
		return false
	}

	s.logger.Info("user assigned to ab test group", "user_id", userID, "ab_test_group", group)
	return true
}

// Distribution counts users per group. Every group is present, with zero
// counts on fault.
func (s *Service) Distribution(ctx context.Context) map[models.ABGroup]int64 {
	dist := make(map[models.ABGroup]int64, len(models.AllABGroups))
	for _, g := range models.AllABGroups {
		dist[g] = 0
	}

	counts, err := s.store.CountUsersByGroup(ctx)
	if err != nil {
		s.logger.Error("failed to count ab test groups", "error", err)
		return dist
	}

	for g, n := range counts {
		if g.Valid() {
			dist[g] = n
		}
	}
	return dist
}
