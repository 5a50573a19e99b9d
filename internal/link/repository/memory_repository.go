package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bondedlink/internal/dbmysql"
	"bondedlink/internal/link/model"
)

const (
	prefNameKey      = "preferred_name"
	prefNameUpdatedK = "preferred_name_updated_at"
)

// Memory returns nil without error when the user has no memory record.
func (r *linkRepo) Memory(ctx context.Context, userID string) (*model.Memory, error) {
	var row dbmysql.UserMemory
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load memory: %w", err)
	}

	mem := &model.Memory{
		UserID:            row.UserID,
		TotalInteractions: row.TotalInteractions,
		LastInteractionAt: row.LastInteractionAt,
	}
	prefs := model.NormalizeMetadata(row.KnownPreferences)
	if name := prefs.FirstText(prefNameKey); name != "" {
		mem.PreferredName = &model.PreferredName{
			Name:      name,
			UpdatedAt: model.ParseTimestamp(prefs[prefNameUpdatedK]),
		}
	}
	return mem, nil
}

// SetPreferredName merges the name into known_preferences, keeping any other
// keys already stored there.
func (r *linkRepo) SetPreferredName(ctx context.Context, userID, name string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row dbmysql.UserMemory
		err := tx.Where("user_id = ?", userID).Take(&row).Error
		found := true
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = dbmysql.UserMemory{UserID: userID}
			found = false
		case err != nil:
			return fmt.Errorf("load memory: %w", err)
		}

		prefs := model.NormalizeMetadata(row.KnownPreferences)
		prefs[prefNameKey] = name
		prefs[prefNameUpdatedK] = at.UTC().Format(time.RFC3339)
		encoded, err := json.Marshal(prefs)
		if err != nil {
			return fmt.Errorf("encode preferences: %w", err)
		}
		row.KnownPreferences = string(encoded)
		row.UpdatedAt = r.now()

		if !found {
			return tx.Create(&row).Error
		}
		return tx.Save(&row).Error
	})
}

// RecordInteraction bumps the interaction counter, creating the record when
// the user has none yet.
func (r *linkRepo) RecordInteraction(ctx context.Context, userID string, at time.Time) error {
	at = at.UTC()
	row := dbmysql.UserMemory{
		UserID:            userID,
		KnownPreferences:  "{}",
		TotalInteractions: 1,
		LastInteractionAt: &at,
		UpdatedAt:         r.now(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_interactions":  gorm.Expr("total_interactions + 1"),
				"last_interaction_at": at,
				"updated_at":          r.now(),
			}),
		}).
		Create(&row).Error
}

// LinkUserID returns "" when the university has no Link system profile.
func (r *linkRepo) LinkUserID(ctx context.Context, universityID string) (string, error) {
	var profile dbmysql.SystemProfile
	err := r.db.WithContext(ctx).Where("university_id = ?", universityID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load link profile: %w", err)
	}
	return profile.LinkUserID, nil
}
