package database

import (
	"context"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"

	"gorm.io/gorm/clause"
)

//SettingStore reads and writes system settings and per user preferences
type SettingStore interface {
	GetSettings(ctx context.Context) ([]models.Setting, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	SaveSetting(ctx context.Context, setting *models.Setting) (*models.Setting, error)
	UpdateSettingValue(ctx context.Context, key, value string) (*models.Setting, error)
	DeleteSetting(ctx context.Context, key string) error
	GetUserSettings(ctx context.Context, userID string) (*models.UserSetting, error)
	SaveUserSettings(ctx context.Context, userID string, fields map[string]interface{}) (*models.UserSetting, error)
}

func (db *myDB) GetSettings(ctx context.Context) ([]models.Setting, error) {
	settings := []models.Setting{}
	err := db.impl.WithContext(ctx).Order("setting_key").Find(&settings).Error
	return settings, err
}

func (db *myDB) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	setting := &models.Setting{}
	err := db.impl.WithContext(ctx).Where("setting_key = ?", key).Take(setting).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return setting, nil
}

//SaveSetting creates the setting or replaces the value and data type of an existing one
func (db *myDB) SaveSetting(ctx context.Context, setting *models.Setting) (*models.Setting, error) {
	err := db.impl.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "data_type", "updated_at"}),
		}).
		Create(setting).Error
	if err != nil {
		return nil, err
	}

	return db.GetSetting(ctx, setting.SettingKey)
}

func (db *myDB) UpdateSettingValue(ctx context.Context, key, value string) (*models.Setting, error) {
	setting, err := db.GetSetting(ctx, key)
	if err != nil {
		return nil, err
	}

	err = db.impl.WithContext(ctx).Model(setting).Update("setting_value", value).Error
	if err != nil {
		return nil, err
	}

	return db.GetSetting(ctx, key)
}

func (db *myDB) DeleteSetting(ctx context.Context, key string) error {
	result := db.impl.WithContext(ctx).Where("setting_key = ?", key).Delete(&models.Setting{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *myDB) GetUserSettings(ctx context.Context, userID string) (*models.UserSetting, error) {
	settings := &models.UserSetting{}
	err := db.impl.WithContext(ctx).Where("user_id = ?", userID).Take(settings).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return settings, nil
}

//SaveUserSettings merges fields into the stored preferences of a user, starting from
//the defaults if the user has none yet
func (db *myDB) SaveUserSettings(ctx context.Context, userID string, fields map[string]interface{}) (*models.UserSetting, error) {
	_, err := db.GetUserSettings(ctx, userID)
	if err == ErrNotFound {
		err = db.impl.WithContext(ctx).Create(models.NewUserSetting(userID)).Error
	}
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		err = db.impl.WithContext(ctx).
			Model(&models.UserSetting{}).
			Where("user_id = ?", userID).
			Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}

	return db.GetUserSettings(ctx, userID)
}
