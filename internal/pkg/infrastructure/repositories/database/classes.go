package database

import (
	"context"

	"github.com/iot-for-tillgenglighet/energy-dashboard/internal/pkg/infrastructure/repositories/models"
)

//ClassStore reads and writes the rooms that devices are installed in
type ClassStore interface {
	GetClasses(ctx context.Context) ([]models.Class, error)
	GetClassFromID(ctx context.Context, id uint) (*models.Class, error)
	CreateClass(ctx context.Context, class *models.Class) (*models.Class, error)
	UpdateClass(ctx context.Context, id uint, fields map[string]interface{}) (*models.Class, error)
	DeleteClass(ctx context.Context, id uint) error
}

func (db *myDB) GetClasses(ctx context.Context) ([]models.Class, error) {
	classes := []models.Class{}
	err := db.impl.WithContext(ctx).
		Where("status = ?", models.ClassStatusActive).
		Order("name").
		Find(&classes).Error
	return classes, err
}

func (db *myDB) GetClassFromID(ctx context.Context, id uint) (*models.Class, error) {
	class := &models.Class{}
	err := db.impl.WithContext(ctx).First(class, id).Error
	if err != nil {
		return nil, notFoundOr(err)
	}
	return class, nil
}

func (db *myDB) CreateClass(ctx context.Context, class *models.Class) (*models.Class, error) {
	if err := db.impl.WithContext(ctx).Create(class).Error; err != nil {
		return nil, err
	}
	return class, nil
}

func (db *myDB) UpdateClass(ctx context.Context, id uint, fields map[string]interface{}) (*models.Class, error) {
	class, err := db.GetClassFromID(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		err = db.impl.WithContext(ctx).Model(class).Updates(fields).Error
		if err != nil {
			return nil, err
		}
	}

	return db.GetClassFromID(ctx, id)
}

func (db *myDB) DeleteClass(ctx context.Context, id uint) error {
	result := db.impl.WithContext(ctx).Delete(&models.Class{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
