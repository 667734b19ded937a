package store

import (
	"context"
	"errors"
	"fmt"

	"collabboard/internal/errs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenPostgres: connects and migrates the catalogue schema
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Room{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// GormRepository: Repository on any gorm dialect
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (gr *GormRepository) Create(ctx context.Context, room *Room) (*Room, error) {
	result := gr.db.WithContext(ctx).Create(room)
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errs.ErrSlugTaken
		}
		return nil, err
	}
	return room, nil
}

func (gr *GormRepository) FindBySlug(ctx context.Context, slug string) (*Room, error) {
	var room Room
	result := gr.db.WithContext(ctx).Where("slug = ?", slug).First(&room)
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (gr *GormRepository) ListByAdmin(ctx context.Context, adminID string) ([]Room, error) {
	var rooms []Room
	result := gr.db.WithContext(ctx).Where("admin_id = ?", adminID).Order("created_at desc").Find(&rooms)
	if err := result.Error; err != nil {
		return nil, err
	}
	return rooms, nil
}
