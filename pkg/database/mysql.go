package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/listening-room-system/config"
	"github.com/listening-room-system/pkg/errs"
	"github.com/listening-room-system/pkg/models"
)

type MySQLDB struct {
	*gorm.DB
}

func NewMySQLDB(cfg config.MySQLConfig) (*MySQLDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &MySQLDB{DB: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&models.User{},
		&models.Room{},
		&models.RoomMember{},
		&models.UserStats{},
		&models.ChatMessage{},
	)
}

// User operations

func (db *MySQLDB) CreateUser(ctx context.Context, user *models.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (db *MySQLDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetDisplayNames returns a user-id -> display-name map for the given ids.
// Missing users are simply absent from the result.
func (db *MySQLDB) GetDisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	var users []models.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID.String()] = u.DisplayName
	}
	return names, nil
}

// Room operations

func (db *MySQLDB) CreateRoom(ctx context.Context, room *models.Room) error {
	return db.WithContext(ctx).Create(room).Error
}

func (db *MySQLDB) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room %s: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (db *MySQLDB) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	if err := db.WithContext(ctx).First(&room, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("room code %s: %w", code, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

func (db *MySQLDB) RoomExists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check room existence: %w", err)
	}
	return count > 0, nil
}

// Membership operations

// AddMember creates an active membership, reactivating a previous one if the
// user had left the room.
func (db *MySQLDB) AddMember(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	var existing models.RoomMember
	err := db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&existing).Error
	if err == nil {
		existing.Active = true
		existing.Role = role
		return db.WithContext(ctx).Save(&existing).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up membership: %w", err)
	}

	member := &models.RoomMember{
		ID:     uuid.New(),
		RoomID: roomID,
		UserID: userID,
		Role:   role,
		Active: true,
	}
	return db.WithContext(ctx).Create(member).Error
}

func (db *MySQLDB) IsActiveMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&models.RoomMember{}).
		Where("room_id = ? AND user_id = ? AND active = ?", roomID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// Aggregate stats operations

// ApplyStatsDelta applies a like/dislike delta to the user's lifetime totals
// inside a single transaction, creating the stats row on first use. Each
// counter is floored at zero.
func (db *MySQLDB) ApplyStatsDelta(ctx context.Context, userID string, delta models.StatsDelta) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stats models.UserStats
		err := tx.Where("user_id = ?", uid).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stats = models.UserStats{UserID: uid}
		} else if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		stats.TotalLike = max(0, stats.TotalLike+delta.Like)
		stats.TotalDislike = max(0, stats.TotalDislike+delta.Dislike)
		stats.UpdatedAt = time.Now()

		if err := tx.Save(&stats).Error; err != nil {
			return fmt.Errorf("failed to save stats: %w", err)
		}
		return nil
	})
}

func (db *MySQLDB) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		uid, perr := uuid.Parse(userID)
		if perr != nil {
			return nil, fmt.Errorf("invalid user id %q: %w", userID, perr)
		}
		return &models.UserStats{UserID: uid}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// Chat operations

func (db *MySQLDB) CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	return db.WithContext(ctx).Create(msg).Error
}

// GetChatHistory returns a page of messages for the room, newest first.
func (db *MySQLDB) GetChatHistory(ctx context.Context, roomID string, page, size int) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	err := db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at DESC").
		Offset(page * size).
		Limit(size).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	return messages, nil
}
