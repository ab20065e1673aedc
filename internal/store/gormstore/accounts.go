package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/parking/internal/accounts"
	"github.com/MarkoPoloResearchLab/parking/pkg/occupancy"
	"gorm.io/gorm"
)

func (store *Store) CreateUser(ctx context.Context, input accounts.UserInput) (accounts.User, error) {
	model := User{
		Username:     input.Username,
		DisplayName:  input.DisplayName,
		PasswordHash: input.PasswordHash,
		IsAdmin:      input.IsAdmin,
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintUsersUsername) {
		return accounts.User{}, wrapStoreError(errorSubjectUser, errorCodeDuplicate, occupancy.ErrDuplicateUsername)
	}
	if err != nil {
		return accounts.User{}, wrapStoreError(errorSubjectUser, errorCodeCreate, err)
	}
	return mapUserOrWrap(model)
}

func (store *Store) GetUser(ctx context.Context, userID occupancy.UserID) (accounts.User, error) {
	return takeUser(store.db.WithContext(ctx).Where("user_id = ?", userID.Int64()))
}

func (store *Store) GetUserByUsername(ctx context.Context, username string) (accounts.User, error) {
	return takeUser(store.db.WithContext(ctx).Where("username = ?", username))
}

func (store *Store) ListUsers(ctx context.Context) ([]accounts.User, error) {
	var rows []User
	if err := store.db.WithContext(ctx).Order("user_id ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectUser, errorCodeList, err)
	}
	users := make([]accounts.User, 0, len(rows))
	for _, row := range rows {
		user, err := mapUserOrWrap(row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// PromoteUser sets the admin flag and reports whether it changed.
func (store *Store) PromoteUser(ctx context.Context, userID occupancy.UserID) (bool, error) {
	database := store.db.WithContext(ctx)
	result := database.
		Model(&User{}).
		Where("user_id = ? AND is_admin = ?", userID.Int64(), false).
		Update("is_admin", true)
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	var existing int64
	if err := database.Model(&User{}).Where("user_id = ?", userID.Int64()).Count(&existing).Error; err != nil {
		return false, wrapStoreError(errorSubjectUser, errorCodeUpdate, err)
	}
	if existing == 0 {
		return false, wrapStoreError(errorSubjectUser, errorCodeUpdate, occupancy.ErrUserNotFound)
	}
	return false, nil
}

func (store *Store) CreateSession(ctx context.Context, input accounts.SessionInput) (accounts.Session, error) {
	model := Session{
		UserID:    input.UserID.Int64(),
		ExpiresAt: unixToTime(input.ExpiresUnixUTC),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return accounts.Session{}, wrapStoreError(errorSubjectSession, errorCodeCreate, err)
	}
	return mapSessionOrWrap(model)
}

func (store *Store) GetSession(ctx context.Context, sessionID string) (accounts.Session, error) {
	var model Session
	err := store.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return accounts.Session{}, wrapStoreError(errorSubjectSession, errorCodeGet, occupancy.ErrSessionNotFound)
		}
		return accounts.Session{}, wrapStoreError(errorSubjectSession, errorCodeGet, err)
	}
	return mapSessionOrWrap(model)
}

func (store *Store) RevokeSession(ctx context.Context, sessionID string) error {
	result := store.db.WithContext(ctx).
		Model(&Session{}).
		Where("session_id = ?", sessionID).
		Update("revoked", true)
	if result.Error != nil {
		return wrapStoreError(errorSubjectSession, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectSession, errorCodeUpdate, occupancy.ErrSessionNotFound)
	}
	return nil
}

func takeUser(query *gorm.DB) (accounts.User, error) {
	var model User
	if err := query.Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return accounts.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, occupancy.ErrUserNotFound)
		}
		return accounts.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return mapUserOrWrap(model)
}

func mapUserOrWrap(row User) (accounts.User, error) {
	userID, err := occupancy.NewUserID(row.UserID)
	if err != nil {
		return accounts.User{}, wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	return accounts.User{
		ID:             userID,
		Username:       row.Username,
		DisplayName:    row.DisplayName,
		PasswordHash:   row.PasswordHash,
		IsAdmin:        row.IsAdmin,
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}, nil
}

func mapSessionOrWrap(row Session) (accounts.Session, error) {
	userID, err := occupancy.NewUserID(row.UserID)
	if err != nil {
		return accounts.Session{}, wrapStoreError(errorSubjectSession, errorCodeInvalid, err)
	}
	return accounts.Session{
		ID:             row.SessionID,
		UserID:         userID,
		ExpiresUnixUTC: row.ExpiresAt.Unix(),
		Revoked:        row.Revoked,
	}, nil
}

