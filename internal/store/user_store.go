package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/reliefhub/reliefhub/internal/logger"
	"github.com/reliefhub/reliefhub/models"
)

var (
	// ErrLoginAlreadyExists indicates an auth_user insert colliding on login.
	ErrLoginAlreadyExists = errors.New("login already exists")
	// ErrNoUserWasFound indicates an auth_user lookup with no match.
	ErrNoUserWasFound = errors.New("no user was found")
)

// UserStore is the repository over the auth_user account table. The table
// is not part of the schema registry and is unreachable through the
// resource dispatcher.
type UserStore struct {
	db     *DB
	logger *logger.Logger
}

// NewUserStore constructs a UserStore over the given connection.
func NewUserStore(db *DB, log *logger.Logger) *UserStore {
	return &UserStore{db: db, logger: log}
}

// CreateUser inserts a new account row.
func (s *UserStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	log := logger.FromContext(ctx)

	query, args, err := s.db.Builder().
		Insert(user.TableName()).
		Columns("login", "name", "password_hash", "roles", "realm").
		Values(user.Login, user.Name, user.PasswordHash, user.Roles, user.Realm).
		Suffix("RETURNING user_id, created_on").
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	err = s.db.QueryRowContext(ctx, query, args...).Scan(&user.UserID, &user.CreatedOn)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%w: %s", ErrLoginAlreadyExists, user.Login)
		}
		log.Err(err).Str("func", "UserStore.CreateUser").Msg("failed to insert user")
		return models.User{}, fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}

	return user, nil
}

// GetUserByLogin returns the account row with the given login.
func (s *UserStore) GetUserByLogin(ctx context.Context, login string) (models.User, error) {
	return s.getUserWhere(ctx, squirrel.Eq{"login": login})
}

// GetUserByID returns the account row with the given id.
func (s *UserStore) GetUserByID(ctx context.Context, userID int64) (models.User, error) {
	return s.getUserWhere(ctx, squirrel.Eq{"user_id": userID})
}

func (s *UserStore) getUserWhere(ctx context.Context, pred squirrel.Sqlizer) (models.User, error) {
	log := logger.FromContext(ctx)

	query, args, err := s.db.Builder().
		Select("user_id", "login", "name", "password_hash", "roles", "realm", "created_on").
		From(models.User{}.TableName()).
		Where(pred).
		ToSql()
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrBuildingSQLQuery, err)
	}

	var user models.User
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&user.UserID, &user.Login, &user.Name, &user.PasswordHash, &user.Roles, &user.Realm, &user.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNoUserWasFound
		}
		log.Err(err).Str("func", "UserStore.getUserWhere").Msg("failed to query user")
		return models.User{}, fmt.Errorf("%w: %w", ErrScanningRow, err)
	}

	return user, nil
}
