package survey

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
)

// SQLAccountRepository is the SQL-based implementation of the AccountRepository.
type SQLAccountRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLAccountRepository creates a new instance of the repository.
func NewSQLAccountRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLAccountRepository {
	return &SQLAccountRepository{db: db, logger: logger}
}

var _ survey.AccountRepository = (*SQLAccountRepository)(nil)

// FindByUsername retrieves an account. It returns (nil, nil) when no row exists.
func (r *SQLAccountRepository) FindByUsername(ctx context.Context, username string) (*survey.Account, error) {
	const query = `SELECT id, username, password_hash, role FROM users WHERE username = ?`

	start := time.Now()
	var (
		acct survey.Account
		role sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, username).Scan(&acct.ID, &acct.Username, &acct.PasswordHash, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Database().Error("Failed to load account", "error", err.Error(), "user", username)
		return nil, storageFailure("load account", err)
	}
	acct.Role = survey.ParseRole(role.String)

	r.db.CheckSlow(query, time.Since(start))
	return &acct, nil
}

// List returns all accounts ordered by id. Password hashes are not loaded.
func (r *SQLAccountRepository) List(ctx context.Context) ([]*survey.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, role FROM users ORDER BY id`)
	if err != nil {
		r.logger.Database().Error("Failed to list accounts", "error", err.Error())
		return nil, storageFailure("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]*survey.Account, 0)
	for rows.Next() {
		var (
			acct survey.Account
			role sql.NullString
		)
		if err := rows.Scan(&acct.ID, &acct.Username, &role); err != nil {
			return nil, storageFailure("list accounts", err)
		}
		acct.Role = survey.ParseRole(role.String)
		accounts = append(accounts, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, storageFailure("list accounts", err)
	}
	return accounts, nil
}

// Count returns the number of accounts.
func (r *SQLAccountRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		r.logger.Database().Error("Failed to count accounts", "error", err.Error())
		return 0, storageFailure("count accounts", err)
	}
	return n, nil
}
