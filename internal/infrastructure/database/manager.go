package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/makhaen-survey/makhaen-go/internal/domain/survey"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/observability/logging"
	store "github.com/makhaen-survey/makhaen-go/internal/infrastructure/persistence/database"
	"github.com/makhaen-survey/makhaen-go/internal/infrastructure/security"
)

// DefaultAccount describes an account created on first start.
type DefaultAccount struct {
	Username string
	Password string
	Role     survey.Role
}

// SchemaManager brings a store up to the current schema and seeds it.
type SchemaManager struct {
	db     *store.DB
	logger *logging.ChanneledLogger
}

// NewSchemaManager creates a new SchemaManager.
func NewSchemaManager(db *store.DB, logger *logging.ChanneledLogger) *SchemaManager {
	return &SchemaManager{db: db, logger: logger}
}

// Inspect reads the live schema into a Snapshot.
func (m *SchemaManager) Inspect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		Columns: make(map[string]map[string]bool),
		Indexes: make(map[string]bool),
	}

	rows, err := m.db.QueryContext(ctx, `SELECT type, name FROM sqlite_master WHERE type IN ('table', 'index') AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return snap, fmt.Errorf("list schema objects: %w", err)
	}
	var tableNames []string
	for rows.Next() {
		var kind, name string
		if err := rows.Scan(&kind, &name); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan schema object: %w", err)
		}
		if kind == "table" {
			tableNames = append(tableNames, name)
		} else {
			snap.Indexes[name] = true
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return snap, fmt.Errorf("list schema objects: %w", err)
	}
	rows.Close()

	for _, table := range tableNames {
		cols, err := m.columns(ctx, table)
		if err != nil {
			return snap, err
		}
		snap.Columns[table] = cols
	}

	if snap.HasColumn("surveys", "img_name") {
		err := m.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM (SELECT img_name FROM surveys GROUP BY img_name HAVING COUNT(*) > 1)`).
			Scan(&snap.DuplicateImageNames)
		if err != nil {
			return snap, fmt.Errorf("count duplicate image names: %w", err)
		}
	}

	if err := m.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&snap.UserVersion); err != nil {
		return snap, fmt.Errorf("read user_version: %w", err)
	}
	return snap, nil
}

func (m *SchemaManager) columns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column of %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Apply executes plan in a single transaction and stamps the schema version.
func (m *SchemaManager) Apply(ctx context.Context, plan Plan) error {
	if plan.Empty() {
		return nil
	}
	return m.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, step := range plan.Steps {
			for _, stmt := range step.Statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", step.Description, err)
				}
			}
			m.logger.Database().Info("Schema step applied", "step", step.Description)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, plan.ToVersion)); err != nil {
			return fmt.Errorf("stamp user_version: %w", err)
		}
		return nil
	})
}

// Upgrade inspects the database, applies whatever plan is needed and hashes
// any clear-text passwords left by older deployments. It is idempotent.
func (m *SchemaManager) Upgrade(ctx context.Context) (Plan, error) {
	start := time.Now()

	snap, err := m.Inspect(ctx)
	if err != nil {
		return Plan{}, survey.StorageError("inspect schema", err)
	}

	plan := PlanUpgrade(snap)
	for _, w := range plan.Warnings {
		m.logger.Database().Warn("Schema upgrade warning", "warning", w)
	}

	if err := m.Apply(ctx, plan); err != nil {
		m.logger.Database().Error("Schema upgrade failed", "error", err.Error())
		return plan, survey.StorageError("upgrade schema", err)
	}

	rehashed, err := m.RehashLegacyPasswords(ctx)
	if err != nil {
		return plan, err
	}
	plan.Rehashed = rehashed

	duration := time.Since(start)
	m.logger.Database().Info("Schema is current",
		"fromVersion", plan.FromVersion, "toVersion", plan.ToVersion,
		"steps", len(plan.Steps), "rehashedPasswords", rehashed, "duration", duration)
	m.db.CheckSlow("SCHEMA_UPGRADE", duration)
	return plan, nil
}

// RehashLegacyPasswords replaces every password_hash value that is not a
// bcrypt hash with the bcrypt hash of that value.
func (m *SchemaManager) RehashLegacyPasswords(ctx context.Context) (int, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id, password_hash FROM users`)
	if err != nil {
		return 0, survey.StorageError("read credentials", err)
	}
	type legacy struct {
		id    int64
		value string
	}
	var pending []legacy
	for rows.Next() {
		var l legacy
		if err := rows.Scan(&l.id, &l.value); err != nil {
			rows.Close()
			return 0, survey.StorageError("read credentials", err)
		}
		if !security.IsBcryptHash(l.value) {
			pending = append(pending, l)
		}
	}
	rows.Close()
	if len(pending) == 0 {
		return 0, nil
	}

	err = m.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, l := range pending {
			hash, err := security.HashPassword(l.value)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, l.id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, survey.StorageError("rehash credentials", err)
	}
	m.logger.Auth().Warn("Hashed clear-text passwords left by an older deployment", "count", len(pending))
	return len(pending), nil
}

// SeedDefaultAccounts creates the given accounts if their usernames are free.
// Existing accounts keep their passwords unless reset is true, in which case
// the configured password and role are written back. reset exists to recover
// lost credentials and should be switched off again afterwards.
func (m *SchemaManager) SeedDefaultAccounts(ctx context.Context, accounts []DefaultAccount, reset bool) error {
	for _, acct := range accounts {
		if !reset {
			var exists bool
			err := m.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, acct.Username).Scan(&exists)
			if err != nil {
				return survey.StorageError("seed accounts", err)
			}
			if exists {
				continue
			}
		}

		hash, err := security.HashPassword(acct.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", acct.Username, err)
		}

		query := `INSERT OR IGNORE INTO users (username, password_hash, role) VALUES (?, ?, ?)`
		if reset {
			query = `INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)
				ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, role = excluded.role`
		}
		res, err := m.db.ExecContext(ctx, query, acct.Username, hash, string(acct.Role))
		if err != nil {
			return survey.StorageError("seed accounts", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			if reset {
				m.logger.Auth().Warn("Default account credentials reset", "user", acct.Username)
			} else {
				m.logger.Auth().Info("Default account created", "user", acct.Username, "role", acct.Role)
			}
		}
	}
	return nil
}
