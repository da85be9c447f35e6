// Package database inspects, upgrades and seeds the survey store schema.
package database

import (
	"fmt"
	"sort"
)

// SchemaVersion is stamped into PRAGMA user_version once an upgrade completes.
const SchemaVersion = 2

var tables = map[string]string{
	"surveys": `CREATE TABLE IF NOT EXISTS surveys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		img_name TEXT NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		accuracy REAL,
		surveyor TEXT,
		prediction TEXT,
		confidence REAL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status TEXT DEFAULT 'completed'
	)`,
	"users": `CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user'
	)`,
	"visitors": `CREATE TABLE IF NOT EXISTS visitors (
		session_id TEXT PRIMARY KEY,
		last_seen DATETIME NOT NULL
	)`,
}

var tableOrder = []string{"surveys", "users", "visitors"}

var indexes = map[string]string{
	"idx_surveys_timestamp":  `CREATE INDEX IF NOT EXISTS idx_surveys_timestamp ON surveys(timestamp DESC, id DESC)`,
	"idx_surveys_surveyor":   `CREATE INDEX IF NOT EXISTS idx_surveys_surveyor ON surveys(surveyor)`,
	"idx_visitors_last_seen": `CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen)`,
}

const (
	uniqueImageIndex       = "idx_surveys_img_name"
	imageLookupIndex       = "idx_surveys_img_name_lookup"
	createUniqueImageIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_surveys_img_name ON surveys(img_name)`
	createImageLookupIndex = `CREATE INDEX IF NOT EXISTS idx_surveys_img_name_lookup ON surveys(img_name)`
)

// Snapshot is the observed state of a database before an upgrade.
type Snapshot struct {
	// Columns maps each existing table to its set of column names.
	Columns             map[string]map[string]bool
	Indexes             map[string]bool
	DuplicateImageNames int
	UserVersion         int
}

// HasTable reports whether the snapshot contains table.
func (s Snapshot) HasTable(table string) bool {
	_, ok := s.Columns[table]
	return ok
}

// HasColumn reports whether table exists with column.
func (s Snapshot) HasColumn(table, column string) bool {
	return s.Columns[table][column]
}

// Step is one unit of an upgrade plan.
type Step struct {
	Description string
	Statements  []string
}

// Plan is the ordered list of steps that brings a snapshot to SchemaVersion.
type Plan struct {
	Steps       []Step
	Warnings    []string
	FromVersion int
	ToVersion   int

	// Rehashed counts clear-text passwords hashed by Upgrade.
	Rehashed int
}

// Empty reports whether applying the plan would change nothing.
func (p Plan) Empty() bool {
	return len(p.Steps) == 0 && p.FromVersion == p.ToVersion
}

// PlanUpgrade computes the steps needed to bring s up to date. It performs no I/O.
func PlanUpgrade(s Snapshot) Plan {
	plan := Plan{FromVersion: s.UserVersion, ToVersion: SchemaVersion}
	if s.UserVersion > SchemaVersion {
		plan.ToVersion = s.UserVersion
		plan.Warnings = append(plan.Warnings,
			fmt.Sprintf("database schema version %d is newer than this build (%d)", s.UserVersion, SchemaVersion))
	}

	for _, table := range tableOrder {
		if !s.HasTable(table) {
			plan.Steps = append(plan.Steps, Step{
				Description: "create table " + table,
				Statements:  []string{tables[table]},
			})
		}
	}

	if s.HasTable("users") {
		switch {
		case s.HasColumn("users", "password") && !s.HasColumn("users", "password_hash"):
			plan.Steps = append(plan.Steps, rebuildLegacyUsers(s.HasColumn("users", "role")))
		case !s.HasColumn("users", "role"):
			plan.Steps = append(plan.Steps, Step{
				Description: "add role to users",
				Statements:  []string{`ALTER TABLE users ADD COLUMN role TEXT DEFAULT 'user'`},
			})
		}
	}

	if s.HasTable("surveys") {
		for _, col := range []string{"prediction", "confidence"} {
			if s.HasColumn("surveys", col) {
				continue
			}
			colType := "TEXT"
			if col == "confidence" {
				colType = "REAL"
			}
			plan.Steps = append(plan.Steps, Step{
				Description: "add " + col + " to surveys",
				Statements:  []string{fmt.Sprintf(`ALTER TABLE surveys ADD COLUMN %s %s`, col, colType)},
			})
		}
	}

	names := make([]string, 0, len(indexes))
	for name := range indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !s.Indexes[name] {
			plan.Steps = append(plan.Steps, Step{Description: "create index " + name, Statements: []string{indexes[name]}})
		}
	}

	if !s.Indexes[uniqueImageIndex] {
		if s.DuplicateImageNames > 0 {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("%d image names occur more than once; unique index deferred until they are resolved", s.DuplicateImageNames))
			if !s.Indexes[imageLookupIndex] {
				plan.Steps = append(plan.Steps, Step{Description: "create index " + imageLookupIndex, Statements: []string{createImageLookupIndex}})
			}
		} else {
			steps := []string{createUniqueImageIndex}
			if s.Indexes[imageLookupIndex] {
				steps = append(steps, `DROP INDEX IF EXISTS `+imageLookupIndex)
			}
			plan.Steps = append(plan.Steps, Step{Description: "create unique index " + uniqueImageIndex, Statements: steps})
		}
	}

	return plan
}

// rebuildLegacyUsers moves a clear-text password column into password_hash.
// The values are hashed afterwards by RehashLegacyPasswords.
func rebuildLegacyUsers(hasRole bool) Step {
	roleExpr := "'user'"
	if hasRole {
		roleExpr = "COALESCE(NULLIF(role, ''), 'user')"
	}
	return Step{
		Description: "rebuild users with password_hash",
		Statements: []string{
			`DROP TABLE IF EXISTS users_new`,
			`CREATE TABLE users_new (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				username TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user'
			)`,
			`INSERT INTO users_new (id, username, password_hash, role)
				SELECT id, username, password, ` + roleExpr + ` FROM users`,
			`DROP TABLE users`,
			`ALTER TABLE users_new RENAME TO users`,
		},
	}
}
