package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func currentSnapshot() Snapshot {
	cols := func(names ...string) map[string]bool {
		m := make(map[string]bool)
		for _, n := range names {
			m[n] = true
		}
		return m
	}
	return Snapshot{
		Columns: map[string]map[string]bool{
			"surveys":  cols("id", "img_name", "lat", "lng", "accuracy", "surveyor", "prediction", "confidence", "timestamp", "status"),
			"users":    cols("id", "username", "password_hash", "role"),
			"visitors": cols("session_id", "last_seen"),
		},
		Indexes: map[string]bool{
			"idx_surveys_timestamp":  true,
			"idx_surveys_surveyor":   true,
			"idx_visitors_last_seen": true,
			"idx_surveys_img_name":   true,
		},
		UserVersion: SchemaVersion,
	}
}

func descriptions(p Plan) []string {
	var out []string
	for _, s := range p.Steps {
		out = append(out, s.Description)
	}
	return out
}

func TestPlanUpgradeCurrentIsEmpty(t *testing.T) {
	assert.True(t, PlanUpgrade(currentSnapshot()).Empty())
}

func TestPlanUpgradeOnlyStampsVersion(t *testing.T) {
	snap := currentSnapshot()
	snap.UserVersion = 0
	plan := PlanUpgrade(snap)
	assert.Empty(t, plan.Steps)
	assert.False(t, plan.Empty())
	assert.Equal(t, SchemaVersion, plan.ToVersion)
}

func TestPlanUpgradeEmptyDatabase(t *testing.T) {
	plan := PlanUpgrade(Snapshot{})
	d := descriptions(plan)
	assert.Equal(t, []string{"create table surveys", "create table users", "create table visitors"}, d[:3])
	assert.Contains(t, d, "create unique index idx_surveys_img_name")
}

func TestPlanUpgradeLegacyUsers(t *testing.T) {
	snap := currentSnapshot()
	snap.Columns["users"] = map[string]bool{"id": true, "username": true, "password": true}
	plan := PlanUpgrade(snap)
	assert.Equal(t, []string{"rebuild users with password_hash"}, descriptions(plan))
	assert.Contains(t, plan.Steps[0].Statements[2], "'user'")

	snap.Columns["users"]["role"] = true
	plan = PlanUpgrade(snap)
	assert.Contains(t, plan.Steps[0].Statements[2], "COALESCE")

	snap.Columns["users"] = map[string]bool{"id": true, "username": true, "password_hash": true}
	assert.Equal(t, []string{"add role to users"}, descriptions(PlanUpgrade(snap)))
}

func TestPlanUpgradeLegacySurveys(t *testing.T) {
	snap := currentSnapshot()
	delete(snap.Columns["surveys"], "prediction")
	delete(snap.Columns["surveys"], "confidence")
	assert.Equal(t, []string{"add prediction to surveys", "add confidence to surveys"}, descriptions(PlanUpgrade(snap)))
}

func TestPlanUpgradeDuplicateImageNames(t *testing.T) {
	snap := currentSnapshot()
	delete(snap.Indexes, "idx_surveys_img_name")
	snap.DuplicateImageNames = 3

	plan := PlanUpgrade(snap)
	assert.Equal(t, []string{"create index idx_surveys_img_name_lookup"}, descriptions(plan))
	assert.Len(t, plan.Warnings, 1)

	snap.Indexes["idx_surveys_img_name_lookup"] = true
	assert.Empty(t, PlanUpgrade(snap).Steps)

	snap.DuplicateImageNames = 0
	plan = PlanUpgrade(snap)
	assert.Equal(t, []string{"create unique index idx_surveys_img_name"}, descriptions(plan))
	assert.Len(t, plan.Steps[0].Statements, 2)
}

func TestPlanUpgradeNewerDatabase(t *testing.T) {
	snap := currentSnapshot()
	snap.UserVersion = SchemaVersion + 1
	plan := PlanUpgrade(snap)
	assert.True(t, plan.Empty())
	assert.Len(t, plan.Warnings, 1)
}
