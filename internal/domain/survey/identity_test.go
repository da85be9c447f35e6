package survey

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	admin := Identity{Username: "admin", Role: RoleAdmin}
	user := Identity{Username: "user01", Role: RoleUser}
	guest := Guest()
	rec := &Record{Surveyor: "user01"}

	assert.True(t, IsAdmin(admin))
	assert.False(t, IsAdmin(user))
	assert.False(t, IsAdmin(Identity{Role: RoleAdmin}), "a role without a username is not a login")

	assert.True(t, IsOwner(user, rec))
	assert.False(t, IsOwner(admin, rec))
	assert.False(t, IsOwner(guest, &Record{Surveyor: ""}))

	for _, id := range []Identity{admin, user, guest} {
		assert.True(t, CanRead(id))
	}
	assert.True(t, CanWrite(admin))
	assert.True(t, CanWrite(user))
	assert.False(t, CanWrite(guest))

	assert.True(t, CanDelete(admin, "someone"))
	assert.True(t, CanDelete(user, "user01"))
	assert.False(t, CanDelete(user, "Hardware_Box"))
	assert.False(t, CanDelete(guest, ""))
}

func TestIdentityContext(t *testing.T) {
	assert.Equal(t, RoleGuest, IdentityFromContext(context.Background()).Role)

	ctx := WithIdentity(context.Background(), Identity{Username: "admin", Role: RoleAdmin})
	assert.Equal(t, "admin", IdentityFromContext(ctx).Username)

	ctx = WithIdentity(context.Background(), Identity{VisitorToken: "v"})
	assert.Equal(t, RoleGuest, IdentityFromContext(ctx).Role)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleUser, ParseRole("user"))
	assert.Equal(t, RoleUser, ParseRole(""))
	assert.Equal(t, RoleUser, ParseRole("superuser"))
}

func TestStorageErrorClassification(t *testing.T) {
	cause := errors.New("database is locked")
	err := StorageError("insert survey", cause)
	assert.True(t, errors.Is(err, ErrStorage))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "insert survey failed: database is locked", err.Error())
	assert.Same(t, err, StorageError("outer", err))
	assert.Nil(t, StorageError("noop", nil))
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := StorageError("store image", errors.New("mkdir /srv/makhaen/uploads: permission denied"))
	assert.Equal(t, "store image", StorageOp(err))
	assert.Equal(t, "store image failed", PublicMessage(err))

	busy := StorageError("delete survey", fmt.Errorf("%w: database is locked", ErrBusy))
	assert.ErrorIs(t, busy, ErrStorage)
	assert.ErrorIs(t, busy, ErrBusy)
	assert.Equal(t, "delete survey failed: store busy, retry later", PublicMessage(busy))

	assert.Equal(t, "", StorageOp(errors.New("plain")))
	assert.Equal(t, "storage failed", PublicMessage(errors.New("plain")))
}
