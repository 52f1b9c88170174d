// internal/services/notification_service_test.go
package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/couponx-backend/internal/models"
	"github.com/javajoker/couponx-backend/internal/utils"
)

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	notifications := f.svc.Notifications

	notifications.Notify(ctx, alice, models.NotificationNewSale, "New sale", "first", models.JSONB{"n": 1})
	notifications.Notify(ctx, alice, models.NotificationPaymentHeld, "Held", "second", nil)
	notifications.Notify(ctx, bob, models.NotificationNewReview, "Review", "for bob", nil)

	params := utils.PaginationParams{Page: 1, Limit: 10}

	list, total, err := notifications.List(ctx, alice, false, params)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)

	var first models.Notification
	for _, n := range list {
		if n.Message == "first" {
			first = n
		}
	}
	require.NotEqual(t, uuid.Nil, first.ID)
	assert.EqualValues(t, 1, first.Data["n"])

	_, err = notifications.MarkRead(ctx, bob, first.ID)
	assert.True(t, utils.IsKind(err, utils.KindNotFound), "users cannot read each other's notifications")

	read, err := notifications.MarkRead(ctx, alice, first.ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	again, err := notifications.MarkRead(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.True(t, read.ReadAt.Equal(*again.ReadAt))

	unread, total, err := notifications.List(ctx, alice, true, params)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, unread, 1)
	assert.Equal(t, "second", unread[0].Message)

	empty, total, err := notifications.List(ctx, uuid.New(), false, params)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.NotNil(t, empty)
}
