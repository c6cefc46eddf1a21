package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/dbtest"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/repository"
)

var now = time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

func TestDashboards(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	users := repository.NewBunUserRepository(db)
	events := repository.NewBunEventRepository(db)
	regs := repository.NewBunRegistrationRepository(db)
	feedback := repository.NewBunFeedbackRepository(db)

	mockClock := clock.NewMock()
	mockClock.Set(now)
	svc := NewService(users, events, regs, feedback).WithClock(mockClock)

	newUser := func(name string, role models.Role) *models.User {
		u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x", Role: role, CreatedAt: now}
		require.NoError(t, users.Create(ctx, u))
		return u
	}
	newEvent := func(title string, organizer *models.User, at, posted time.Time) *models.Event {
		e := &models.Event{Title: title, Description: "d", DatePosted: posted, EventDate: at, Location: "Hall", OrganizerID: &organizer.ID}
		require.NoError(t, events.Create(ctx, e))
		return e
	}

	olga := newUser("olga", models.RoleOrganizer)
	oscar := newUser("oscar", models.RoleOrganizer)
	sam := newUser("sam", models.RoleStudent)
	newUser("root", models.RoleAdmin)

	past := newEvent("Past", olga, now.Add(-48*time.Hour), now.Add(-96*time.Hour))
	soon := newEvent("Soon", olga, now.Add(24*time.Hour), now.Add(-72*time.Hour))
	later := newEvent("Later", oscar, now.Add(72*time.Hour), now.Add(-24*time.Hour))

	require.NoError(t, regs.Create(ctx, &models.Registration{UserID: sam.ID, EventID: past.ID, RegisteredAt: now}))
	require.NoError(t, regs.Create(ctx, &models.Registration{UserID: sam.ID, EventID: soon.ID, RegisteredAt: now}))
	_, err := regs.MarkAttended(ctx, sam.ID, past.ID)
	require.NoError(t, err)

	t.Run("admin", func(t *testing.T) {
		view, err := svc.Admin(ctx)
		require.NoError(t, err)
		assert.Len(t, view.Users, 4)
		require.Len(t, view.Events, 3)
		assert.Equal(t, later.ID, view.Events[0].ID, "newest posted first")

		counts := map[int64]int{}
		for _, c := range view.Counts {
			counts[c.EventID] = c.Registrations
		}
		assert.Equal(t, map[int64]int{past.ID: 1, soon.ID: 1, later.ID: 0}, counts)
	})

	t.Run("organizer sees own events only", func(t *testing.T) {
		view, err := svc.Organizer(ctx, auth.IdentityFor(olga, ""))
		require.NoError(t, err)
		require.Len(t, view.Events, 2)
		assert.Equal(t, "Soon", view.Events[0].Event.Title, "latest event date first")
		assert.Equal(t, "Past", view.Events[1].Event.Title)
		require.Len(t, view.Events[1].Attendees, 1)
		assert.Equal(t, "sam", view.Events[1].Attendees[0].User.Username)
		assert.Equal(t, 1, view.Events[1].AttendedCount())
		assert.Equal(t, 0, view.Events[0].AttendedCount())
	})

	t.Run("student", func(t *testing.T) {
		require.NoError(t, feedback.Create(ctx, &models.Feedback{UserID: sam.ID, EventID: past.ID, Rating: 4, DatePosted: now}))

		view, err := svc.Student(ctx, auth.IdentityFor(sam, ""))
		require.NoError(t, err)
		require.Len(t, view.Entries, 2)

		first, second := view.Entries[0], view.Entries[1]
		assert.Equal(t, "Past", first.Event.Title)
		assert.True(t, first.Attended)
		assert.True(t, first.Finished)
		assert.True(t, first.FeedbackGiven)
		assert.False(t, first.CanLeaveFeedback())

		assert.Equal(t, "Soon", second.Event.Title)
		assert.False(t, second.Finished)
		assert.False(t, second.CanLeaveFeedback())
	})
}
