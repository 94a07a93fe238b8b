package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/favorite"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/message"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/passwordreset"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tag"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/user"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *Store
	clock  time.Time
	buyer  user.User
	parent tag.Tag
	child  tag.Tag
	other  tag.Tag
}

// newFixture seeds one buyer and a small taxonomy. The clock advances one second
// per read so rows get distinct creation times.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: NewStore(), clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
	var mu sync.Mutex
	f.store.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		f.clock = f.clock.Add(time.Second)
		return f.clock
	})

	var err error
	f.buyer, err = f.store.Users().Create(ctx, user.CreateParams{
		FirstName: "Ada", LastName: "Buyer", Email: "ada@example.com",
		PasswordHash: "x", Role: user.RoleBuyer, Subscription: user.SubscriptionFull,
	})
	require.NoError(t, err)

	f.parent, err = f.store.Tags().Create(ctx, "Construction", nil)
	require.NoError(t, err)
	f.child, err = f.store.Tags().Create(ctx, "Roads", &f.parent.ID)
	require.NoError(t, err)
	f.other, err = f.store.Tags().Create(ctx, "IT", nil)
	require.NoError(t, err)

	return f
}

func (f *fixture) submit(t *testing.T, title string, stage tender.Stage, tags ...int64) tender.Tender {
	t.Helper()
	tn, err := f.store.Tenders().Submit(context.Background(), tender.Submission{
		Title:       title,
		Description: "desc",
		Deadline:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		BuyerID:     f.buyer.ID,
		TagIDs:      tags,
	}, stage)
	require.NoError(t, err)
	return tn
}

func TestApproveMovesPendingAndNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repo := f.store.Tenders()

	p := f.submit(t, "Bridge", tender.StagePending, f.parent.ID, f.child.ID)

	published, err := repo.Approve(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Bridge", published.Title)
	require.ElementsMatch(t, []int64{f.parent.ID, f.child.ID}, published.TagIDs)

	_, err = repo.GetPending(ctx, p.ID)
	require.ErrorIs(t, err, tender.ErrPendingNotFound)

	v, err := repo.GetByID(ctx, published.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Construction", "Roads"}, v.Tags)

	notes, err := f.store.Notifications().ListForUser(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, notification.TenderApproved("Bridge"), notes[0].Message)

	_, err = repo.Approve(ctx, p.ID)
	require.ErrorIs(t, err, tender.ErrPendingNotFound)
}

func TestConcurrentApproveYieldsOnePublishedTender(t *testing.T) {
	f := newFixture(t)
	p := f.submit(t, "Race", tender.StagePending, f.parent.ID)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.store.Tenders().Approve(context.Background(), p.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, notFound int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case err == tender.ErrPendingNotFound:
			notFound++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, notFound)

	page, err := f.store.Tenders().Search(context.Background(), tender.Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
}

func TestRejectDeletesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.submit(t, "Dropped", tender.StagePending, f.other.ID)

	_, err := f.store.Tenders().Reject(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.store.Tenders().GetPending(ctx, p.ID)
	require.ErrorIs(t, err, tender.ErrPendingNotFound)

	notes, err := f.store.Notifications().ListForUser(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, notification.TenderRejected("Dropped"), notes[0].Message)

	_, err = f.store.Tenders().Reject(ctx, p.ID)
	require.ErrorIs(t, err, tender.ErrPendingNotFound)
}

func TestSubmitRejectsUnknownTag(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.Tenders().Submit(context.Background(), tender.Submission{
		Title: "x", Description: "y", BuyerID: f.buyer.ID, TagIDs: []int64{999},
	}, tender.StagePending)
	require.ErrorIs(t, err, tender.ErrUnknownTag)

	page, err := f.store.Tenders().ListPending(context.Background(), tender.Filter{})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestSearchTagAndSubtagAreIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	onlyParent := f.submit(t, "Parent only", tender.StagePublished, f.parent.ID)
	both := f.submit(t, "Both", tender.StagePublished, f.parent.ID, f.child.ID)
	f.submit(t, "Child only", tender.StagePublished, f.child.ID)

	page, err := f.store.Tenders().Search(ctx, tender.Filter{TagID: &f.parent.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, []int64{both.ID, onlyParent.ID}, viewIDs(page.Items))

	page, err = f.store.Tenders().Search(ctx, tender.Filter{TagID: &f.parent.ID, SubtagID: &f.child.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []int64{both.ID}, viewIDs(page.Items))

	missing := int64(404)
	page, err = f.store.Tenders().Search(ctx, tender.Filter{TagID: &missing, Limit: 10})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestSearchAllowedCategoryCoversSubtree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inChild := f.submit(t, "Roadworks", tender.StagePublished, f.child.ID)
	inParent := f.submit(t, "Depot", tender.StagePublished, f.parent.ID)
	f.submit(t, "Laptops", tender.StagePublished, f.other.ID)

	page, err := f.store.Tenders().Search(ctx, tender.Filter{AllowedCategoryID: &f.parent.ID, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []int64{inParent.ID, inChild.ID}, viewIDs(page.Items))
}

func TestSearchDeadlineIsInclusiveAndPaginationIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		f.submit(t, title, tender.StagePublished, f.other.ID)
	}

	deadline := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	page, err := f.store.Tenders().Search(ctx, tender.Filter{DeadlineFrom: &deadline, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	require.Equal(t, "c", page.Items[0].Title)

	page, err = f.store.Tenders().Search(ctx, tender.Filter{DeadlineFrom: &deadline, Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	require.Equal(t, "a", page.Items[0].Title)

	later := deadline.AddDate(0, 0, 1)
	page, err = f.store.Tenders().Search(ctx, tender.Filter{DeadlineFrom: &later})
	require.NoError(t, err)
	require.Zero(t, page.Total)
}

func TestTagDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tags := f.store.Tags()

	require.ErrorIs(t, tags.Delete(ctx, f.parent.ID), tag.ErrHasChildren)

	f.submit(t, "Pending", tender.StagePending, f.other.ID)
	require.ErrorIs(t, tags.Delete(ctx, f.other.ID), tag.ErrInUse)

	require.NoError(t, tags.Delete(ctx, f.child.ID))
	require.NoError(t, tags.Delete(ctx, f.parent.ID))
	require.ErrorIs(t, tags.Delete(ctx, f.parent.ID), tag.ErrNotFound)
}

func TestTagParentRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tags := f.store.Tags()
	missing := int64(999)

	_, err := tags.Create(ctx, "Bridges", &f.child.ID)
	require.ErrorIs(t, err, tag.ErrParentNotTopLevel)
	_, err = tags.Create(ctx, "Bridges", &missing)
	require.ErrorIs(t, err, tag.ErrParentNotFound)

	_, err = tags.Update(ctx, f.other.ID, "IT", &f.other.ID)
	require.ErrorIs(t, err, tag.ErrSelfParent)
	_, err = tags.Update(ctx, f.parent.ID, "Construction", &f.other.ID)
	require.ErrorIs(t, err, tag.ErrHasChildren)
	_, err = tags.Update(ctx, missing, "Ghost", nil)
	require.ErrorIs(t, err, tag.ErrNotFound)

	moved, err := tags.Update(ctx, f.other.ID, "IT", &f.parent.ID)
	require.NoError(t, err)
	require.Equal(t, f.parent.ID, *moved.ParentID)
}

func TestConcurrentReparentKeepsTwoLevels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tags := f.store.Tags()

	for i := 0; i < 50; i++ {
		a, err := tags.Create(ctx, "A", nil)
		require.NoError(t, err)
		b, err := tags.Create(ctx, "B", nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = tags.Update(ctx, a.ID, "A", &b.ID)
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = tags.Update(ctx, b.ID, "B", &a.ID)
		}()
		wg.Wait()

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, tag.ErrParentNotTopLevel)
				failed++
			}
		}
		require.Equal(t, 1, failed)
	}
}

func TestFavoritesAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tn := f.submit(t, "Fav", tender.StagePublished, f.other.ID)
	favs := f.store.Favorites()

	created, err := favs.Add(ctx, f.buyer.ID, tn.ID)
	require.NoError(t, err)
	require.True(t, created)

	created, err = favs.Add(ctx, f.buyer.ID, tn.ID)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, favs.Count(ctx, f.buyer.ID, tn.ID))

	_, err = favs.Add(ctx, f.buyer.ID, 999)
	require.ErrorIs(t, err, favorite.ErrTenderNotFound)

	require.NoError(t, f.store.Tenders().Delete(ctx, tn.ID))
	require.Zero(t, favs.Count(ctx, f.buyer.ID, tn.ID))
}

func TestMessagesGoToRecipientOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bob, err := f.store.Users().Create(ctx, user.CreateParams{
		FirstName: "Bob", LastName: "Supplier", Email: "bob@example.com",
		PasswordHash: "x", Role: user.RoleSupplier, Subscription: user.SubscriptionFree,
	})
	require.NoError(t, err)

	_, err = f.store.Messages().Send(ctx, f.buyer.ID, "BOB@example.com", "hello")
	require.NoError(t, err)

	_, err = f.store.Messages().Send(ctx, f.buyer.ID, "nobody@example.com", "hello")
	require.ErrorIs(t, err, message.ErrRecipientNotFound)

	got, err := f.store.Messages().ListReceived(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "ada@example.com", got[0].SenderEmail)

	got, err = f.store.Messages().ListReceived(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPasswordResetIsSingleUseAndExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resets := f.store.PasswordResets()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, resets.Create(ctx, passwordreset.Token{TokenHash: "h1", UserID: f.buyer.ID, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, resets.Create(ctx, passwordreset.Token{TokenHash: "h2", UserID: f.buyer.ID, ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, resets.Consume(ctx, "h1", "new-hash", now))

	u, err := f.store.Users().GetByID(ctx, f.buyer.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", u.PasswordHash)

	require.ErrorIs(t, resets.Consume(ctx, "h1", "again", now), passwordreset.ErrNotFound)
	require.ErrorIs(t, resets.Consume(ctx, "h2", "again", now), passwordreset.ErrNotFound)

	require.NoError(t, resets.Create(ctx, passwordreset.Token{TokenHash: "h3", UserID: f.buyer.ID, ExpiresAt: now.Add(time.Hour)}))
	require.ErrorIs(t, resets.Consume(ctx, "h3", "late", now.Add(2*time.Hour)), passwordreset.ErrExpired)
	require.ErrorIs(t, resets.Consume(ctx, "h3", "late", now), passwordreset.ErrNotFound)
}

func TestDeleteUserCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.submit(t, "Owned", tender.StagePublished, f.other.ID)
	f.submit(t, "Owned pending", tender.StagePending, f.other.ID)

	require.NoError(t, f.store.Users().Delete(ctx, f.buyer.ID))
	require.ErrorIs(t, f.store.Users().Delete(ctx, f.buyer.ID), user.ErrNotFound)

	counts, err := f.store.Stats().Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts.TotalUsers)
	require.Zero(t, counts.TotalTenders)
	require.Zero(t, counts.TotalPendingTenders)
	require.Equal(t, 2, counts.TotalTags)
	require.Equal(t, 1, counts.TotalSubtags)
}

func viewIDs(views []tender.View) []int64 {
	out := make([]int64, 0, len(views))
	for _, v := range views {
		out = append(out, v.ID)
	}
	return out
}

func TestPaginateOutOfRange(t *testing.T) {
	items := []int{1, 2, 3}

	require.Equal(t, []int{2, 3}, paginate(items, 5, 1))
	require.Equal(t, []int{1, 2}, paginate(items, 2, 0))
	require.Empty(t, paginate(items, 2, 3))
	require.Empty(t, paginate(items, 2, -10))
}
