package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/notification"
	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/OussamaRhimi/tender-mvp/internal/repo/postgres")

type TendersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
	now  func() time.Time
}

func NewTendersRepo(pool *pgxpool.Pool, prom *observability.Prom) *TendersRepo {
	return &TendersRepo{pool: pool, prom: prom, now: time.Now}
}

// Submit stores a published tender or a pending submission with its tag links in one transaction.
func (r *TendersRepo) Submit(ctx context.Context, sub tender.Submission, stage tender.Stage) (t tender.Tender, err error) {
	src := pendingSource
	if stage == tender.StagePublished {
		src = publishedSource
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	t, err = r.insertTx(ctx, tx, src, tender.Tender{
		Title:       sub.Title,
		Description: sub.Description,
		Deadline:    sub.Deadline,
		Location:    sub.Location,
		Source:      sub.Source,
		BuyerID:     sub.BuyerID,
		TagIDs:      sub.TagIDs,
	})
	if err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

func (r *TendersRepo) insertTx(ctx context.Context, tx pgx.Tx, src tenderSource, in tender.Tender) (tender.Tender, error) {
	out := in

	err := observe(r.prom, src.table+".insert", func() error {
		return tx.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %s (title, description, deadline, location, source, buyer_id)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, created_at, updated_at`, src.table),
			in.Title, in.Description, in.Deadline, in.Location, in.Source, in.BuyerID,
		).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt)
	})
	if err != nil {
		return tender.Tender{}, err
	}

	err = observe(r.prom, src.tagTable+".insert", func() error {
		_, e := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (%s, tag_id)
			SELECT $1, unnest($2::bigint[])`, src.tagTable, src.fk),
			out.ID, in.TagIDs,
		)
		return e
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return tender.Tender{}, tender.ErrUnknownTag
		}
		return tender.Tender{}, err
	}

	return out, nil
}

// lockPendingTx loads and row-locks a pending tender with its tag ids.
func (r *TendersRepo) lockPendingTx(ctx context.Context, tx pgx.Tx, id int64) (tender.Tender, error) {
	var t tender.Tender

	err := observe(r.prom, "pending_tenders.lock", func() error {
		return tx.QueryRow(ctx, `
			SELECT id, title, description, deadline, location, source, buyer_id, created_at, updated_at
			FROM pending_tenders
			WHERE id = $1
			FOR UPDATE`, id,
		).Scan(&t.ID, &t.Title, &t.Description, &t.Deadline, &t.Location, &t.Source, &t.BuyerID, &t.CreatedAt, &t.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tender.Tender{}, tender.ErrPendingNotFound
		}
		return tender.Tender{}, err
	}

	rows, err := tx.Query(ctx, `SELECT tag_id FROM pending_tender_tags WHERE pending_tender_id = $1 ORDER BY tag_id`, id)
	if err != nil {
		return tender.Tender{}, err
	}

	t.TagIDs, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return tender.Tender{}, err
	}

	return t, nil
}

func (r *TendersRepo) notifyTx(ctx context.Context, tx pgx.Tx, userID int64, msg string) error {
	return observe(r.prom, "notifications.insert", func() error {
		_, e := tx.Exec(ctx, `INSERT INTO notifications (user_id, message) VALUES ($1, $2)`, userID, msg)
		return e
	})
}

func (r *TendersRepo) deletePendingTx(ctx context.Context, tx pgx.Tx, id int64) error {
	// pending_tender_tags rows go with the cascade
	return observe(r.prom, "pending_tenders.delete", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM pending_tenders WHERE id = $1`, id)
		return e
	})
}

// Approve publishes a pending tender: the copy, its tag links, the buyer's notification and the
// removal of the pending row commit together or not at all.
func (r *TendersRepo) Approve(ctx context.Context, pendingID int64) (published tender.Tender, err error) {
	ctx, span := tracer.Start(ctx, "tenders.approve")
	span.SetAttributes(attribute.Int64("pending_tender.id", pendingID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pending, err := r.lockPendingTx(ctx, tx, pendingID)
	if err != nil {
		return
	}

	published, err = r.insertTx(ctx, tx, publishedSource, tender.Tender{
		Title:       pending.Title,
		Description: pending.Description,
		Deadline:    pending.Deadline,
		Location:    pending.Location,
		Source:      pending.Source,
		BuyerID:     pending.BuyerID,
		TagIDs:      pending.TagIDs,
	})
	if err != nil {
		return
	}

	if err = r.notifyTx(ctx, tx, pending.BuyerID, notification.TenderApproved(pending.Title)); err != nil {
		return
	}

	if err = r.deletePendingTx(ctx, tx, pendingID); err != nil {
		return
	}

	if err = tx.Commit(ctx); err != nil {
		return
	}

	span.SetAttributes(attribute.Int64("tender.id", published.ID))
	return
}

// Reject deletes a pending tender and notifies its buyer. There is no undo.
func (r *TendersRepo) Reject(ctx context.Context, pendingID int64) (rejected tender.Tender, err error) {
	ctx, span := tracer.Start(ctx, "tenders.reject")
	span.SetAttributes(attribute.Int64("pending_tender.id", pendingID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rejected, err = r.lockPendingTx(ctx, tx, pendingID)
	if err != nil {
		return
	}

	if err = r.deletePendingTx(ctx, tx, pendingID); err != nil {
		return
	}

	if err = r.notifyTx(ctx, tx, rejected.BuyerID, notification.TenderRejected(rejected.Title)); err != nil {
		return
	}

	err = tx.Commit(ctx)
	return
}

// Delete removes a published tender. Tag links and favorites cascade in the same statement.
func (r *TendersRepo) Delete(ctx context.Context, id int64) error {
	return observe(r.prom, "tenders.delete", func() error {
		res, err := r.pool.Exec(ctx, `DELETE FROM tenders WHERE id = $1`, id)
		if err != nil {
			return err
		}

		// if no rows were deleted as a result return a not found error
		if res.RowsAffected() == 0 {
			return tender.ErrNotFound
		}
		return nil
	})
}

func (r *TendersRepo) GetByID(ctx context.Context, id int64) (tender.View, error) {
	v, err := r.getView(ctx, publishedSource, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return tender.View{}, tender.ErrNotFound
	}
	return v, err
}

func (r *TendersRepo) GetPending(ctx context.Context, id int64) (tender.View, error) {
	v, err := r.getView(ctx, pendingSource, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return tender.View{}, tender.ErrPendingNotFound
	}
	return v, err
}

func (r *TendersRepo) getView(ctx context.Context, src tenderSource, id int64) (tender.View, error) {
	var v tender.View
	var location, source *string
	var first, last string

	err := observe(r.prom, src.table+".get", func() error {
		return r.pool.QueryRow(ctx, fmt.Sprintf(`
			SELECT t.id, t.title, t.description, t.deadline, t.location, t.source, t.buyer_id,
				t.created_at, u.first_name, u.last_name, u.email
			FROM %s t JOIN users u ON u.id = t.buyer_id
			WHERE t.id = $1`, src.table), id,
		).Scan(&v.ID, &v.Title, &v.Description, &v.Deadline, &location, &source, &v.BuyerID,
			&v.CreatedAt, &first, &last, &v.BuyerEmail)
	})
	if err != nil {
		return tender.View{}, err
	}

	v.Location, v.Source = deref(location), deref(source)
	v.BuyerName = fullName(first, last)

	views := []tender.View{v}
	if err := r.attachTags(ctx, src, views); err != nil {
		return tender.View{}, err
	}

	return views[0].WithStatus(r.now()), nil
}

func (r *TendersRepo) Search(ctx context.Context, f tender.Filter) (tender.Page, error) {
	return r.list(ctx, publishedSource, f)
}

func (r *TendersRepo) ListPending(ctx context.Context, f tender.Filter) (tender.Page, error) {
	return r.list(ctx, pendingSource, f)
}

func (r *TendersRepo) list(ctx context.Context, src tenderSource, f tender.Filter) (tender.Page, error) {
	pageQuery, countQuery, args := buildTenderSearch(src, f)

	items := make([]tender.View, 0, f.Limit)
	total := 0

	err := observe(r.prom, src.table+".search", func() error {
		rows, err := r.pool.Query(ctx, pageQuery, append(args, f.Limit, f.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v tender.View
			var location, source *string
			var first, last string

			if err := rows.Scan(&v.ID, &v.Title, &v.Description, &v.Deadline, &location, &source, &v.BuyerID,
				&v.CreatedAt, &first, &last, &v.BuyerEmail, &total); err != nil {
				return err
			}

			v.Location, v.Source = deref(location), deref(source)
			v.BuyerName = fullName(first, last)
			items = append(items, v)
		}

		return rows.Err()
	})
	if err != nil {
		return tender.Page{}, err
	}

	// past the last page the window is empty, so the total has to be counted on its own
	if len(items) == 0 && f.Offset > 0 {
		err = observe(r.prom, src.table+".count", func() error {
			return r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
		})
		if err != nil {
			return tender.Page{}, err
		}
	}

	if err := r.attachTags(ctx, src, items); err != nil {
		return tender.Page{}, err
	}

	now := r.now()
	for i := range items {
		items[i] = items[i].WithStatus(now)
	}

	return tender.Page{Items: items, Total: total}, nil
}

func (r *TendersRepo) attachTags(ctx context.Context, src tenderSource, views []tender.View) error {
	if len(views) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(views))
	index := make(map[int64]int, len(views))

	for i, v := range views {
		ids = append(ids, v.ID)
		index[v.ID] = i
		views[i].Tags = []string{}
		views[i].TagRefs = []tender.TagRef{}
	}

	return observe(r.prom, src.tagTable+".list", func() error {
		rows, err := r.pool.Query(ctx, fmt.Sprintf(`
			SELECT x.%s, g.id, g.name, g.parent_id
			FROM %s x JOIN tags g ON g.id = x.tag_id
			WHERE x.%s = ANY($1)
			ORDER BY g.name ASC, g.id ASC`, src.fk, src.tagTable, src.fk), ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var owner int64
			var ref tender.TagRef

			if err := rows.Scan(&owner, &ref.ID, &ref.Name, &ref.ParentID); err != nil {
				return err
			}

			i := index[owner]
			views[i].Tags = append(views[i].Tags, ref.Name)
			views[i].TagRefs = append(views[i].TagRefs, ref)
		}

		return rows.Err()
	})
}

func fullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}
