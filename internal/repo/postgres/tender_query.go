package postgres

import (
	"fmt"
	"strings"

	"github.com/OussamaRhimi/tender-mvp/internal/domain/tender"
	"github.com/OussamaRhimi/tender-mvp/internal/utils"
)

// tenderSource names the tables of one tender stage. Published and pending tenders
// share a shape, so every query is written once against a source.
type tenderSource struct {
	table    string
	tagTable string
	fk       string
}

var (
	publishedSource = tenderSource{table: "tenders", tagTable: "tender_tags", fk: "tender_id"}
	pendingSource   = tenderSource{table: "pending_tenders", tagTable: "pending_tender_tags", fk: "pending_tender_id"}
)

// tenderPredicates turns a filter into AND-ed conditions over alias t (tender) and
// u (buyer). Placeholders start at $1.
func tenderPredicates(src tenderSource, f tender.Filter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}

	argsPosition := 1

	add := func(format string, arg interface{}) {
		conds = append(conds, strings.ReplaceAll(format, "$?", fmt.Sprintf("$%d", argsPosition)))
		args = append(args, arg)
		argsPosition++
	}

	if s := strings.TrimSpace(f.Title); s != "" {
		add("t.title ILIKE $?", utils.ContainsPattern(s))
	}

	// tag and subtag are independent link checks; a subtag does not match through its parent
	if f.TagID != nil {
		add(fmt.Sprintf("EXISTS (SELECT 1 FROM %s x WHERE x.%s = t.id AND x.tag_id = $?)", src.tagTable, src.fk), *f.TagID)
	}

	if f.SubtagID != nil {
		add(fmt.Sprintf("EXISTS (SELECT 1 FROM %s x WHERE x.%s = t.id AND x.tag_id = $?)", src.tagTable, src.fk), *f.SubtagID)
	}

	if s := strings.TrimSpace(f.Location); s != "" {
		add("t.location ILIKE $?", utils.ContainsPattern(s))
	}

	if f.DeadlineFrom != nil {
		add("t.deadline >= $?", *f.DeadlineFrom)
	}

	if s := strings.TrimSpace(f.Email); s != "" {
		add("u.email ILIKE $?", utils.ContainsPattern(s))
	}

	if s := strings.TrimSpace(f.Query); s != "" {
		add("(t.title ILIKE $? OR u.first_name ILIKE $? OR u.last_name ILIKE $? OR u.email ILIKE $?)", utils.ContainsPattern(s))
	}

	if f.OwnerID != nil {
		add("t.buyer_id = $?", *f.OwnerID)
	}

	if f.AllowedCategoryID != nil {
		add(fmt.Sprintf(`EXISTS (SELECT 1 FROM %s x JOIN tags g ON g.id = x.tag_id
			WHERE x.%s = t.id AND (g.id = $? OR g.parent_id = $?))`, src.tagTable, src.fk), *f.AllowedCategoryID)
	}

	return conds, args
}

// buildTenderSearch returns the page query (with a windowed total) and the bare count query.
func buildTenderSearch(src tenderSource, f tender.Filter) (pageQuery, countQuery string, args []interface{}) {
	conds, args := tenderPredicates(src, f)

	from := fmt.Sprintf(` FROM %s t JOIN users u ON u.id = t.buyer_id`, src.table)

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	pageQuery = `SELECT t.id, t.title, t.description, t.deadline, t.location, t.source, t.buyer_id,
		t.created_at, u.first_name, u.last_name, u.email, COUNT(*) OVER() AS total` + from + where

	// stable ordering for pagination
	n := len(args) + 1
	pageQuery += fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", n, n+1)

	countQuery = `SELECT COUNT(*)` + from + where

	return pageQuery, countQuery, args
}
