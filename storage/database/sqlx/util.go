package sqlxrepos

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
)

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// orderBy renders an ORDER BY clause, ignoring fields missing from allowed.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	clauses := make([]string, 0, len(ordering))
	for _, o := range ordering {
		col, ok := allowed[o.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{Field: col, Ascending: o.Ascending}.String())
	}
	if len(clauses) == 0 {
		clauses = append(clauses, fallback)
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func limitOffset(page core.Page, args []interface{}) (string, []interface{}) {
	var q string
	if page.Limit > 0 {
		args = append(args, page.Limit)
		q += " LIMIT " + placeholder(len(args))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		q += " OFFSET " + placeholder(len(args))
	}
	return q, args
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "reading affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
