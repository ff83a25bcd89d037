package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"liquidity-history-service/internal/history/core/domain"
)

const depthTable = "depth_history"

// numericPattern guards the text to double cast; other values average as NULL.
const numericPattern = `^\s*[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?\s*$`

var recordColumns = append([]string{domain.FieldStartTime, domain.FieldEndTime}, domain.NumericFields...)

// bucketKeyColumns is the fixed column order of a bucket row; unused parts select 0.
var bucketKeyColumns = []string{"year", "month", "day", "hour", "week"}

var extractFields = map[domain.DatePart]string{
	domain.PartYear:        "YEAR",
	domain.PartISOWeekYear: "ISOYEAR",
	domain.PartMonth:       "MONTH",
	domain.PartDayOfMonth:  "DAY",
	domain.PartHour:        "HOUR",
	domain.PartISOWeek:     "WEEK",
}

type sqlQuery struct {
	text  string
	args  []any
	group *domain.GroupSpec
}

// compilePipeline renders a pipeline as one SELECT. Stages are expected in
// canonical order (match, group, sort, skip, limit), which maps directly onto
// WHERE, GROUP BY, ORDER BY, OFFSET and LIMIT.
func compilePipeline(p domain.Pipeline) sqlQuery {
	var (
		q       sqlQuery
		where   []string
		orderBy string
		offset  string
		limit   string
	)
	arg := func(v any) string {
		q.args = append(q.args, v)
		return fmt.Sprintf("$%d", len(q.args))
	}

	for _, st := range p {
		switch st.Kind {
		case domain.StageMatch:
			col := pq.QuoteIdentifier(st.Match.Field)
			if st.Match.Gte != nil {
				where = append(where, col+" >= "+arg(st.Match.Gte.UTC()))
			}
			if st.Match.Lte != nil {
				where = append(where, col+" <= "+arg(st.Match.Lte.UTC()))
			}
		case domain.StageGroup:
			q.group = st.Group
		case domain.StageSort:
			dir := "ASC"
			if st.Sort.Descending {
				dir = "DESC"
			}
			orderBy = pq.QuoteIdentifier(st.Sort.Field) + " " + dir
		case domain.StageSkip:
			offset = arg(st.Skip)
		case domain.StageLimit:
			limit = arg(st.Limit)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if q.group != nil {
		b.WriteString(bucketSelect(q.group, arg))
	} else {
		b.WriteString(quoteAll(recordColumns))
	}
	b.WriteString("\nFROM " + depthTable)
	if len(where) > 0 {
		b.WriteString("\nWHERE " + strings.Join(where, " AND "))
	}
	if q.group != nil {
		b.WriteString("\nGROUP BY " + groupByColumns(q.group))
	}
	if orderBy != "" {
		b.WriteString("\nORDER BY " + orderBy)
	}
	if offset != "" {
		b.WriteString("\nOFFSET " + offset)
	}
	if limit != "" {
		b.WriteString("\nLIMIT " + limit)
	}

	q.text = b.String()
	return q
}

func bucketSelect(g *domain.GroupSpec, arg func(any) string) string {
	used := make(map[string]domain.DatePart, len(g.Key.Parts))
	for _, kp := range g.Key.Parts {
		used[kp.Name] = kp.Part
	}
	source := fmt.Sprintf("(%s AT TIME ZONE 'UTC')", pq.QuoteIdentifier(g.Key.Field))

	cols := make([]string, 0, len(bucketKeyColumns)+2+len(g.Averages))
	for _, name := range bucketKeyColumns {
		if part, ok := used[name]; ok {
			cols = append(cols, fmt.Sprintf("EXTRACT(%s FROM %s)::int AS %s", extractFields[part], source, pq.QuoteIdentifier(name)))
		} else {
			cols = append(cols, "0 AS "+pq.QuoteIdentifier(name))
		}
	}

	start := pq.QuoteIdentifier(domain.FieldStartTime)
	end := pq.QuoteIdentifier(domain.FieldEndTime)
	cols = append(cols,
		fmt.Sprintf("MIN(%s) AS %s", start, start),
		fmt.Sprintf("MAX(%s) AS %s", end, end),
	)

	if len(g.Averages) > 0 {
		pattern := arg(numericPattern)
		for _, f := range g.Averages {
			col := pq.QuoteIdentifier(f)
			cols = append(cols, fmt.Sprintf("AVG(CASE WHEN %s ~ %s THEN %s::double precision END) AS %s", col, pattern, col, col))
		}
	}
	return strings.Join(cols, ",\n    ")
}

func groupByColumns(g *domain.GroupSpec) string {
	names := make([]string, len(g.Key.Parts))
	for i, kp := range g.Key.Parts {
		names[i] = pq.QuoteIdentifier(kp.Name)
	}
	return strings.Join(names, ", ")
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
