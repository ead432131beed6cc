package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/schedule"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

func invalidParam(name, msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: name, Error: msg})
}

// queryParams reads typed values out of the query string; the first failure sticks.
type queryParams struct {
	ctx echo.Context
	err error
}

func newQueryParams(ctx echo.Context) *queryParams {
	return &queryParams{ctx: ctx}
}

func (qp *queryParams) Err() error { return qp.err }

func (qp *queryParams) fail(name, msg string) {
	if qp.err == nil {
		qp.err = invalidParam(name, msg)
	}
}

func (qp *queryParams) Int(name string) int {
	val := strings.TrimSpace(qp.ctx.QueryParam(name))
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		qp.fail(name, "must be a positive integer")
		return 0
	}
	return i
}

func (qp *queryParams) Bool(name string) *bool {
	val := strings.TrimSpace(qp.ctx.QueryParam(name))
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		qp.fail(name, "must be a boolean")
		return nil
	}
	return &b
}

// Day reads a weekday as 0 (Sunday) to 6 (Saturday); required reports a missing value.
func (qp *queryParams) Day(name string, required bool) *time.Weekday {
	val := strings.TrimSpace(qp.ctx.QueryParam(name))
	if val == "" {
		if required {
			qp.fail(name, "this field is required")
		}
		return nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < int(time.Sunday) || i > int(time.Saturday) {
		qp.fail(name, "day must be between 0 (Sunday) and 6 (Saturday)")
		return nil
	}
	day := time.Weekday(i)
	return &day
}

func (qp *queryParams) Clock(name string) schedule.ClockTime {
	val := strings.TrimSpace(qp.ctx.QueryParam(name))
	if val == "" {
		qp.fail(name, "this field is required")
		return 0
	}
	c, err := schedule.ParseClock(val)
	if err != nil {
		qp.fail(name, err.Error())
		return 0
	}
	return c
}

func (qp *queryParams) Strings(name string) []string {
	var vals []string
	for _, v := range qp.ctx.QueryParams()[name] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				vals = append(vals, s)
			}
		}
	}
	return vals
}

func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id < 1 {
		return 0, invalidParam(name, "must be a positive integer")
	}
	return id, nil
}
