//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package etl

import (
	"context"
	"time"

	"github.com/varejobase/dwetl/internal/warehouse"
)

// TimeKey converts a date to its surrogate key in YYYYMMDD form.
func TimeKey(t time.Time) int64 {
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

// TimeRow is one calendar day of the time dimension.
type TimeRow struct {
	Key         int64
	Date        time.Time
	Day         int
	Month       int
	Year        int
	Quarter     int
	WeekdayName string
}

// GenerateTimeRows produces one row per calendar day from start to end,
// inclusive on both ends. Time-of-day and timezone are discarded.
func GenerateTimeRows(start, end time.Time) ([]TimeRow, error) {
	start = truncateToDay(start)
	end = truncateToDay(end)
	if start.After(end) {
		return nil, NewConfigurationError("start date %s is after end date %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	var rows []TimeRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, TimeRow{
			Key:         TimeKey(d),
			Date:        d,
			Day:         d.Day(),
			Month:       int(d.Month()),
			Year:        d.Year(),
			Quarter:     (int(d.Month())-1)/3 + 1,
			WeekdayName: d.Weekday().String(),
		})
	}
	return rows, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (o *Orchestrator) loadTimeDim(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	rows, err := GenerateTimeRows(o.opts.StartDate, o.opts.EndDate)
	if err != nil {
		return err
	}
	rep.RowsRead = int64(len(rows))

	columns := []string{"time_key", "date", "day", "month", "year", "quarter", "weekday_name"}
	for _, r := range rows {
		inserted, err := st.Upsert(ctx, StageTime, []string{"time_key"}, columns,
			[]any{r.Key, r.Date, r.Day, r.Month, r.Year, r.Quarter, r.WeekdayName})
		if err != nil {
			return &WriteError{Table: StageTime, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}
