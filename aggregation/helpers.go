package aggregation

import (
	"fmt"
	"net/http"
	"time"

	"liontech/httpx"
	"liontech/model"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 366
	dayFormat        = "2006-01-02"
)

// ParseRange reads ?from=&to= (YYYY-MM-DD, both inclusive) in loc. The
// returned range is half-open: [from 00:00, day after to 00:00). Without
// parameters it covers the last 30 days including today.
func ParseRange(r *http.Request, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	q := r.URL.Query()
	from, err := httpx.ParseDate(q.Get("from"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := httpx.ParseDate(q.Get("to"), loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	today := startOfDay(now.In(loc))
	end := today.AddDate(0, 0, 1)
	if to != nil {
		end = to.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -defaultRangeDays)
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from must not be after to")
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour+time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("range longer than %d days", maxRangeDays)
	}
	return start, end, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dailySeries buckets sales by local calendar day, one entry per day of
// [from, to) including days without sales.
func dailySeries(sales []model.SaleRecord, from, to time.Time, loc *time.Location) []model.DailySales {
	index := map[string]int{}
	var days []model.DailySales
	for d := startOfDay(from.In(loc)); d.Before(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(dayFormat)
		index[key] = len(days)
		days = append(days, model.DailySales{Date: key})
	}
	for _, s := range sales {
		i, ok := index[s.CreatedAt.In(loc).Format(dayFormat)]
		if !ok {
			continue
		}
		days[i].Orders++
		days[i].RevenueCents += s.TotalCents
	}
	return days
}
