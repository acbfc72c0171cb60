package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер расписаний: 5 полей cron и дескрипторы (@hourly, @every 30m).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule разбирает расписание.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, expr, err)
	}
	return schedule, nil
}

// CalculateNextDue вычисляет следующее время выполнения после from.
// Cron-поля интерпретируются в loc, результат возвращается в UTC.
func CalculateNextDue(schedule cron.Schedule, loc *time.Location, from time.Time) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return schedule.Next(from.In(loc)).UTC()
}

// loadLocation загружает timezone; пустая строка означает UTC.
func loadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}
