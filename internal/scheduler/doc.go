// Package scheduler повторно выполняет оркестрацию по cron-расписанию.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Start)
//   - cron.go      — парсинг расписаний и вычисление следующего времени
//
// Расписание живёт только в памяти процесса `mrot schedule`
// и не переживает рестарт.
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Runner: runner,
//	    Spec:   spec,
//	    Expr:   "0 3 * * 1-5",
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return sched.Start(ctx)
package scheduler
