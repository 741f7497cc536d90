// Package scheduler выбирает due-посты и отправляет PublishJob.
//
// Scheduler периодически проверяет посты со status=scheduled и
// scheduled_time <= now и ставит по одному PublishJob на каждую
// pending-платформу. Статусы постов и target'ов не меняет.
//
// Структура:
//   - scheduler.go — Scheduler.Run, обработка одного поста
//   - report.go    — Report с итогами запуска
//   - cron.go      — Trigger: периодический запуск через robfig/cron
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Store:      postRepo,
//	    Locker:     lock.NewRedisLocker(rdb, ""),
//	    Dispatcher: mqPublisher, // или worker.Pool
//	    Logger:     logger,
//	})
//
//	report, err := sched.Run(ctx, time.Now(), false)
//
// Блокировка:
//
// Каждый пост обрабатывается под блокировкой post-publish:<id>
// (lock.Locker, без ожидания). Занятая блокировка — пост пропускается
// с предупреждением, запуск продолжается.
//
// Leader Election:
//
// Один активный Trigger на кластер обеспечивает main.go через
// pg_try_advisory_lock. Запуски одного Trigger не перекрываются.
package scheduler
