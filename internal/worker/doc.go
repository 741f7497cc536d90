// Package worker выполняет публикацию постов на платформы.
//
// # Обзор
//
// Одно сообщение PublishJob = одна попытка публикации одного поста
// на одной платформе (target). Worker отвечает за:
//
//   - Получение PublishJob (из RabbitMQ или из Pool внутри процесса)
//   - Вызов адаптера платформы из publisher.Registry
//   - Retry с задержкой из расписания backoff без ожидания в горутине
//   - Финальную запись статуса target'а и агрегацию статуса поста
//
// # Ключевые компоненты
//
// ## Executor
//
// Выполняет одну попытку:
//
//	exec := worker.NewExecutor(worker.ExecutorConfig{
//	    Store:    postRepo,
//	    Registry: publisher.NewDefaultRegistry(opts),
//	    Requeuer: mqPublisher,
//	    Policy:   worker.RetryPolicy{MaxAttempts: 3, Backoff: backoff},
//	    Logger:   logger,
//	})
//
// ## Worker
//
// Consumer'ы очереди publish.ready поверх Executor. Повторные попытки
// уходят в очереди задержки RabbitMQ.
//
// ## Pool
//
// Та же семантика внутри процесса: Dispatch/DispatchAfter, Wait для
// ожидания всех попыток, включая отложенные.
//
// # Retry
//
// Попытка N неудачна и N < MaxAttempts → новое сообщение с Attempt N+1
// и задержкой Backoff[N-1] (последнее значение повторяется). Target
// остаётся pending. После последней попытки target получает failed с
// текстом "Publishing failed after N attempts: <последняя ошибка>".
//
// # Агрегация
//
// После финальной записи в той же транзакции считается число pending
// target'ов поста. Ноль → пост становится published, даже если все
// платформы завершились неудачей.
package worker
