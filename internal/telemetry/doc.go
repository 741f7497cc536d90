// Package telemetry — логирование и метрики всех бинарников crosspost.
//
// Логи: slog, JSON в production и text для разработки. ForPost и ForJob
// добавляют идентификаторы, по которым запись связывается с постом и
// конкретной попыткой публикации.
//
// Метрики: Prometheus-счётчики scheduler'а, executor'а и consumer'а,
// отдаются на /metrics ops-сервером (internal/api).
package telemetry
