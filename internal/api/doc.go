// Package api содержит служебный HTTP сервер процессов crosspost.
//
// Структура:
//   - handler.go      — Handler с DI (хранилище постов, проверка готовности, logger)
//   - routes.go       — регистрация маршрутов
//   - middleware.go   — middleware (logging, recovery)
//   - response.go     — унифицированные JSON-ответы и обработка ошибок
//   - dto.go          — структуры ответов
//   - post_handler.go — /healthz и сводка публикации поста
//
// Endpoints:
//
//	GET /healthz                          — живость и готовность
//	GET /metrics                          — Prometheus
//	GET /api/v1/posts/{id}/publishing     — статус публикации по платформам
//
// Создание и редактирование постов сюда не входит.
package api
