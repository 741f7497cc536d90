// Package cli реализует инструмент командной строки crosspost.
//
// # Обзор
//
// CLI работает напрямую с Postgres и брокером через internal/app:
// запускает scheduler вручную, показывает статус публикации поста,
// применяет схему и создаёт посты для проверки pipeline.
//
// # Ключевые компоненты
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Successf/Infof/Warnf) — в stderr.
// Это позволяет использовать pipe: crosspost publish-due --json | jq .
//
// ## Commands
//
//   - publish-due [--dry-run] — один запуск scheduler'а
//   - status POST_ID          — сводка по платформам
//   - migrate                 — схема БД
//   - seed-platforms          — платформы по умолчанию
//   - post create             — scheduled-пост с pending-платформами
//   - post retarget POST_ID   — новый набор платформ до публикации
//
// Каждая команда создаётся через фабричную функцию (NewPublishDueCmd и т.д.),
// принимающую envFn и outputFn — замыкания для ленивого создания
// App и Output после парсинга PersistentFlags.
package cli
