// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, confirm-режим)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — отправка PublishJob (сразу или с задержкой)
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - publish.requested — попытка публикации одного target'а
//
// Retry без ожидания в воркере: повторная попытка публикуется в очередь
// publish.delay.<N>ms с x-message-ttl, откуда брокер по dead-letter
// возвращает её в publish.ready.
package mq
