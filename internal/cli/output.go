package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд.
//
// Данные (таблица или JSON) идут в stdout, сообщения — в stderr,
// поэтому `crosspost publish-due --json | jq` видит только JSON.
type Output struct {
	jsonMode bool
	data     io.Writer
	messages io.Writer
}

// NewOutput пишет в stdout/stderr процесса.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(jsonMode, os.Stdout, os.Stderr)
}

// NewOutputTo — Output с произвольными writer'ами (тесты).
func NewOutputTo(jsonMode bool, data, messages io.Writer) *Output {
	return &Output{jsonMode: jsonMode, data: data, messages: messages}
}

func (o *Output) IsJSON() bool {
	return o.jsonMode
}

// Print — таблица или jsonData в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выравнивает колонки; под заголовком строка из дефисов.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	underline := make([]string, len(headers))
	for i, h := range headers {
		underline[i] = strings.Repeat("-", len(h))
	}

	for _, cells := range append([][]string{headers, underline}, rows...) {
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
}

func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		o.Warnf("encode json: %v", err)
	}
}

// Successf печатается и в JSON-режиме: это итог команды.
func (o *Output) Successf(format string, args ...any) {
	fmt.Fprintf(o.messages, format+"\n", args...)
}

// Infof — ход выполнения; в JSON-режиме молчит.
func (o *Output) Infof(format string, args ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.messages, format+"\n", args...)
}

func (o *Output) Warnf(format string, args ...any) {
	fmt.Fprintf(o.messages, "Warning: "+format+"\n", args...)
}
