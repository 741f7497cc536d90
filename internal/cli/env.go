package cli

import (
	"context"

	"github.com/shaiso/Crosspost/internal/app"
)

// EnvFunc открывает App после разбора флагов.
// Вызывающий закрывает App через Close.
type EnvFunc func(ctx context.Context) (*app.App, error)
