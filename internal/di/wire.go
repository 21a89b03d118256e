//go:build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"github.com/sandeepkv93/credential-session-core/internal/app"
	"github.com/sandeepkv93/credential-session-core/internal/config"
)

func InitializeApp(ctx context.Context, cfg *config.Config) (*app.App, func(), error) {
	wire.Build(
		provideLogging,
		provideLogger,
		provideObservability,
		StorageSet,
		ServiceSet,
		HTTPSet,
		provideApp,
	)
	return nil, nil, nil
}

func InitializeCore(ctx context.Context, cfg *config.Config) (*Core, func(), error) {
	wire.Build(
		provideLogging,
		provideLogger,
		provideDB,
		ServiceSet,
		provideCore,
	)
	return nil, nil, nil
}
