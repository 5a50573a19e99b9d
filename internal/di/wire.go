//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"bondedlink/internal/link/handler"
	"bondedlink/internal/link/repository"
	"bondedlink/internal/link/service"
)

// InitializeApplication is a declaration; wire generates the body in
// wire_gen.go.
func InitializeApplication() (*Application, error) {
	wire.Build(
		ProvideConfig,
		ProvideLogger,
		ProvideMetrics,
		ProvideDatabase,
		ProvideMongo,
		ProvideJournal,
		ProvideBackend,
		ProvideHub,
		ProvideTokenValidator,
		ProvideLimiter,
		repository.NewLinkRepository,
		ProvideRegistry,
		wire.Bind(new(service.Opener), new(*service.Registry)),
		handler.NewLinkHandler,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil
}
