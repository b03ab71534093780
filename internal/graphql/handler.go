package graphql

import (
	"context"
	"errors"

	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"go.uber.org/zap"
)

// NewHandler serves the schema over HTTP POST with gqlgen's handler.
func NewHandler(resolver *Resolver) *handler.Server {
	srv := handler.New(NewExecutableSchema(Config{Resolvers: resolver}))
	srv.AddTransport(transport.POST{})
	srv.SetErrorPresenter(PresentError)
	srv.SetRecoverFunc(func(ctx context.Context, err any) error {
		resolver.Logger.Ctx(ctx).Error("Resolver panicked", zap.Any("panic", err))
		return errors.New("internal system error")
	})
	return srv
}
