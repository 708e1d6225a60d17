package offer

import "context"

type exchangeIDKey struct{}

// WithExchangeID tags ctx so Execute logs and records under id.
func WithExchangeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, exchangeIDKey{}, id)
}

func ExchangeIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(exchangeIDKey{}).(string)
	return id
}
