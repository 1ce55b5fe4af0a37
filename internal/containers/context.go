package containers

import "context"

type contextKey string

const containerCtxKey contextKey = "container"

func SetContainerInContext(ctx context.Context, c *Container) context.Context {
	return context.WithValue(ctx, containerCtxKey, c)
}

func GetContainerFromContext(ctx context.Context) *Container {
	c, _ := ctx.Value(containerCtxKey).(*Container)
	return c
}
