package tools

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Normalizer is implemented by request types that canonicalize their
// fields after decoding, e.g. by case-folding lookup keys.
type Normalizer interface {
	Normalize()
}

// Typed adapts a function taking a request struct into an Executor. The
// validated argument map is decoded into Req with mapstructure, then
// normalized if Req (or *Req) implements Normalizer.
func Typed[Req any](fn func(ctx context.Context, req Req) (string, error)) Executor {
	return func(ctx context.Context, args map[string]any) (string, error) {
		var req Req
		if err := mapstructure.Decode(args, &req); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		if n, ok := any(&req).(Normalizer); ok {
			n.Normalize()
		}
		return fn(ctx, req)
	}
}
