package utils

import "context"

// GracefulShutdown waits for ctx to end, runs cleanup once and then releases ctx's resources.
func GracefulShutdown(ctx context.Context, stop context.CancelFunc, cleanup func()) {
	<-ctx.Done()
	if cleanup != nil {
		cleanup()
	}
	stop()
}
