package checkout

import (
	"context"

	"github.com/angelmondragon/storefront/internal/prompts"
)

type detachedKey struct{}

// Detach returns a context for a submission that must outlive the request
// starting it, as an online payment waiting on the browser's callback does.
// The context keeps the request's values but not its cancellation, and
// records into a fresh recorder. Once the submission has claimed the
// session the recorder is tracked on it for a later request to replay.
func Detach(ctx context.Context) (context.Context, *prompts.Recorder) {
	rec := prompts.NewRecorder(true)
	detached := prompts.WithRecorder(context.WithoutCancel(ctx), rec)
	return context.WithValue(detached, detachedKey{}, rec), rec
}

func detachedRecorder(ctx context.Context) *prompts.Recorder {
	rec, _ := ctx.Value(detachedKey{}).(*prompts.Recorder)
	return rec
}
