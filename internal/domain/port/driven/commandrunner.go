package driven

import (
	"context"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

// CommandRunner runs an external program synchronously in dir. A non-zero exit
// is reported in the result, not as an error; the error is reserved for
// failures to start or wait on the process.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) (model.CommandResult, error)
}
