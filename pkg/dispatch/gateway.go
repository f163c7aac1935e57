package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"infraops/pkg/tools"
)

// destructiveTools lists every operation that mutates infrastructure.
// Intents naming one of these are held for explicit user confirmation; the
// server stores nothing between the two phases, the full intent rides along
// in the response and comes back with the confirmation flag.
var destructiveTools = map[string]struct{}{
	tools.ToolCreateS3Bucket:        {},
	tools.ToolDestroyS3Bucket:       {},
	tools.ToolCreateEC2Instance:     {},
	tools.ToolDestroyEC2Instance:    {},
	tools.ToolCreateLambdaFunction:  {},
	tools.ToolDestroyLambdaFunction: {},
	tools.ToolBatchCreate:           {},
}

// RequiresConfirmation reports whether the intent must be confirmed before
// execution. Pure set membership, no side effects.
func RequiresConfirmation(intent tools.Intent) bool {
	_, ok := destructiveTools[intent.Tool]
	return ok
}

// ConfirmationPrompt renders a human-readable summary of what the intent
// will do, shown to the user alongside the held intent.
func ConfirmationPrompt(intent tools.Intent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This will run %s", intent.Tool)
	if len(intent.Args) > 0 {
		keys := make([]string, 0, len(intent.Args))
		for k := range intent.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, intent.Args[k]))
		}
		fmt.Fprintf(&b, " with %s", strings.Join(parts, ", "))
	}
	b.WriteString(". Confirm to proceed.")
	return b.String()
}
