package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursemarket-backend/internal/app"
	"github.com/yungbote/coursemarket-backend/internal/platform/events"
)

var tailTypes []string

func init() {
	tailEventsCmd.Flags().StringSliceVar(&tailTypes, "type", nil, "only print these event types (repeatable)")
	rootCmd.AddCommand(tailEventsCmd)
}

var tailEventsCmd = &cobra.Command{
	Use:   "tail-events",
	Short: "Print domain events from the redis channel as JSON lines",
	RunE:  runTailEvents,
}

func runTailEvents(cmd *cobra.Command, _ []string) error {
	log, cfg, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	want := make(map[string]bool, len(tailTypes))
	for _, t := range tailTypes {
		want[t] = true
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	return app.TailEvents(cmd.Context(), log, cfg, func(evt events.Event) {
		if len(want) > 0 && !want[evt.Type] {
			return
		}
		if err := enc.Encode(evt); err != nil {
			log.Warn("write event", "event_id", evt.ID, "error", err)
		}
	})
}
