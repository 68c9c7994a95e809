package main

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/callsync/internal/callsync"
	"github.com/sells-group/callsync/internal/config"
	"github.com/sells-group/callsync/pkg/threec"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify call records read from stdin without contacting any API",
	Long:  "Reads a 3C call listing ({\"data\": [...]}, a bare array or a single call) from stdin and prints the outcome, normalized phone and derived name of each call.",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return eris.Wrap(err, "classify: read stdin")
		}

		calls, err := decodeInput(body)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(classifyCalls(cfg.Sync, calls))
	},
}

type classifiedCall struct {
	ID          string `json:"id"`
	Phone       string `json:"phone"`
	Verdict     string `json:"verdict"`
	StatusLabel string `json:"status_label"`
	Seconds     int    `json:"seconds"`
	Name        string `json:"name"`
	GenericName bool   `json:"generic_name"`
}

func decodeInput(body []byte) ([]threec.Call, error) {
	trimmed := bytes.TrimSpace(body)
	calls, err := threec.DecodeCalls(trimmed)
	if err == nil {
		return calls, nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single threec.Call
		if jerr := json.Unmarshal(trimmed, &single); jerr == nil && single.ID != "" {
			return []threec.Call{single}, nil
		}
	}
	return nil, eris.Wrap(err, "classify: decode input")
}

func classifyCalls(sc config.SyncConfig, calls []threec.Call) []classifiedCall {
	classifier := callsync.NewClassifier(sc.DefaultStatusLabel, sc.VoicemailLabels)

	out := make([]classifiedCall, 0, len(calls))
	for _, call := range calls {
		cls := classifier.Classify(call)
		name := callsync.DeriveName(call.Mailing, sc.PlaceholderName)
		out = append(out, classifiedCall{
			ID:          call.ID,
			Phone:       callsync.NormalizePhone(call.Number),
			Verdict:     cls.Verdict.String(),
			StatusLabel: cls.StatusLabel,
			Seconds:     cls.Seconds,
			Name:        name.Value,
			GenericName: name.IsGeneric,
		})
	}
	return out
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
