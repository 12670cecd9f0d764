package cmd

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"raptorfleet/internal/domain/blob"
	"raptorfleet/internal/errs"
)

// payloadFlag reads a blob flag. A value starting with @ names a file whose
// contents are used verbatim. Valid JSON is tagged json, anything else text.
func payloadFlag(cmd *cobra.Command, name string) (blob.Payload, error) {
	raw, _ := cmd.Flags().GetString(name)
	if path, ok := strings.CutPrefix(raw, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return blob.Payload{}, errs.Wrapf(err, "read --%s file %s", name, path)
		}
		raw = string(data)
	}
	if json.Valid([]byte(raw)) {
		return blob.JSON([]byte(raw)), nil
	}
	return blob.Text(raw), nil
}

// optionalPayloadFlag is payloadFlag for flags that may be left unset.
func optionalPayloadFlag(cmd *cobra.Command, name string) (*blob.Payload, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	p, err := payloadFlag(cmd, name)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	raw, _ := cmd.Flags().GetString(name)
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, errs.Wrapf(err, "parse --%s", name)
	}
	return &at, nil
}
