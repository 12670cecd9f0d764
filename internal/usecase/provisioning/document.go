package provisioning

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"raptorfleet/internal/domain/fleet"
	"raptorfleet/internal/errs"
)

var (
	ErrInvalidDocument   = errors.New("invalid provisioning document")
	ErrUnsupportedFormat = errors.New("unsupported provisioning document format")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

const (
	MQTTFormatFlat         = "flat-1"
	MQTTFormatHierarchical = "hier-1"
	MQTTFormatLineProtocol = "line"

	TelemetryModeMQTT = "mqtt"
	TelemetryModeREST = "rest"
)

// FormatFromPath picks the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatJSON, FormatYAML, FormatTOML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// Document is the configuration a unit receives from the fleet backend.
// The mqtt and telemetry sections are stored as the document carried them;
// the typed fields only validate them.
type Document struct {
	MQTT      MQTTSection                  `json:"mqtt" jsonschema:"required"`
	Telemetry TelemetrySection             `json:"telemetry" jsonschema:"required"`
	Hardware  map[string][]HardwareSection `json:"hardware" jsonschema:"required"`
	Raptor    RaptorSection                `json:"raptor" jsonschema:"required"`

	raw map[string]any
}

type MQTTSection struct {
	Broker    string `json:"broker" jsonschema:"required"`
	Port      int    `json:"port" jsonschema:"required,minimum=1,maximum=65535"`
	Username  string `json:"username" jsonschema:"required"`
	Password  string `json:"password" jsonschema:"required"`
	ClientID  string `json:"client_id" jsonschema:"required"`
	Format    string `json:"format,omitempty" jsonschema:"enum=flat-1,enum=hier-1,enum=line,default=flat-1"`
	Keepalive int    `json:"keepalive,omitempty" jsonschema:"default=60"`
}

type TelemetrySection struct {
	Mode            string `json:"mode" jsonschema:"required,enum=mqtt,enum=rest"`
	Interval        int    `json:"interval" jsonschema:"required"`
	TelemetryPath   string `json:"telemetry_path" jsonschema:"required"`
	RootPath        string `json:"root_path,omitempty"`
	StatusPath      string `json:"status_path,omitempty"`
	AlarmsPath      string `json:"alarms_path,omitempty"`
	MessagesPath    string `json:"messages_path,omitempty"`
	ResponsePath    string `json:"response_path,omitempty"`
	Sampling        int    `json:"sampling,omitempty" jsonschema:"default=3"`
	AveragingMethod string `json:"averaging_method,omitempty" jsonschema:"default=mean"`
}

// HardwareSection is one entry of the hardware map. Parameters, ScanGroups
// and Devices belong to the driver and are stored as JSON text.
type HardwareSection struct {
	DriverPath string      `json:"driver_path" jsonschema:"required"`
	Parameters any         `json:"parameters" jsonschema:"required"`
	ScanGroups any         `json:"scan_groups,omitempty"`
	Devices    any         `json:"devices,omitempty"`
	Crem3ID    ExternalRef `json:"crem3_id" jsonschema:"required"`
	Enabled    *bool       `json:"enabled,omitempty"`
}

// ExternalRef is the backend's id for a hardware entry. Backends send it as
// a string or a number.
type ExternalRef string

func (r *ExternalRef) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = ExternalRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("crem3_id must be a string or a number: %w", err)
	}
	*r = ExternalRef(n.String())
	return nil
}

type RaptorSection struct {
	Location string `json:"location,omitempty"`
	Client   string `json:"client,omitempty"`
}

var (
	requiredSections  = []string{"mqtt", "telemetry", "hardware", "raptor"}
	requiredMQTT      = []string{"broker", "port", "username", "password", "client_id"}
	requiredTelemetry = []string{"interval", "telemetry_path", "mode"}
	requiredHardware  = []string{"driver_path", "parameters", "crem3_id"}
)

// Parse decodes and validates a document. Missing keys are reported as
// fleet.MissingFieldError with a dotted path such as "mqtt.broker"; any
// other problem wraps ErrInvalidDocument.
func Parse(format Format, data []byte) (Document, error) {
	raw, err := decodeGeneric(format, data)
	if err != nil {
		return Document{}, err
	}
	if err := checkRequired(raw); err != nil {
		return Document{}, err
	}

	// Every format is funnelled through JSON so the typed decode has one set
	// of rules.
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc.raw = raw

	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func decodeGeneric(format Format, data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	raw := map[string]any{}
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatYAML:
		err = yaml.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidDocument, format, err)
	}
	return raw, nil
}

func checkRequired(raw map[string]any) error {
	for _, section := range requiredSections {
		if raw[section] == nil {
			return fleet.MissingField(section)
		}
	}

	mqtt, ok := raw["mqtt"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: mqtt must be an object", ErrInvalidDocument)
	}
	if err := checkKeys("mqtt", mqtt, requiredMQTT); err != nil {
		return err
	}
	telemetry, ok := raw["telemetry"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: telemetry must be an object", ErrInvalidDocument)
	}
	if err := checkKeys("telemetry", telemetry, requiredTelemetry); err != nil {
		return err
	}
	if _, ok := raw["raptor"].(map[string]any); !ok {
		return fmt.Errorf("%w: raptor must be an object", ErrInvalidDocument)
	}

	hardware, ok := raw["hardware"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: hardware must be an object", ErrInvalidDocument)
	}
	for _, hardwareType := range sortedKeys(hardware) {
		entries, ok := hardware[hardwareType].([]any)
		if !ok {
			return fmt.Errorf("%w: hardware.%s must be a list", ErrInvalidDocument, hardwareType)
		}
		for i, entry := range entries {
			path := fmt.Sprintf("hardware.%s[%d]", hardwareType, i)
			fields, ok := entry.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s must be an object", ErrInvalidDocument, path)
			}
			if err := checkKeys(path, fields, requiredHardware); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkKeys(prefix string, fields map[string]any, keys []string) error {
	for _, key := range keys {
		if fields[key] == nil {
			return fleet.MissingField(prefix + "." + key)
		}
	}
	return nil
}

func (d *Document) validate() error {
	if d.MQTT.Port < 1 || d.MQTT.Port > 65535 {
		return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalidDocument, d.MQTT.Port)
	}
	switch d.MQTT.Format {
	case "", MQTTFormatFlat, MQTTFormatHierarchical, MQTTFormatLineProtocol:
	default:
		return fmt.Errorf("%w: mqtt.format %q", ErrInvalidDocument, d.MQTT.Format)
	}
	switch d.Telemetry.Mode {
	case TelemetryModeMQTT, TelemetryModeREST:
	default:
		return fmt.Errorf("%w: telemetry.mode %q", ErrInvalidDocument, d.Telemetry.Mode)
	}
	if d.Telemetry.Interval <= 0 {
		return fmt.Errorf("%w: telemetry.interval must be positive", ErrInvalidDocument)
	}

	for hardwareType, entries := range d.Hardware {
		for i, entry := range entries {
			path := fmt.Sprintf("hardware.%s[%d]", hardwareType, i)
			if strings.TrimSpace(entry.DriverPath) == "" {
				return fleet.MissingField(path + ".driver_path")
			}
			if strings.TrimSpace(string(entry.Crem3ID)) == "" {
				return fleet.MissingField(path + ".crem3_id")
			}
		}
	}
	return nil
}

// Digest identifies the document content independently of its source
// format and key order.
func (d Document) Digest() (string, error) {
	canonical, err := json.Marshal(d.source())
	if err != nil {
		return "", errs.Wrap(err, "encode document")
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// section returns the named top-level section re-encoded as JSON text.
func (d Document) section(name string) ([]byte, error) {
	data, err := json.Marshal(d.source()[name])
	if err != nil {
		return nil, errs.Wrapf(err, "encode %s section", name)
	}
	return data, nil
}

func (d Document) source() map[string]any {
	if d.raw != nil {
		return d.raw
	}
	// Documents built in code carry no source map; use the typed view.
	data, _ := json.Marshal(struct {
		MQTT      MQTTSection                  `json:"mqtt"`
		Telemetry TelemetrySection             `json:"telemetry"`
		Hardware  map[string][]HardwareSection `json:"hardware"`
		Raptor    RaptorSection                `json:"raptor"`
	}{d.MQTT, d.Telemetry, d.Hardware, d.Raptor})
	out := map[string]any{}
	_ = json.Unmarshal(data, &out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
