package provisioning

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"raptorfleet/internal/domain/fleet"
)

const sampleJSON = `{
  "mqtt": {"broker": "mqtt.example.com", "port": 8883, "username": "u", "password": "p", "client_id": "raptor-1", "format": "hier-1", "qos": 1},
  "telemetry": {"mode": "mqtt", "interval": 30, "telemetry_path": "telemetry", "root_path": "site/7"},
  "hardware": {
    "inverter": [
      {"driver_path": "drivers.sunspec.Inverter", "parameters": {"host": "10.0.0.5", "port": 502}, "crem3_id": 17}
    ],
    "bms": [
      {"driver_path": "drivers.modbus.BMS", "parameters": {"unit": 1}, "scan_groups": [[1, 2]], "devices": [{"id": 1}], "crem3_id": "bms-a"},
      {"driver_path": "drivers.modbus.BMS", "parameters": {"unit": 2}, "crem3_id": "bms-b", "enabled": false}
    ]
  },
  "raptor": {"location": "Depot 4", "client": "Acme"}
}`

const sampleYAML = `
mqtt:
  broker: mqtt.example.com
  port: 8883
  username: u
  password: p
  client_id: raptor-1
  format: hier-1
  qos: 1
telemetry:
  mode: mqtt
  interval: 30
  telemetry_path: telemetry
  root_path: site/7
hardware:
  inverter:
    - driver_path: drivers.sunspec.Inverter
      parameters: {host: 10.0.0.5, port: 502}
      crem3_id: 17
  bms:
    - driver_path: drivers.modbus.BMS
      parameters: {unit: 1}
      scan_groups: [[1, 2]]
      devices: [{id: 1}]
      crem3_id: bms-a
    - driver_path: drivers.modbus.BMS
      parameters: {unit: 2}
      crem3_id: bms-b
      enabled: false
raptor:
  location: Depot 4
  client: Acme
`

const sampleTOML = `
[mqtt]
broker = "mqtt.example.com"
port = 8883
username = "u"
password = "p"
client_id = "raptor-1"
format = "hier-1"
qos = 1

[telemetry]
mode = "mqtt"
interval = 30
telemetry_path = "telemetry"
root_path = "site/7"

[[hardware.inverter]]
driver_path = "drivers.sunspec.Inverter"
parameters = { host = "10.0.0.5", port = 502 }
crem3_id = 17

[[hardware.bms]]
driver_path = "drivers.modbus.BMS"
parameters = { unit = 1 }
scan_groups = [[1, 2]]
devices = [{ id = 1 }]
crem3_id = "bms-a"

[[hardware.bms]]
driver_path = "drivers.modbus.BMS"
parameters = { unit = 2 }
crem3_id = "bms-b"
enabled = false

[raptor]
location = "Depot 4"
client = "Acme"
`

func TestParseFormatsAgree(t *testing.T) {
	inputs := map[Format]string{
		FormatJSON: sampleJSON,
		FormatYAML: sampleYAML,
		FormatTOML: sampleTOML,
	}

	digests := map[string]Format{}
	for format, data := range inputs {
		doc, err := Parse(format, []byte(data))
		if err != nil {
			t.Fatalf("Parse(%s) error = %v", format, err)
		}
		if doc.MQTT.Port != 8883 || doc.Telemetry.Interval != 30 || doc.Raptor.Client != "Acme" {
			t.Fatalf("Parse(%s) = %+v", format, doc)
		}
		if len(doc.Hardware["bms"]) != 2 || doc.Hardware["inverter"][0].Crem3ID != "17" {
			t.Fatalf("Parse(%s) hardware = %+v", format, doc.Hardware)
		}

		digest, err := doc.Digest()
		if err != nil {
			t.Fatalf("Digest(%s) error = %v", format, err)
		}
		digests[digest] = format
	}
	if len(digests) != 1 {
		t.Fatalf("digests differ across formats: %v", digests)
	}
}

func TestParseKeepsUnknownSectionKeys(t *testing.T) {
	doc, err := Parse(FormatJSON, []byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	raw, err := doc.section("mqtt")
	if err != nil {
		t.Fatalf("section() error = %v", err)
	}
	var mqtt map[string]any
	if err := json.Unmarshal(raw, &mqtt); err != nil {
		t.Fatalf("decode section: %v", err)
	}
	if mqtt["qos"] != float64(1) {
		t.Fatalf("mqtt section = %v, want qos kept", mqtt)
	}
}

func TestParseMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(string) string
		field string
	}{
		{
			name: "section",
			edit: func(s string) string {
				return strings.Replace(s, `"raptor": {"location": "Depot 4", "client": "Acme"}`, `"extra": {}`, 1)
			},
			field: "raptor",
		},
		{
			name:  "mqtt key",
			edit:  func(s string) string { return strings.Replace(s, `"broker": "mqtt.example.com", `, "", 1) },
			field: "mqtt.broker",
		},
		{
			name:  "telemetry key",
			edit:  func(s string) string { return strings.Replace(s, `"telemetry_path": "telemetry", `, "", 1) },
			field: "telemetry.telemetry_path",
		},
		{
			name:  "hardware key",
			edit:  func(s string) string { return strings.Replace(s, `"crem3_id": "bms-b", `, "", 1) },
			field: "hardware.bms[1].crem3_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(FormatJSON, []byte(tt.edit(sampleJSON)))
			var missing *fleet.MissingFieldError
			if !errors.As(err, &missing) || missing.Field != tt.field {
				t.Fatalf("Parse() error = %v, want missing %s", err, tt.field)
			}
		})
	}
}

func TestParseInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty", data: "  "},
		{name: "not json", data: "{"},
		{name: "port range", data: strings.Replace(sampleJSON, `"port": 8883`, `"port": 70000`, 1)},
		{name: "port type", data: strings.Replace(sampleJSON, `"port": 8883`, `"port": "8883"`, 1)},
		{name: "format", data: strings.Replace(sampleJSON, `"format": "hier-1"`, `"format": "csv"`, 1)},
		{name: "mode", data: strings.Replace(sampleJSON, `"mode": "mqtt"`, `"mode": "carrier-pigeon"`, 1)},
		{name: "hardware list", data: strings.Replace(sampleJSON, `"hardware": {`, `"hardware": {"solar": "nope", `, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(FormatJSON, []byte(tt.data)); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("Parse() error = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"cfg.json":      FormatJSON,
		"cfg.YAML":      FormatYAML,
		"dir/cfg.yml":   FormatYAML,
		"/etc/cfg.toml": FormatTOML,
	}
	for path, want := range tests {
		got, err := FormatFromPath(path)
		if err != nil || got != want {
			t.Fatalf("FormatFromPath(%q) = %q, %v", path, got, err)
		}
	}
	if _, err := FormatFromPath("cfg.ini"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("FormatFromPath(ini) error = %v", err)
	}
}

func TestSchemaListsRequiredSections(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}

	var schema struct {
		Required   []string       `json:"required"`
		Properties map[string]any `json:"properties"`
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if strings.Join(schema.Required, ",") != "mqtt,telemetry,hardware,raptor" {
		t.Fatalf("schema required = %v", schema.Required)
	}
	if _, ok := schema.Properties["hardware"]; !ok {
		t.Fatalf("schema properties = %v", schema.Properties)
	}
}
