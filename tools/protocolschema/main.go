// Command protocolschema emits a JSON Schema describing the relay's wire
// protocol so client teams can validate frames without reading Go source.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"planetfall/relay/internal/protocol"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// wireCatalog gathers every server-to-client frame shape under one root so a
// single reflection pass captures the full outbound surface.
type wireCatalog struct {
	Init            protocol.InitMessage            `json:"init"`
	PlayerJoined    protocol.PlayerJoinedMessage    `json:"playerJoined"`
	PlayerLeft      protocol.PlayerLeftMessage      `json:"playerLeft"`
	GameState       protocol.GameStateMessage       `json:"gameState"`
	Heartbeat       protocol.HeartbeatMessage       `json:"heartbeat"`
	Ping            protocol.PingMessage            `json:"ping"`
	PlayerAlienMode protocol.PlayerAlienModeMessage `json:"playerAlienMode"`
	BombPlaced      protocol.BombPlacedMessage      `json:"bombPlaced"`
	PlanetDestroyed protocol.PlanetDestroyedMessage `json:"planetDestroyed"`
	Chat            protocol.ChatBroadcastMessage   `json:"chat"`
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireCatalog))
	schema.Title = "Planetfall Relay Wire Protocol"
	schema.Description = "Server-to-client frame shapes emitted by the relay"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	//1.- Write-then-rename keeps a half-written schema from replacing a good one.
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
