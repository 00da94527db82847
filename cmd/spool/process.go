// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/internal/log"
	"github.com/teradata-labs/spool/pkg/contentstore"
	"github.com/teradata-labs/spool/pkg/contextmgr"
	"github.com/teradata-labs/spool/pkg/mcp/protocol"
	"github.com/teradata-labs/spool/pkg/processor"
)

var (
	serverName string
	toolName   string
)

var processCmd = &cobra.Command{
	Use:   "process [file]",
	Short: "Externalize oversized items of a tool response",
	Long: `Reads a tool response (JSON, MCP CallToolResult shape) from a file or
stdin, replaces oversized content items with references, and writes the
processed response to stdout. Diagnostics go to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProcess,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Classify a tool response without modifying it",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAnalyze,
}

func init() {
	processCmd.Flags().StringVar(&serverName, "server", "local", "MCP server name recorded in reference metadata")
	processCmd.Flags().StringVar(&toolName, "tool", "unknown", "tool name recorded in reference metadata")
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func readResponse(args []string) (*protocol.CallToolResult, error) {
	var data []byte
	var err error
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("read tool response: %w", err)
	}

	var resp protocol.CallToolResult
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse tool response: %w", err)
	}
	return &resp, nil
}

func newStore() *contentstore.Store {
	return contentstore.NewStore(&contentstore.Config{
		SizeThresholdBytes:   cfg.Store.SizeThresholdBytes,
		MaxMemoryBytes:       cfg.Store.MaxMemoryBytes,
		CompressionThreshold: cfg.Store.CompressionThresholdBytes,
		TTL:                  cfg.Store.TTL(),
		Logger:               log.Logger(),
	})
}

func runProcess(cmd *cobra.Command, args []string) error {
	resp, err := readResponse(args)
	if err != nil {
		return err
	}

	store := newStore()
	defer store.Dispose()

	proc := processor.New(store, log.Logger())
	manager := contextmgr.NewManager(store, log.Logger())

	result := proc.ProcessResponse(context.Background(), resp, serverName, toolName)
	for _, item := range result.Content {
		if item.Type != protocol.ContentTypeReference {
			continue
		}
		if _, ref, err := store.Get(context.Background(), item.ReferenceID); err == nil {
			manager.AddReference(ref)
		}
	}

	for _, msg := range result.Errors {
		log.Warn("Processing error", zap.String("error", msg))
	}
	stats := store.Stats()
	log.Info("Processed tool response",
		zap.Bool("was_processed", result.WasProcessed),
		zap.Bool("reference_created", result.ReferenceCreated),
		zap.Int64("original_size_bytes", result.OriginalSizeBytes),
		zap.Int("active_references", stats.ActiveReferences),
	)

	out := protocol.CallToolResult{Content: result.Content, IsError: resp.IsError}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	resp, err := readResponse(args)
	if err != nil {
		return err
	}

	store := newStore()
	defer store.Dispose()

	analysis := processor.New(store, log.Logger()).AnalyzeResponse(resp)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(analysis)
}
