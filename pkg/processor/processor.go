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
// Package processor classifies tool-response content and externalizes
// oversized items to the content store, substituting compact reference
// placeholders. Small items pass through untouched. This sits on the
// critical path of every tool call, so everything here is in-memory and
// single-pass.
package processor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/contentstore"
	"github.com/teradata-labs/spool/pkg/mcp/protocol"
)

// ContentInfo classifies a single content item.
type ContentInfo struct {
	Type          string `json:"type"`
	MimeType      string `json:"mimeType"`
	SizeBytes     int64  `json:"sizeBytes"`
	TokenEstimate int    `json:"tokenEstimate"`
	Oversized     bool   `json:"oversized"`
}

// ContentAnalysis is the result of classifying a full tool response.
type ContentAnalysis struct {
	// ShouldProcess is true when any single item, or the aggregate,
	// exceeds the size threshold.
	ShouldProcess      bool          `json:"shouldProcess"`
	Contents           []ContentInfo `json:"contents"`
	TotalSizeBytes     int64         `json:"totalSizeBytes"`
	TotalTokenEstimate int           `json:"totalTokenEstimate"`
}

// ProcessingResult reports what ProcessResponse did to a tool response.
type ProcessingResult struct {
	WasProcessed      bool               `json:"wasProcessed"`
	ReferenceCreated  bool               `json:"referenceCreated"`
	OriginalSizeBytes int64              `json:"originalSizeBytes"`
	Content           []protocol.Content `json:"content"`
	Errors            []string           `json:"errors,omitempty"`
}

// ContentStorer is the slice of the content store the processor needs.
type ContentStorer interface {
	SizeThreshold() int64
	StoreContentIfLarge(ctx context.Context, content []byte, meta contentstore.ContentMetadata) (*contentstore.ContentReference, error)
}

// Processor analyzes tool responses and replaces oversized items with
// references. One processor serves any number of responses.
type Processor struct {
	store  ContentStorer
	logger *zap.Logger
}

// New creates a response processor backed by the given store.
func New(store ContentStorer, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{store: store, logger: logger}
}

var markdownHeading = regexp.MustCompile(`(?m)^#{1,6} `)

// inferTextMimeType applies the classification precedence for text items:
// valid JSON, then an HTML document marker, then Markdown headings, then
// plain text.
func inferTextMimeType(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && gjson.Valid(trimmed) {
		return "application/json"
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return "text/html"
	}
	if markdownHeading.MatchString(text) {
		return "text/markdown"
	}
	return "text/plain"
}

// AnalyzeResponse computes per-item size, MIME type, and token estimates for
// a tool response.
func (p *Processor) AnalyzeResponse(resp *protocol.CallToolResult) ContentAnalysis {
	analysis := ContentAnalysis{}
	if resp == nil {
		return analysis
	}

	threshold := p.store.SizeThreshold()
	counter := getTokenCounter()

	for _, item := range resp.Content {
		payload := item.Payload()
		size := int64(len(payload))

		info := ContentInfo{
			Type:      item.Type,
			SizeBytes: size,
			Oversized: size > threshold,
		}
		switch item.Type {
		case protocol.ContentTypeText:
			info.MimeType = inferTextMimeType(item.Text)
			info.TokenEstimate = counter.count(item.Text)
		case protocol.ContentTypeImage:
			info.MimeType = item.MimeType
			if info.MimeType == "" {
				info.MimeType = "image/png"
			}
		case protocol.ContentTypeResource:
			if item.Resource != nil && item.Resource.MimeType != "" {
				info.MimeType = item.Resource.MimeType
			} else {
				info.MimeType = "application/json"
			}
			info.TokenEstimate = counter.count(string(payload))
		default:
			info.MimeType = "application/octet-stream"
		}

		if info.Oversized {
			analysis.ShouldProcess = true
		}
		analysis.TotalSizeBytes += size
		analysis.TotalTokenEstimate += info.TokenEstimate
		analysis.Contents = append(analysis.Contents, info)
	}

	if analysis.TotalSizeBytes > threshold {
		analysis.ShouldProcess = true
	}
	return analysis
}

// ProcessResponse externalizes the oversized items of a tool response. Each
// oversized item is stored independently; a storage failure leaves that item
// in place and is reported in Errors without affecting its siblings. Item
// order is always preserved.
func (p *Processor) ProcessResponse(ctx context.Context, resp *protocol.CallToolResult, serverName, toolName string) ProcessingResult {
	analysis := p.AnalyzeResponse(resp)
	if !analysis.ShouldProcess {
		var content []protocol.Content
		if resp != nil {
			content = resp.Content
		}
		return ProcessingResult{
			WasProcessed:      false,
			OriginalSizeBytes: analysis.TotalSizeBytes,
			Content:           content,
		}
	}

	threshold := p.store.SizeThreshold()
	result := ProcessingResult{
		WasProcessed:      true,
		OriginalSizeBytes: analysis.TotalSizeBytes,
		Content:           make([]protocol.Content, 0, len(resp.Content)),
	}

	for i, item := range resp.Content {
		payload := item.Payload()
		if int64(len(payload)) <= threshold {
			result.Content = append(result.Content, item)
			continue
		}

		meta := contentstore.ContentMetadata{
			ContentType: item.Type,
			MimeType:    analysis.Contents[i].MimeType,
			Source:      "mcp_tool",
			ToolName:    fmt.Sprintf("%s::%s", serverName, toolName),
			FileName:    item.FileName(),
			Tags:        []string{"mcp_response", serverName, toolName},
		}
		ref, err := p.store.StoreContentIfLarge(ctx, payload, meta)
		if err != nil {
			p.logger.Warn("Failed to externalize content item",
				zap.Int("item", i),
				zap.String("tool", meta.ToolName),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, fmt.Sprintf("Failed to create reference for item %d: %v", i, err))
			result.Content = append(result.Content, item)
			continue
		}
		if ref == nil {
			// Store declined despite the size check; keep the item inline.
			result.Content = append(result.Content, item)
			continue
		}

		result.Content = append(result.Content, protocol.Content{
			Type:        protocol.ContentTypeReference,
			ReferenceID: ref.ReferenceID,
			Preview:     ref.Preview,
			MimeType:    meta.MimeType,
			IsReference: true,
		})
		result.ReferenceCreated = true
		p.logger.Debug("Replaced oversized item with reference",
			zap.Int("item", i),
			zap.String("reference_id", ref.ReferenceID),
			zap.Int64("size_bytes", int64(len(payload))),
		)
	}

	return result
}
