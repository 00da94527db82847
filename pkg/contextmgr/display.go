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
package contextmgr

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teradata-labs/spool/pkg/contentstore"
)

// DisplayFormat selects how a reference is rendered.
type DisplayFormat string

const (
	FormatCard    DisplayFormat = "card"
	FormatInline  DisplayFormat = "inline"
	FormatCompact DisplayFormat = "compact"
)

// DefaultMaxPreviewLength bounds rendered previews unless overridden.
const DefaultMaxPreviewLength = 150

// DisplayOptions controls reference rendering.
type DisplayOptions struct {
	Format           DisplayFormat
	MaxPreviewLength int
	ShowMetadata     bool
	ShowSize         bool
	IncludeActions   bool
}

// DisplayResult is a rendered, human-readable view of a reference.
type DisplayResult struct {
	HasValidReference bool     `json:"hasValidReference"`
	DisplayText       string   `json:"displayText"`
	ContextID         string   `json:"contextId,omitempty"`
	SuggestedActions  []string `json:"suggestedActions,omitempty"`
}

// FormatBytes renders a byte count for humans with a 1024-byte unit and one
// decimal place. Values strictly below 1MiB render in KB, so 1048575 is
// "1024.0KB" and 1048576 is "1.0MB".
func FormatBytes(n int64) string {
	const mib = 1024 * 1024
	if n < mib {
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/float64(mib))
}

func truncatePreview(preview string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxPreviewLength
	}
	if len(preview) <= maxLen {
		return preview
	}
	return preview[:maxLen] + "..."
}

// DisplayReference renders a reference in the requested format. The backing
// store is consulted first: a missing reference yields an expired result
// suggesting fresh content, and a failed lookup yields a distinct error
// result suggesting a retry. Neither failure propagates to the caller.
func (m *Manager) DisplayReference(ctx context.Context, ref *contentstore.ContentReference, opts DisplayOptions) (result DisplayResult) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Reference rendering panicked", zap.Any("panic", r))
			result = DisplayResult{
				HasValidReference: false,
				DisplayText:       "Error displaying content reference.",
				SuggestedActions:  []string{"Try again"},
			}
		}
	}()

	if ref == nil {
		return DisplayResult{
			HasValidReference: false,
			DisplayText:       "Content reference has expired and is no longer available.",
			SuggestedActions:  []string{"Request fresh content"},
		}
	}

	ok, err := m.store.HasReference(ctx, ref.ReferenceID)
	if err != nil {
		m.logger.Warn("Reference lookup failed during display",
			zap.String("reference_id", ref.ReferenceID),
			zap.Error(err),
		)
		return DisplayResult{
			HasValidReference: false,
			DisplayText:       "Error accessing content reference. The content may be temporarily unavailable.",
			SuggestedActions:  []string{"Try again"},
		}
	}
	if !ok {
		return DisplayResult{
			HasValidReference: false,
			DisplayText:       "Content reference has expired and is no longer available.",
			SuggestedActions:  []string{"Request fresh content"},
		}
	}

	contextID := m.contextIDFor(ref.ReferenceID)
	preview := truncatePreview(ref.Preview, opts.MaxPreviewLength)

	var text string
	switch opts.Format {
	case FormatInline:
		text = renderInline(ref, preview, contextID, opts)
	case FormatCompact:
		text = renderCompact(ref, opts)
	default:
		text = renderCard(ref, preview, contextID, opts)
	}

	result = DisplayResult{
		HasValidReference: true,
		DisplayText:       text,
		ContextID:         contextID,
	}
	if opts.IncludeActions {
		result.SuggestedActions = []string{"View full content", "Copy reference ID"}
	}
	return result
}

func renderCard(ref *contentstore.ContentReference, preview, contextID string, opts DisplayOptions) string {
	var b strings.Builder
	b.WriteString("📎 Stored Content Reference\n")

	var facts []string
	if opts.ShowMetadata {
		facts = append(facts, "Type: "+ref.Metadata.MimeType)
		if ref.Metadata.ToolName != "" {
			facts = append(facts, "Tool: "+ref.Metadata.ToolName)
		}
	}
	if opts.ShowSize {
		facts = append(facts, "Size: "+FormatBytes(ref.Metadata.SizeBytes))
	}
	if ref.Metadata.FileName != "" {
		facts = append(facts, "File: "+ref.Metadata.FileName)
	}
	if len(facts) > 0 {
		b.WriteString("   " + strings.Join(facts, " | ") + "\n")
	}
	b.WriteString("   Preview: " + preview)
	if contextID != "" {
		b.WriteString("\n   Context: " + contextID)
	}
	return b.String()
}

func renderInline(ref *contentstore.ContentReference, preview, contextID string, opts DisplayOptions) string {
	var b strings.Builder
	b.WriteString("📎 ")
	if ref.Metadata.FileName != "" {
		b.WriteString(ref.Metadata.FileName + " ")
	}
	var parens []string
	if opts.ShowSize {
		parens = append(parens, FormatBytes(ref.Metadata.SizeBytes))
	}
	if opts.ShowMetadata {
		parens = append(parens, ref.Metadata.MimeType)
	}
	if len(parens) > 0 {
		b.WriteString("(" + strings.Join(parens, ", ") + ") ")
	}
	b.WriteString(preview)
	if contextID != "" {
		b.WriteString(" [" + contextID + "]")
	}
	return b.String()
}

func renderCompact(ref *contentstore.ContentReference, opts DisplayOptions) string {
	label := ref.Metadata.FileName
	if label == "" {
		label = ref.Metadata.MimeType
	}
	if opts.ShowSize {
		return fmt.Sprintf("📎 %s (%s)", label, FormatBytes(ref.Metadata.SizeBytes))
	}
	return "📎 " + label
}
