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
package contentstore

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ReferenceState tracks the lifecycle of a content reference.
type ReferenceState string

const (
	// StateActive means the backing content is still retrievable.
	StateActive ReferenceState = "active"
	// StateExpired means the backing content has passed its TTL deadline
	// or was removed from the store.
	StateExpired ReferenceState = "expired"
)

// DefaultPreviewLength bounds the text excerpt carried by a reference.
const DefaultPreviewLength = 200

// ContentMetadata describes stored content without carrying its payload.
type ContentMetadata struct {
	ContentType string   `json:"contentType"` // "text", "image", "resource"
	MimeType    string   `json:"mimeType"`
	SizeBytes   int64    `json:"sizeBytes"`
	Source      string   `json:"source"`
	ToolName    string   `json:"toolName,omitempty"` // "<server>::<tool>" for MCP results
	FileName    string   `json:"fileName,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ContentReference is a compact token standing in for content that was too
// large to inline. It is created when oversized content is stored and never
// mutated afterwards except for the State transition to expired.
type ContentReference struct {
	ReferenceID string          `json:"referenceId"`
	State       ReferenceState  `json:"state"`
	Preview     string          `json:"preview"`
	Metadata    ContentMetadata `json:"metadata"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// GenerateReferenceID returns a unique, opaque reference identifier.
func GenerateReferenceID() string {
	return fmt.Sprintf("ref_%d_%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// MakePreview produces a bounded single-line excerpt of a payload. Control
// characters are collapsed to spaces and truncation lands on a rune boundary.
func MakePreview(data []byte, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultPreviewLength
	}
	text := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, string(data))
	if len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
