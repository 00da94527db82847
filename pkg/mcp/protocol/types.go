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
// Package protocol defines the MCP tool-response content model consumed and
// produced by the response processor.
package protocol

import "encoding/json"

// Content item types.
const (
	ContentTypeText      = "text"
	ContentTypeImage     = "image"
	ContentTypeResource  = "resource"
	ContentTypeReference = "content_reference"
)

// Content is one typed item of a tool response. Exactly one of the
// type-specific field groups is populated, selected by Type.
type Content struct {
	Type     string       `json:"type"` // "text", "image", "resource", "content_reference"
	Text     string       `json:"text,omitempty"`
	Data     string       `json:"data,omitempty"`     // Base64 payload for images
	MimeType string       `json:"mimeType,omitempty"` // For images/resources
	Resource *ResourceRef `json:"resource,omitempty"` // For resource type

	// Reference placeholder fields, set when Type is "content_reference".
	ReferenceID string `json:"referenceId,omitempty"`
	Preview     string `json:"preview,omitempty"`
	IsReference bool   `json:"isReference,omitempty"`
}

// ResourceRef references an MCP resource embedded in a tool response.
type ResourceRef struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// CallToolResult is the result of a tool invocation: an ordered list of typed
// content items plus an error flag.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Payload returns the raw bytes of a content item, the basis for size
// classification and out-of-band storage. Text items yield their text, image
// items their base64 data, resource items their JSON encoding. Reference
// placeholders have no payload.
func (c *Content) Payload() []byte {
	switch c.Type {
	case ContentTypeText:
		return []byte(c.Text)
	case ContentTypeImage:
		return []byte(c.Data)
	case ContentTypeResource:
		if c.Resource == nil {
			return nil
		}
		data, err := json.Marshal(c.Resource)
		if err != nil {
			return []byte(c.Resource.Text)
		}
		return data
	default:
		return nil
	}
}

// FileName extracts a file-name hint from a resource URI, if any.
func (c *Content) FileName() string {
	if c.Type != ContentTypeResource || c.Resource == nil {
		return ""
	}
	uri := c.Resource.URI
	for i := len(uri) - 1; i >= 0; i-- {
		if uri[i] == '/' {
			return uri[i+1:]
		}
	}
	return uri
}
