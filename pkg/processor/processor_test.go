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
package processor

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/spool/pkg/contentstore"
	"github.com/teradata-labs/spool/pkg/mcp/protocol"
)

// fakeStore lets tests inject storage failures.
type fakeStore struct {
	threshold int64
	failWith  error
	stored    []contentstore.ContentMetadata
}

func (f *fakeStore) SizeThreshold() int64 { return f.threshold }

func (f *fakeStore) StoreContentIfLarge(_ context.Context, content []byte, meta contentstore.ContentMetadata) (*contentstore.ContentReference, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if int64(len(content)) <= f.threshold {
		return nil, nil
	}
	f.stored = append(f.stored, meta)
	return &contentstore.ContentReference{
		ReferenceID: fmt.Sprintf("ref_test_%d", len(f.stored)),
		State:       contentstore.StateActive,
		Preview:     contentstore.MakePreview(content, 80),
		Metadata:    meta,
	}, nil
}

func textResponse(texts ...string) *protocol.CallToolResult {
	resp := &protocol.CallToolResult{}
	for _, text := range texts {
		resp.Content = append(resp.Content, protocol.Content{Type: protocol.ContentTypeText, Text: text})
	}
	return resp
}

func TestInferTextMimeType(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"json object", `{"rows": [1, 2, 3]}`, "application/json"},
		{"json array with whitespace", "  [1, 2]  ", "application/json"},
		{"html doctype", "<!DOCTYPE html><html><body></body></html>", "text/html"},
		{"html tag", "<html><head></head></html>", "text/html"},
		{"markdown heading", "# Results\n\nSome text", "text/markdown"},
		{"markdown deep heading", "intro\n### Section\nbody", "text/markdown"},
		{"plain text", "just some output", "text/plain"},
		{"empty", "", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inferTextMimeType(tt.text))
		})
	}
}

func TestAnalyzeResponse_Classification(t *testing.T) {
	p := New(&fakeStore{threshold: 1000}, nil)

	resp := &protocol.CallToolResult{Content: []protocol.Content{
		{Type: protocol.ContentTypeText, Text: `{"ok": true}`},
		{Type: protocol.ContentTypeImage, Data: "aGVsbG8=", MimeType: "image/jpeg"},
		{Type: protocol.ContentTypeImage, Data: "aGVsbG8="},
		{Type: protocol.ContentTypeResource, Resource: &protocol.ResourceRef{URI: "file:///tmp/out.csv", MimeType: "text/csv"}},
		{Type: protocol.ContentTypeResource, Resource: &protocol.ResourceRef{URI: "mem://result"}},
	}}

	analysis := p.AnalyzeResponse(resp)
	require.Len(t, analysis.Contents, 5)
	assert.Equal(t, "application/json", analysis.Contents[0].MimeType)
	assert.Equal(t, "image/jpeg", analysis.Contents[1].MimeType)
	assert.Equal(t, "image/png", analysis.Contents[2].MimeType, "images default to png")
	assert.Equal(t, "text/csv", analysis.Contents[3].MimeType)
	assert.Equal(t, "application/json", analysis.Contents[4].MimeType, "resources default to json")
	assert.False(t, analysis.ShouldProcess)
	assert.Positive(t, analysis.TotalSizeBytes)
}

func TestAnalyzeResponse_AggregateTriggersProcessing(t *testing.T) {
	p := New(&fakeStore{threshold: 1000}, nil)

	// Three items of 400 bytes: none oversized alone, 1200 in aggregate.
	resp := textResponse(
		strings.Repeat("a", 400),
		strings.Repeat("b", 400),
		strings.Repeat("c", 400),
	)
	analysis := p.AnalyzeResponse(resp)
	assert.True(t, analysis.ShouldProcess)
	for _, info := range analysis.Contents {
		assert.False(t, info.Oversized)
	}
	assert.Equal(t, int64(1200), analysis.TotalSizeBytes)
}

func TestProcessResponse_BelowThresholdUnchanged(t *testing.T) {
	p := New(&fakeStore{threshold: 1000}, nil)

	resp := textResponse("small output")
	result := p.ProcessResponse(context.Background(), resp, "local", "query")
	assert.False(t, result.WasProcessed)
	assert.False(t, result.ReferenceCreated)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "small output", result.Content[0].Text)
	assert.Empty(t, result.Errors)
}

func TestProcessResponse_OversizedItemReplaced(t *testing.T) {
	store := &fakeStore{threshold: 1000}
	p := New(store, nil)

	resp := textResponse(strings.Repeat("x", 2000))
	result := p.ProcessResponse(context.Background(), resp, "local", "query")

	assert.True(t, result.WasProcessed)
	assert.True(t, result.ReferenceCreated)
	assert.Equal(t, int64(2000), result.OriginalSizeBytes)
	require.Len(t, result.Content, 1)
	assert.Equal(t, protocol.ContentTypeReference, result.Content[0].Type)
	assert.True(t, result.Content[0].IsReference)
	assert.NotEmpty(t, result.Content[0].ReferenceID)
	assert.NotEmpty(t, result.Content[0].Preview)

	require.Len(t, store.stored, 1)
	meta := store.stored[0]
	assert.Equal(t, "mcp_tool", meta.Source)
	assert.Equal(t, "local::query", meta.ToolName)
	assert.Equal(t, []string{"mcp_response", "local", "query"}, meta.Tags)
}

func TestProcessResponse_SmallSiblingsPassThrough(t *testing.T) {
	store := &fakeStore{threshold: 1000}
	p := New(store, nil)

	small := "tiny"
	resp := textResponse(small, strings.Repeat("y", 1500), small)
	result := p.ProcessResponse(context.Background(), resp, "srv", "tool")

	assert.True(t, result.WasProcessed)
	require.Len(t, result.Content, 3, "item order and count preserved")
	assert.Equal(t, small, result.Content[0].Text)
	assert.Equal(t, protocol.ContentTypeReference, result.Content[1].Type)
	assert.Equal(t, small, result.Content[2].Text)
}

func TestProcessResponse_StorageFailureLeavesItemIntact(t *testing.T) {
	store := &fakeStore{threshold: 1000, failWith: fmt.Errorf("store unavailable")}
	p := New(store, nil)

	original := strings.Repeat("z", 2000)
	resp := textResponse(original)
	result := p.ProcessResponse(context.Background(), resp, "srv", "tool")

	assert.True(t, result.WasProcessed)
	assert.False(t, result.ReferenceCreated)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Failed to create reference")
	require.Len(t, result.Content, 1)
	assert.Equal(t, original, result.Content[0].Text, "failed item is left untouched")
}

func TestProcessResponse_PartialFailure(t *testing.T) {
	// First oversized item succeeds, then the store starts failing.
	store := &fakeStore{threshold: 100}
	_ = New(store, nil)

	resp := textResponse(strings.Repeat("a", 200), strings.Repeat("b", 200))

	// Wrap with a store that fails on the second call.
	flaky := &flakyStore{inner: store, failAfter: 1}
	result := New(flaky, nil).ProcessResponse(context.Background(), resp, "srv", "tool")

	assert.True(t, result.WasProcessed)
	assert.True(t, result.ReferenceCreated, "one sibling still succeeded")
	require.Len(t, result.Errors, 1)
	require.Len(t, result.Content, 2)
	assert.Equal(t, protocol.ContentTypeReference, result.Content[0].Type)
	assert.Equal(t, strings.Repeat("b", 200), result.Content[1].Text)
}

type flakyStore struct {
	inner     *fakeStore
	failAfter int
	calls     int
}

func (f *flakyStore) SizeThreshold() int64 { return f.inner.threshold }

func (f *flakyStore) StoreContentIfLarge(ctx context.Context, content []byte, meta contentstore.ContentMetadata) (*contentstore.ContentReference, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, fmt.Errorf("intermittent failure")
	}
	return f.inner.StoreContentIfLarge(ctx, content, meta)
}

func TestProcessResponse_RealStoreRoundTrip(t *testing.T) {
	s := contentstore.NewStore(&contentstore.Config{SizeThresholdBytes: 1000})
	t.Cleanup(s.Dispose)
	p := New(s, nil)

	payload := strings.Repeat("row,", 600)
	result := p.ProcessResponse(context.Background(), textResponse(payload), "db", "select")
	require.True(t, result.ReferenceCreated)
	require.Equal(t, protocol.ContentTypeReference, result.Content[0].Type)

	data, ref, err := s.Get(context.Background(), result.Content[0].ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.Equal(t, "db::select", ref.Metadata.ToolName)
}

func TestProcessResponse_NilResponse(t *testing.T) {
	p := New(&fakeStore{threshold: 100}, nil)
	result := p.ProcessResponse(context.Background(), nil, "srv", "tool")
	assert.False(t, result.WasProcessed)
	assert.Empty(t, result.Content)
}
