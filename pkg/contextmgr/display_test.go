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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "0.5KB"},
		{1024, "1.0KB"},
		{1536, "1.5KB"},
		{1024*1024 - 1, "1024.0KB"},
		{1024 * 1024, "1.0MB"},
		{3 * 1024 * 1024, "3.0MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.bytes), "bytes=%d", tt.bytes)
	}
}

func TestDisplayReference_Expired(t *testing.T) {
	m := newTestManager(&fakeChecker{valid: map[string]bool{}})
	ref := newTestRef("ref_gone")

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{})
	assert.False(t, result.HasValidReference)
	assert.Contains(t, result.DisplayText, "expired")
	assert.Equal(t, []string{"Request fresh content"}, result.SuggestedActions)
}

func TestDisplayReference_LookupError(t *testing.T) {
	m := newTestManager(&fakeChecker{err: fmt.Errorf("backend down")})
	ref := newTestRef("ref_a")

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{})
	assert.False(t, result.HasValidReference)
	assert.Contains(t, result.DisplayText, "Error accessing")
	assert.Equal(t, []string{"Try again"}, result.SuggestedActions)
}

func TestDisplayReference_NilReference(t *testing.T) {
	m := newTestManager(&fakeChecker{})

	result := m.DisplayReference(context.Background(), nil, DisplayOptions{})
	assert.False(t, result.HasValidReference)
	assert.Equal(t, []string{"Request fresh content"}, result.SuggestedActions)
}

func TestDisplayReference_Card(t *testing.T) {
	checker := &fakeChecker{valid: map[string]bool{"ref_a": true}}
	m := newTestManager(checker)

	ref := newTestRef("ref_a")
	ref.Metadata.FileName = "results.json"
	ctxID := m.AddReference(ref)

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{
		Format:         FormatCard,
		ShowMetadata:   true,
		ShowSize:       true,
		IncludeActions: true,
	})
	require.True(t, result.HasValidReference)
	assert.Equal(t, ctxID, result.ContextID)
	assert.Contains(t, result.DisplayText, "text/plain")
	assert.Contains(t, result.DisplayText, "2.0KB")
	assert.Contains(t, result.DisplayText, "results.json")
	assert.Contains(t, result.DisplayText, ref.Preview)
	assert.Contains(t, result.DisplayText, ctxID)
	assert.NotEmpty(t, result.SuggestedActions)
}

func TestDisplayReference_Inline(t *testing.T) {
	checker := &fakeChecker{valid: map[string]bool{"ref_a": true}}
	m := newTestManager(checker)

	ref := newTestRef("ref_a")
	m.AddReference(ref)

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{
		Format:   FormatInline,
		ShowSize: true,
	})
	require.True(t, result.HasValidReference)
	assert.NotContains(t, result.DisplayText, "\n", "inline format is single-line")
	assert.Contains(t, result.DisplayText, "2.0KB")
	assert.Contains(t, result.DisplayText, ref.Preview)
}

func TestDisplayReference_Compact(t *testing.T) {
	checker := &fakeChecker{valid: map[string]bool{"ref_a": true}}
	m := newTestManager(checker)

	ref := newTestRef("ref_a")
	m.AddReference(ref)

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{
		Format:   FormatCompact,
		ShowSize: true,
	})
	require.True(t, result.HasValidReference)
	assert.Contains(t, result.DisplayText, "2.0KB")
	assert.NotContains(t, result.DisplayText, ref.Preview, "compact format omits the preview")
}

func TestDisplayReference_PreviewTruncation(t *testing.T) {
	checker := &fakeChecker{valid: map[string]bool{"ref_a": true}}
	m := newTestManager(checker)

	ref := newTestRef("ref_a")
	ref.Preview = strings.Repeat("p", 500)
	m.AddReference(ref)

	result := m.DisplayReference(context.Background(), ref, DisplayOptions{
		Format:           FormatInline,
		MaxPreviewLength: 50,
	})
	require.True(t, result.HasValidReference)
	assert.Contains(t, result.DisplayText, strings.Repeat("p", 50)+"...")
	assert.NotContains(t, result.DisplayText, strings.Repeat("p", 51))
}

func TestDisplayReference_UntrackedReferenceHasNoContextID(t *testing.T) {
	checker := &fakeChecker{valid: map[string]bool{"ref_solo": true}}
	m := newTestManager(checker)

	result := m.DisplayReference(context.Background(), newTestRef("ref_solo"), DisplayOptions{})
	require.True(t, result.HasValidReference)
	assert.Empty(t, result.ContextID)
}
