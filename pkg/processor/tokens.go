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
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates token counts for analyzed content so callers can
// reason about context budgets. Uses cl100k_base, a workable approximation
// across frontier models.
type tokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalTokenCounter *tokenCounter
	counterInitOnce    sync.Once
)

func getTokenCounter() *tokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Encoder data unavailable; fall back to char-based estimation.
			globalTokenCounter = &tokenCounter{}
			return
		}
		globalTokenCounter = &tokenCounter{encoder: tkm}
	})
	return globalTokenCounter
}

// count returns the token count for text, or a chars/4 estimate when the
// encoder could not be initialized.
func (tc *tokenCounter) count(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}
