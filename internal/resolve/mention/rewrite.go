// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mention

import (
	"sort"
	"strconv"

	"graphrag-platform/internal/resolve"
)

type substitution struct {
	start, end  int
	replacement string
}

// Apply 按已接受的判定改写文本。rewrite 档替换全部接受项，
// local 档只替换指称与先行词处于同句或相邻句的项。
// 替换按位置倒序进行，避免偏移失效。
func Apply(text string, matches []*resolve.Match, mode string) string {
	var subs []substitution
	for _, m := range matches {
		if m.Decision != resolve.DecisionAccept || m.Target == nil {
			continue
		}
		attrs := m.Target.Attributes
		start, err1 := strconv.Atoi(attrs["mention_position"])
		end, err2 := strconv.Atoi(attrs["mention_end"])
		if err1 != nil || err2 != nil || start < 0 || end > len(text) || start >= end {
			continue
		}
		if mode == ModeLocal && !adjacent(attrs) {
			continue
		}
		subs = append(subs, substitution{start: start, end: end, replacement: m.Target.DisplayText})
	}

	sort.Slice(subs, func(i, j int) bool { return subs[i].start > subs[j].start })

	out := text
	lastStart := len(text) + 1
	for _, s := range subs {
		// 重叠的替换只保留靠后的那个
		if s.end > lastStart {
			continue
		}
		out = out[:s.start] + s.replacement + out[s.end:]
		lastStart = s.start
	}
	return out
}

func adjacent(attrs map[string]string) bool {
	ms, err1 := strconv.Atoi(attrs["mention_sentence"])
	as, err2 := strconv.Atoi(attrs["sentence_index"])
	if err1 != nil || err2 != nil {
		return false
	}
	d := ms - as
	if d < 0 {
		d = -d
	}
	return d <= 1
}
