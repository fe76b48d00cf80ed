/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package progress extracts completion percentages from generation log output.
package progress

import (
	"regexp"
	"strconv"
)

var (
	// tqdm style bars print lines such as " 45%|████▌     | 9/20 [00:03<00:04,  2.61it/s]".
	barPattern     = regexp.MustCompile(`(\d{1,3})%\|`)
	percentPattern = regexp.MustCompile(`(\d{1,3})%`)
)

// Parse returns the last percentage found in logs. Progress bars win over
// percentages in free text such as "weights 100% cached". It reports false when
// no percentage in 0..100 is present, which callers treat as "no update".
func Parse(logs string) (int, bool) {
	if value, ok := last(barPattern, logs); ok {
		return value, true
	}
	return last(percentPattern, logs)
}

func last(pattern *regexp.Regexp, logs string) (int, bool) {
	matches := pattern.FindAllStringSubmatch(logs, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		value, err := strconv.Atoi(matches[i][1])
		if err != nil || value > 100 {
			continue
		}
		return value, true
	}
	return 0, false
}
