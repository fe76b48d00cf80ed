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
package model

// Style is a named preset sent to the image generation API.
type Style struct {
	ID             string  `json:"id"`
	DisplayName    string  `json:"display_name"`
	Prompt         string  `json:"prompt"`
	Category       string  `json:"category"`
	Popular        bool    `json:"popular"`
	Thumbnail      string  `json:"thumbnail"`
	PromptStrength float64 `json:"prompt_strength"`
	GuidanceScale  float64 `json:"guidance_scale"`
	InferenceSteps int     `json:"inference_steps"`
}
