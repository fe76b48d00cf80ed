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

package artify

import (
	"strings"

	"github.com/blnkfinance/artify/config"
	"github.com/blnkfinance/artify/model"
)

var styleCatalog = []model.Style{
	{
		ID:             "ghibli",
		DisplayName:    "Studio Ghibli",
		Prompt:         "Studio Ghibli style illustration, soft watercolor backgrounds, warm natural light, hand drawn anime characters, whimsical and detailed",
		Category:       "anime",
		Popular:        true,
		Thumbnail:      "/styles/ghibli.webp",
		PromptStrength: 0.55,
		GuidanceScale:  7.5,
		InferenceSteps: 30,
	},
	{
		ID:             "pixar",
		DisplayName:    "Pixar 3D",
		Prompt:         "Pixar style 3D render, expressive cartoon proportions, glossy materials, cinematic studio lighting, vibrant colors",
		Category:       "3d",
		Popular:        true,
		Thumbnail:      "/styles/pixar.webp",
		PromptStrength: 0.6,
		GuidanceScale:  7.5,
		InferenceSteps: 30,
	},
	{
		ID:             "anime",
		DisplayName:    "Anime",
		Prompt:         "modern anime key visual, clean line art, cel shading, dramatic sky, highly detailed eyes",
		Category:       "anime",
		Popular:        true,
		Thumbnail:      "/styles/anime.webp",
		PromptStrength: 0.55,
		GuidanceScale:  7,
		InferenceSteps: 28,
	},
	{
		ID:             "watercolor",
		DisplayName:    "Watercolor",
		Prompt:         "delicate watercolor painting, loose brush strokes, paper texture, pastel palette, bleeding pigments",
		Category:       "painting",
		Thumbnail:      "/styles/watercolor.webp",
		PromptStrength: 0.5,
		GuidanceScale:  7,
		InferenceSteps: 28,
	},
	{
		ID:             "oil-painting",
		DisplayName:    "Oil Painting",
		Prompt:         "classical oil painting portrait, thick impasto brushwork, rich chiaroscuro lighting, museum quality canvas",
		Category:       "painting",
		Thumbnail:      "/styles/oil-painting.webp",
		PromptStrength: 0.55,
		GuidanceScale:  7.5,
		InferenceSteps: 30,
	},
	{
		ID:             "cyberpunk",
		DisplayName:    "Cyberpunk",
		Prompt:         "cyberpunk portrait, neon magenta and cyan lighting, rain soaked city at night, holographic details, high contrast",
		Category:       "sci-fi",
		Popular:        true,
		Thumbnail:      "/styles/cyberpunk.webp",
		PromptStrength: 0.6,
		GuidanceScale:  8,
		InferenceSteps: 30,
	},
	{
		ID:             "pixel-art",
		DisplayName:    "Pixel Art",
		Prompt:         "16-bit pixel art sprite, limited retro palette, crisp pixels, video game aesthetic",
		Category:       "retro",
		Thumbnail:      "/styles/pixel-art.webp",
		PromptStrength: 0.65,
		GuidanceScale:  8,
		InferenceSteps: 25,
	},
	{
		ID:             "comic",
		DisplayName:    "Comic Book",
		Prompt:         "american comic book illustration, bold ink outlines, halftone shading, dynamic pose, saturated primary colors",
		Category:       "illustration",
		Thumbnail:      "/styles/comic.webp",
		PromptStrength: 0.6,
		GuidanceScale:  7.5,
		InferenceSteps: 28,
	},
	{
		ID:             "lego",
		DisplayName:    "LEGO",
		Prompt:         "LEGO minifigure diorama, plastic bricks, studio macro photography, toy scale, bright colors",
		Category:       "3d",
		Thumbnail:      "/styles/lego.webp",
		PromptStrength: 0.7,
		GuidanceScale:  8,
		InferenceSteps: 30,
	},
	{
		ID:             "sketch",
		DisplayName:    "Pencil Sketch",
		Prompt:         "graphite pencil sketch, cross hatching, rough construction lines, white paper, monochrome",
		Category:       "illustration",
		Thumbnail:      "/styles/sketch.webp",
		PromptStrength: 0.5,
		GuidanceScale:  7,
		InferenceSteps: 25,
	},
	{
		ID:             "vaporwave",
		DisplayName:    "Vaporwave",
		Prompt:         "vaporwave aesthetic, pink and teal gradients, greek statues, retro 80s grid, glitch effects",
		Category:       "retro",
		Thumbnail:      "/styles/vaporwave.webp",
		PromptStrength: 0.6,
		GuidanceScale:  7.5,
		InferenceSteps: 28,
	},
	{
		ID:             "claymation",
		DisplayName:    "Claymation",
		Prompt:         "stop motion claymation character, plasticine texture with fingerprints, soft studio lighting, handmade set",
		Category:       "3d",
		Thumbnail:      "/styles/claymation.webp",
		PromptStrength: 0.65,
		GuidanceScale:  7.5,
		InferenceSteps: 30,
	},
}

// Styles returns a copy of the built in style catalog.
func Styles() []model.Style {
	styles := make([]model.Style, len(styleCatalog))
	copy(styles, styleCatalog)
	return styles
}

func findStyle(id string) (model.Style, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, style := range styleCatalog {
		if style.ID == id {
			return style, true
		}
	}
	return model.Style{}, false
}

// ResolveStyle returns the style for id, falling back to defaultID and then to ghibli
// when id is empty or unknown.
func ResolveStyle(id, defaultID string) model.Style {
	if style, ok := findStyle(id); ok {
		return style
	}
	if style, ok := findStyle(defaultID); ok {
		return style
	}
	style, _ := findStyle(config.DEFAULT_STYLE)
	return style
}
