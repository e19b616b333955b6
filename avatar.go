/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"math"
	"unicode/utf16"

	"github.com/lucasb-eyer/go-colorful"
)

// Hair colour used when a room has no claimant.
const defaultHairColor = "#ec962f"

type shadeMode int

const (
	shadeNeutral shadeMode = iota
	shadeDeep
)

func (m shadeMode) String() string {
	if m == shadeDeep {
		return "deep"
	}

	return "neutral"
}

// nameHash is the classic h*31 + c string hash over UTF-16 code units,
// wrapping at 32 bits.
func nameHash(name string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(name)) {
		h = int32(c) + ((h << 5) - h)
	}

	return h
}

// colorOf maps a name to its base colour. The low three bytes of the hash
// are red, green and blue in that order.
func colorOf(name string) colorful.Color {
	if name == "" {
		c, _ := colorful.Hex(defaultHairColor)

		return c
	}

	h := nameHash(name)

	return colorful.Color{
		R: float64(uint8(h)) / 255,
		G: float64(uint8(h>>8)) / 255,
		B: float64(uint8(h>>16)) / 255,
	}
}

// shade derives a contrasting colour from base. Light colours are darkened
// and desaturated, dark ones lightened. Deep mode additionally pulls the
// hue toward red.
func shade(base colorful.Color, mode shadeMode) colorful.Color {
	h, s, l := base.Hsl()
	h /= 360

	light := l > 0.55

	switch mode {
	case shadeDeep:
		if light {
			h = math.Max(0, h-0.05)
			l = math.Max(0.15, l*0.4)
			s = math.Min(1, s*1.2)
		} else {
			h = math.Max(0, h-0.07)
			l = math.Min(0.4, l*1.3)
			s = math.Min(1, s*1.1)
		}
	default:
		if light {
			l = math.Max(0.2, l*0.6)
			s = math.Max(0.2, s*0.6)
		} else {
			l = math.Min(0.8, l*1.4)
			s = math.Min(0.9, s*0.8)
		}
	}

	return colorful.Hsl(h*360, s, l).Clamped()
}

// avatarPalette is the full set of colours a character is drawn with.
type avatarPalette struct {
	Name    string `json:"name"`
	Base    string `json:"base"`
	Neutral string `json:"neutral"`
	Deep    string `json:"deep"`
}

func paletteFor(name string) avatarPalette {
	base := colorOf(name)

	return avatarPalette{
		Name:    name,
		Base:    base.Hex(),
		Neutral: shade(base, shadeNeutral).Hex(),
		Deep:    shade(base, shadeDeep).Hex(),
	}
}
