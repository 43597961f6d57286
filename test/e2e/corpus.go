// Package e2e provides end-to-end tests that drive the HTTP API over a
// generated media library.
package e2e

import (
	"fmt"
	"image/color"
	"math"
)

// Item is one generated media file in the corpus.
type Item struct {
	Name  string // file name including extension
	Topic string // word used in the file name, unique across the corpus
	Color color.RGBA
	Video bool
}

// QueryTestCase is a search request and the file name expected at rank 1.
type QueryTestCase struct {
	Description string
	Text        string
	ImageFile   string
	VideoFile   string
	Name        string
	Expected    string
}

// Corpus holds the items and query cases.
type Corpus struct {
	Items     []Item
	TestCases []QueryTestCase
}

var topics = []string{
	"harbor", "meadow", "glacier", "canyon", "orchard", "lagoon", "volcano", "tundra",
	"prairie", "bamboo", "desert", "reef", "savanna", "fjord", "marsh", "summit",
	"delta", "grove", "dune", "atoll", "plateau", "rainforest", "geyser", "steppe",
}

// BuildCorpus returns n items (n <= len(topics)) with evenly spread hues.
// Every fourth item is a video; image extensions rotate through the
// encodable formats.
func BuildCorpus(n int) *Corpus {
	if n > len(topics) {
		n = len(topics)
	}
	c := &Corpus{}
	for i := 0; i < n; i++ {
		it := Item{
			Topic: topics[i],
			Color: hue(float64(i) / float64(n)),
			Video: i%4 == 3,
		}
		if it.Video {
			it.Name = fmt.Sprintf("%02d-%s.mp4", i, it.Topic)
		} else {
			it.Name = fmt.Sprintf("%02d-%s%s", i, it.Topic, EncodableExtensions[i%len(EncodableExtensions)])
		}
		c.Items = append(c.Items, it)
	}
	for _, it := range c.Items {
		c.TestCases = append(c.TestCases, QueryTestCase{
			Description: "name " + it.Topic,
			Name:        it.Topic,
			Expected:    it.Name,
		})
		if it.Video {
			c.TestCases = append(c.TestCases, QueryTestCase{
				Description: "video " + it.Name,
				VideoFile:   it.Name,
				Expected:    it.Name,
			})
		} else {
			c.TestCases = append(c.TestCases, QueryTestCase{
				Description: "image " + it.Name,
				ImageFile:   it.Name,
				Expected:    it.Name,
			})
		}
	}
	return c
}

// hue returns a saturated colour at position h in [0,1) around the colour wheel.
func hue(h float64) color.RGBA {
	channel := func(offset float64) uint8 {
		v := math.Abs(math.Mod(h*6+offset, 6)-3) - 1
		v = math.Max(0, math.Min(1, v))
		return uint8(40 + v*200)
	}
	return color.RGBA{R: channel(0), G: channel(4), B: channel(2), A: 255}
}
