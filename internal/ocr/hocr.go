package ocr

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	bboxPattern  = regexp.MustCompile(`bbox\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)
	wconfPattern = regexp.MustCompile(`x_wconf\s+(\d+(?:\.\d+)?)`)
)

// hocrDocument mirrors the nesting Tesseract emits:
// ocr_page > ocr_carea > ocr_par > ocr_line > ocrx_word
type hocrDocument struct {
	XMLName xml.Name `xml:"html"`
	Pages   []struct {
		Areas []struct {
			Pars []struct {
				Lines []struct {
					Words []hocrWord `xml:"span"`
				} `xml:"span"`
			} `xml:"p"`
		} `xml:"div"`
	} `xml:"body>div"`
}

type hocrWord struct {
	Title string `xml:"title,attr"`
	Text  string `xml:",chardata"`
}

// parseHOCR flattens Tesseract hOCR into words in reading order with
// confidences in [0,1]. Words without a box, or with an empty one, are noise
// from crop edges and are dropped.
func parseHOCR(hocrText string) ([]Word, error) {
	var doc hocrDocument
	if err := xml.Unmarshal([]byte(hocrText), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal HOCR XML: %w", err)
	}

	var words []Word
	for _, page := range doc.Pages {
		for _, area := range page.Areas {
			for _, par := range area.Pars {
				for _, line := range par.Lines {
					for _, w := range line.Words {
						text := strings.TrimSpace(w.Text)
						if text == "" || !hasArea(w.Title) {
							continue
						}
						words = append(words, Word{Text: text, Confidence: wordConfidence(w.Title)})
					}
				}
			}
		}
	}
	return words, nil
}

// hasArea reports whether a title carries a "bbox x0 y0 x1 y1" with positive width and height
func hasArea(title string) bool {
	m := bboxPattern.FindStringSubmatch(title)
	if len(m) != 5 {
		return false
	}
	var v [4]int
	for i := range v {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return false
		}
		v[i] = n
	}
	return v[2] > v[0] && v[3] > v[1]
}

// wordConfidence reads x_wconf (0-100) and scales it to [0,1]
func wordConfidence(title string) float64 {
	m := wconfPattern.FindStringSubmatch(title)
	if len(m) != 2 {
		return 0
	}
	conf, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return clamp01(conf / 100)
}
